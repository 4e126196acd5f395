package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_WritesDefault(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cfg")
	cfg, err := loadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "bolt", cfg.GetString(cfgKeyBackend))
	assert.False(t, cfg.GetBool(cfgKeyVerbose))
	assert.Zero(t, cfg.GetInt(cfgKeyMmapSize))
	assert.Empty(t, cfg.GetString(cfgKeyDataDir))

	data, err := os.ReadFile(filepath.Join(dir, configFileExt))
	require.NoError(t, err)
	assert.Equal(t, defaultConfigYAML, string(data))
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := "backend: sqlite\ndata_dir: /tmp/fields\nmmap_size: 1048576\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileExt), []byte(yaml), 0o644))

	cfg, err := loadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.GetString(cfgKeyBackend))
	assert.Equal(t, "/tmp/fields", cfg.GetString(cfgKeyDataDir))
	assert.Equal(t, 1048576, cfg.GetInt(cfgKeyMmapSize))

	t.Setenv("DYNFIELD_BACKEND", "memory")
	cfg, err = loadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.GetString(cfgKeyBackend))
}

func TestResolveDirs(t *testing.T) {
	t.Setenv("DYNFIELD_CONFIG_DIR", "")
	got, err := resolveConfigDir("/etc/dynfield")
	require.NoError(t, err)
	assert.Equal(t, "/etc/dynfield", got)

	t.Setenv("DYNFIELD_CONFIG_DIR", "/srv/cfg")
	got, err = resolveConfigDir("")
	require.NoError(t, err)
	assert.Equal(t, "/srv/cfg", got)

	got, err = resolveDataDir("", "/srv/data")
	require.NoError(t, err)
	assert.Equal(t, "/srv/data", got)

	got, err = resolveDataDir("/flag", "/srv/data")
	require.NoError(t, err)
	assert.Equal(t, "/flag", got)
}

type cli struct {
	t    *testing.T
	base []string
}

func newCLI(t *testing.T, backend string) *cli {
	dir := t.TempDir()
	return &cli{t, []string{
		"--config-dir", filepath.Join(dir, "cfg"),
		"--data-dir", filepath.Join(dir, "data"),
		"--backend", backend,
	}}
}

func (c *cli) run(args ...string) (string, int) {
	var stdout, stderr bytes.Buffer
	code := run(append(args, c.base...), &stdout, &stderr)
	if stderr.Len() > 0 {
		c.t.Log(stderr.String())
	}
	return strings.TrimSpace(stdout.String()), code
}

func TestCLI_FieldLifecycle(t *testing.T) {
	for _, backend := range []string{"bolt", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			c := newCLI(t, backend)

			parent, code := c.run("new-object")
			require.Equal(t, exitSuccess, code)
			require.True(t, strings.HasPrefix(parent, "0x"), parent)

			_, code = c.run("add", parent, "color", "red")
			require.Equal(t, exitSuccess, code)
			_, code = c.run("add", parent, "color", "blue")
			assert.Equal(t, exitUserError, code)

			out, code := c.run("get", parent, "color")
			require.Equal(t, exitSuccess, code)
			assert.Equal(t, "red", out)

			_, code = c.run("set", parent, "color", "green")
			require.Equal(t, exitSuccess, code)

			out, _ = c.run("exists", parent, "color", "--typed")
			assert.Equal(t, "true", out)
			out, _ = c.run("exists", parent, "size")
			assert.Equal(t, "false", out)

			out, _ = c.run("stats")
			assert.Contains(t, out, "fields:     1")
			out, _ = c.run("dump")
			assert.Contains(t, out, "[string => string]")

			out, code = c.run("remove", parent, "color")
			require.Equal(t, exitSuccess, code)
			assert.Equal(t, "green", out)

			_, code = c.run("get", parent, "color")
			assert.Equal(t, exitUserError, code)
		})
	}
}

func TestCLI_UserErrors(t *testing.T) {
	c := newCLI(t, "memory")

	_, code := c.run("get", "0x1234", "k")
	assert.Equal(t, exitUserError, code)

	_, code = c.run("add", "only-one-arg")
	assert.Equal(t, exitUserError, code)

	_, code = c.run("stats", "--no-such-flag")
	assert.Equal(t, exitUserError, code)

	var stdout, stderr bytes.Buffer
	code = run([]string{"stats", "--backend", "pebble", "--config-dir", t.TempDir()}, &stdout, &stderr)
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, stderr.String(), `unknown backend "pebble"`)
}
