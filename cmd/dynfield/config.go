package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyBackend  = "backend"
	cfgKeyDataDir  = "data_dir"
	cfgKeyVerbose  = "verbose"
	cfgKeyMmapSize = "mmap_size"

	envPrefix = "DYNFIELD"

	defaultConfigDirName = ".dynfield"
	defaultDataDirName   = ".dynfield-db"
)

const defaultConfigYAML = `# dynfield CLI configuration

# Storage backend: bolt, sqlite or memory
backend: bolt

# Data directory (optional; overridable by --data-dir)
# data_dir:

# Log every write at debug level
verbose: false

# Initial bolt mmap size in bytes, 0 for the default
mmap_size: 0
`

// loadConfig reads config.yaml from configDir, creating the directory and a
// default file on first run. DYNFIELD_* environment variables override the
// file.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, "bolt")
	v.SetDefault(cfgKeyVerbose, false)
	v.SetDefault(cfgKeyMmapSize, 0)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// resolveConfigDir: --config-dir flag > DYNFIELD_CONFIG_DIR env > $(CWD)/.dynfield.
func resolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(envPrefix + "_CONFIG_DIR"); env != "" {
		return filepath.Abs(env)
	}
	return filepath.Abs(defaultConfigDirName)
}

// resolveDataDir: --data-dir flag > data_dir from config > $(CWD)/.dynfield-db.
func resolveDataDir(flag, configValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configValue != "" {
		return filepath.Abs(configValue)
	}
	return filepath.Abs(defaultDataDirName)
}
