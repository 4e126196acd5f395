package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/andreyvit/dynfield"
)

const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// userError marks failures caused by the arguments rather than the system.
type userError struct {
	err error
}

func (e *userError) Error() string { return e.err.Error() }
func (e *userError) Unwrap() error { return e.err }

func userErrorf(format string, args ...any) error {
	return &userError{fmt.Errorf(format, args...)}
}

// classify turns field-level failures into user errors.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, dynfield.ErrFieldAlreadyExists),
		errors.Is(err, dynfield.ErrFieldDoesNotExist),
		errors.Is(err, dynfield.ErrFieldTypeMismatch),
		errors.Is(err, dynfield.ErrKeyEncoding):
		return &userError{err}
	default:
		return err
	}
}

func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ue *userError
	if errors.As(err, &ue) {
		return exitUserError
	}
	return exitSysError
}

// app holds the state shared by subcommands of one invocation.
type app struct {
	flagConfigDir string
	flagDataDir   string
	flagBackend   string

	db *dynfield.DB
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dynfield",
		Short:         "Inspect and edit dynamic fields attached to objects",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd)
		},
	}
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &userError{err}
	})
	rootCmd.PersistentFlags().StringVar(&a.flagConfigDir, "config-dir", "", "configuration directory (default: $(CWD)/.dynfield)")
	rootCmd.PersistentFlags().StringVar(&a.flagDataDir, "data-dir", "", "data directory (default: $(CWD)/.dynfield-db)")
	rootCmd.PersistentFlags().StringVar(&a.flagBackend, "backend", "", "storage backend: bolt, sqlite or memory (default from config)")

	rootCmd.AddCommand(
		newObjectCmd(),
		addCmd(a),
		getCmd(a),
		setCmd(a),
		removeCmd(a),
		existsCmd(a),
		dumpCmd(a),
		statsCmd(a),
	)
	return rootCmd
}

// run executes one CLI invocation and returns its exit code.
func run(args []string, stdout, stderr io.Writer) int {
	var a app
	cmd := newRootCmd(&a)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(stderr, "dynfield:", err)
	}
	return exitCode(err)
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &userError{err}
		}
		return nil
	}
}

func (a *app) open(cmd *cobra.Command) error {
	if cmd.Name() == "new-object" {
		return nil
	}
	configDir, err := resolveConfigDir(a.flagConfigDir)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return err
	}

	backendName := a.flagBackend
	if backendName == "" {
		backendName = cfg.GetString(cfgKeyBackend)
	}
	backend, err := dynfield.ParseBackend(backendName)
	if err != nil {
		return &userError{err}
	}

	var path string
	if backend != dynfield.BackendMemory {
		dataDir, err := resolveDataDir(a.flagDataDir, cfg.GetString(cfgKeyDataDir))
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("ensure data dir: %w", err)
		}
		path = filepath.Join(dataDir, "fields."+string(backend))
	}

	verbose := cfg.GetBool(cfgKeyVerbose)
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	a.db, err = dynfield.Open(path, dynfield.Options{
		Backend:  backend,
		Logger:   logger,
		Verbose:  verbose,
		MmapSize: cfg.GetInt(cfgKeyMmapSize),
	})
	return err
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// parseParent accepts a hex address as printed by new-object.
func parseParent(s string) (dynfield.UID, error) {
	addr, err := dynfield.ParseAddress(s)
	if err != nil {
		return dynfield.UID{}, &userError{err}
	}
	return dynfield.UIDFromAddress(addr), nil
}
