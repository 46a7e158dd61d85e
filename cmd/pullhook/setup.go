package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"pullhook/internal/config"
	"pullhook/internal/deployment"
	"pullhook/internal/security"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// addCheckoutFlags registers the flags shared by every command that works on
// the checkout. A flag only takes effect when set explicitly.
func addCheckoutFlags(fs *pflag.FlagSet) {
	fs.String("repo-path", config.DefaultRepoPath, "Absolute path of the git checkout to keep in sync")
	fs.StringP("branch", "b", config.DefaultBranch, `Branch to watch, or "*" for any branch`)
	fs.StringSlice("touch-paths", []string{config.DefaultTouchPath}, "Files (relative to repo-path) to touch after a sync")
	fs.Duration("sync-timeout", 0, "Timeout for each git command (0 = no timeout)")
	fs.Bool("debug", false, "Enable debug logging")
	fs.String("log-file", "", "Also write JSON logs to this file")
}

// loadConfig merges flags, environment and config file for cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return nil, err
	}
	return config.Load(v, configFile)
}

// loadValidConfig is loadConfig plus validation.
func loadValidConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidationError(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging builds a JSON logger writing to stdout and, when logPath is
// set, to the file too. The returned closer is never nil.
func setupLogging(logPath string, debug bool) (*slog.Logger, io.Closer, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	var closer io.Closer = io.NopCloser(nil)

	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), security.PermDirectory); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, security.PermLogFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}

		out = io.MultiWriter(os.Stdout, file)
		closer = file
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(handler), closer, nil
}

// newDeployer wires the git synchronizer into a deployer for cfg.
func newDeployer(cfg *config.Config, logger *slog.Logger) *deployment.Deployer {
	syncer := deployment.NewSynchronizer(cfg.SyncTimeout)
	return deployment.NewDeployer(cfg.RepoPath, cfg.Branch, cfg.TouchPaths, syncer, logger)
}

func logWarnings(logger *slog.Logger, cfg *config.Config) {
	for _, w := range cfg.Warnings() {
		logger.Warn("Configuration warning", "warning", w)
	}
}
