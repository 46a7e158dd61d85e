package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"pullhook/internal/ghclient"
	"pullhook/internal/history"
	"pullhook/internal/security"
	"pullhook/internal/server"

	"github.com/spf13/cobra"
)

// shutdownTimeout bounds how long a running sync may delay exit.
const shutdownTimeout = 2 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Start the HTTP server that receives GitHub push webhooks on /webhook.

Each delivery is authenticated with the shared secret (when configured),
filtered by branch, and applied by resetting the checkout to the remote
branch. The response is sent once git has finished.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	fs := serveCmd.Flags()
	addCheckoutFlags(fs)
	fs.String("host", "127.0.0.1", "Host to bind to")
	fs.IntP("port", "p", 8081, "Port to listen on")
	fs.String("db-path", "", "SQLite database for delivery history (empty disables /status)")
	fs.String("status-context", "pullhook", "Context name of the commit statuses posted to GitHub")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadValidConfig(cmd)
	if err != nil {
		return err
	}

	logger, closer, err := setupLogging(cfg.LogFile, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer closer.Close()

	logger.Info("Starting pullhook", "version", version, "config", cfg.File)
	logWarnings(logger, cfg)

	var hist *history.History
	if cfg.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), security.PermDirectory); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
		logger.Info("Initializing history database", "db", cfg.DBPath)
		hist, err = history.NewHistory(cfg.DBPath)
		if err != nil {
			logger.Error("Failed to initialize history database", "error", err)
			return fmt.Errorf("failed to initialize history database: %w", err)
		}
	}

	reporter := ghclient.New(cfg.GitHubToken, cfg.StatusContext, logger)
	if reporter != nil {
		if cfg.GitHubAPIURL != "" {
			if err := reporter.SetBaseURL(cfg.GitHubAPIURL); err != nil {
				return err
			}
		}
		logger.Info("Commit status feedback enabled", "context", cfg.StatusContext)
	}

	srv := server.NewServer(cfg, newDeployer(cfg, logger), hist, reporter, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if hist != nil {
			hist.Close()
		}
		if err != nil {
			logger.Error("Server failed", "error", err)
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down, waiting for running deliveries")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
