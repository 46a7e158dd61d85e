package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pullhook/internal/deployment"

	"github.com/spf13/cobra"
)

var syncRef string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronise the checkout once and touch the watched files",
	Long: `Run the same fetch, hard reset and touch sequence a webhook delivery triggers,
without waiting for a push. Local changes in the checkout are discarded.`,
	Example: `  pullhook sync --repo-path /srv/app --branch main
  pullhook sync --branch '*' --ref refs/heads/release`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	addCheckoutFlags(syncCmd.Flags())
	syncCmd.Flags().StringVar(&syncRef, "ref", "", "Pushed ref to act on (refs/heads/<branch>); used with the wildcard branch")
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadValidConfig(cmd)
	if err != nil {
		return err
	}

	logger, closer, err := setupLogging(cfg.LogFile, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer closer.Close()

	deployer := newDeployer(cfg, logger)
	if !deployer.Watches(syncRef) {
		return fmt.Errorf("ref %s is not on the watched branch %s", syncRef, cfg.Branch)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := deployer.Deploy(ctx, syncRef)
	out := cmd.OutOrStdout()
	if report != nil && report.Sync != nil {
		fmt.Fprint(out, report.Sync.Stdout)
		fmt.Fprint(cmd.ErrOrStderr(), report.Sync.Stderr)
	}
	if err != nil {
		var syncErr *deployment.SyncError
		if errors.As(err, &syncErr) {
			return fmt.Errorf("sync failed at %s step: %w", syncErr.Step, err)
		}
		return err
	}

	fmt.Fprintf(out, "Checkout %s reset to origin/%s in %s\n", cfg.RepoPath, report.Sync.Branch, report.Sync.Duration.Round(time.Millisecond))
	printTouchOutcomes(cmd, report.Touched)
	return nil
}
