package main

import (
	"fmt"

	"pullhook/internal/deployment"

	"github.com/spf13/cobra"
)

var touchCmd = &cobra.Command{
	Use:   "touch",
	Short: "Touch the watched files without synchronising",
	Long: `Bump the modification time of every configured touch path so that the
supervisor restarts the application. This is what a webhook with ?test=true does.`,
	Args: cobra.NoArgs,
	RunE: runTouch,
}

func init() {
	addCheckoutFlags(touchCmd.Flags())
}

func runTouch(cmd *cobra.Command, args []string) error {
	cfg, err := loadValidConfig(cmd)
	if err != nil {
		return err
	}

	logger, closer, err := setupLogging(cfg.LogFile, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer closer.Close()

	printTouchOutcomes(cmd, newDeployer(cfg, logger).Signal())
	return nil
}

func printTouchOutcomes(cmd *cobra.Command, outcomes []deployment.TouchOutcome) {
	out := cmd.OutOrStdout()
	if len(outcomes) == 0 {
		fmt.Fprintln(out, "No touch paths configured")
		return
	}
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(out, "  %-8s %s (%v)\n", o.Status, o.Path, o.Err)
			continue
		}
		fmt.Fprintf(out, "  %-8s %s\n", o.Status, o.Path)
	}
}
