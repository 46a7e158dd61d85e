package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev" // set with -ldflags

var configFile string

var rootCmd = &cobra.Command{
	Use:   "pullhook",
	Short: "Keep a checkout in sync with pushes to GitHub",
	Long: `pullhook receives GitHub push webhooks, resets a local checkout to the pushed
branch with git fetch and git reset --hard, and then touches a set of files so
that a file-watching supervisor restarts the application.

Settings come from flags, PULLHOOK_* environment variables and pullhook.yaml,
in that order of precedence.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to pullhook.yaml (default: search ./, ./config/, /etc/pullhook/)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(touchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(secretCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(versionCmd)
}
