package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration that results from flags, environment variables and
the config file, as YAML. Secrets are redacted. Exits non-zero if the
configuration would be rejected by serve.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	fs := configCmd.Flags()
	addCheckoutFlags(fs)
	fs.String("host", "127.0.0.1", "Host to bind to")
	fs.IntP("port", "p", 8081, "Port to listen on")
	fs.String("db-path", "", "SQLite database for delivery history")
	fs.String("status-context", "pullhook", "Context name of commit statuses")
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cfg.File != "" {
		fmt.Fprintf(out, "# loaded from %s\n", cfg.File)
	}

	redacted := cfg.Redacted()
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(&redacted); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}

	for _, w := range cfg.Warnings() {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}

	return cfg.ValidationError()
}
