package main

import (
	"fmt"

	"pullhook/internal/security"

	"github.com/spf13/cobra"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Generate a random webhook secret",
	Long: `Print a random secret suitable for webhook_secret. Configure the same value
as the webhook secret in the GitHub repository settings.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := security.GenerateSecret()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), secret)
		return err
	},
}
