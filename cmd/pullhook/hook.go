package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"pullhook/internal/ghclient"

	"github.com/spf13/cobra"
)

var (
	hookRepo string
	hookURL  string
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Register the push webhook on GitHub",
	Long: `Create a push webhook on the GitHub repository that delivers to this server,
signed with the configured webhook_secret. Nothing is changed if a webhook with
the same URL already exists. Requires github_token.`,
	Example: `  PULLHOOK_GITHUB_TOKEN=ghp_... pullhook hook --repo octo/app --url https://deploy.example.com/webhook`,
	Args:    cobra.NoArgs,
	RunE:    runHook,
}

func init() {
	hookCmd.Flags().StringVar(&hookRepo, "repo", "", "Repository as owner/repo (required)")
	hookCmd.Flags().StringVar(&hookURL, "url", "", "Public URL of the /webhook endpoint (required)")
	_ = hookCmd.MarkFlagRequired("repo")
	_ = hookCmd.MarkFlagRequired("url")
}

func runHook(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if u, err := url.Parse(hookURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid webhook URL %q", hookURL)
	}

	logger, closer, err := setupLogging(cfg.LogFile, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer closer.Close()

	client := ghclient.New(cfg.GitHubToken, cfg.StatusContext, logger)
	if client == nil {
		return errors.New("github_token is not configured")
	}
	if cfg.GitHubAPIURL != "" {
		if err := client.SetBaseURL(cfg.GitHubAPIURL); err != nil {
			return err
		}
	}
	if cfg.WebhookSecret == "" {
		logger.Warn("webhook_secret is empty, the webhook will be created unsigned")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	created, err := client.EnsureWebhook(ctx, hookRepo, hookURL, cfg.WebhookSecret)
	if err != nil {
		return err
	}

	if created {
		fmt.Fprintf(cmd.OutOrStdout(), "Webhook created on %s -> %s\n", hookRepo, hookURL)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Webhook already exists on %s -> %s\n", hookRepo, hookURL)
	}
	return nil
}
