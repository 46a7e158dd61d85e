package ghclient

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/go-github/v57/github"
)

// EnsureWebhook makes sure the repository has an active push webhook that
// delivers JSON to hookURL signed with secret. An existing hook with the same
// URL is left untouched. It reports whether a hook was created.
func (c *Client) EnsureWebhook(ctx context.Context, fullName, hookURL, secret string) (bool, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return false, err
	}

	opts := &github.ListOptions{PerPage: 100}
	for {
		hooks, resp, err := c.gh.Repositories.ListHooks(ctx, owner, repo, opts)
		if err != nil {
			return false, fmt.Errorf("listing webhooks of %s (http %d): %w", fullName, httpCode(resp), err)
		}

		for _, hook := range hooks {
			if url, ok := hook.Config["url"].(string); ok && url == hookURL {
				c.logger.Info("webhook already exists", slog.String("repo", fullName), slog.Int64("id", hook.GetID()))
				return false, nil
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	hookConfig := map[string]interface{}{
		"url":          hookURL,
		"content_type": "json",
		"insecure_ssl": "0",
	}
	if secret != "" {
		hookConfig["secret"] = secret
	}

	hook := &github.Hook{
		Events: []string{"push"},
		Active: github.Bool(true),
		Config: hookConfig,
	}

	created, resp, err := c.gh.Repositories.CreateHook(ctx, owner, repo, hook)
	if err != nil {
		return false, fmt.Errorf("creating webhook on %s (http %d): %w", fullName, httpCode(resp), err)
	}

	c.logger.Info("webhook created", slog.String("repo", fullName), slog.Int64("id", created.GetID()))
	return true, nil
}
