// Package ghclient talks to the GitHub REST API on behalf of pullhook: it
// posts commit statuses after a sync and registers the push webhook.
package ghclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// Client wraps an authenticated go-github client.
type Client struct {
	gh            *github.Client
	statusContext string
	logger        *slog.Logger
}

// New returns nil when token is empty, which disables every GitHub call.
func New(token, statusContext string, logger *slog.Logger) *Client {
	if token == "" {
		return nil
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	return &Client{
		gh:            github.NewClient(tc),
		statusContext: statusContext,
		logger:        logger.WithGroup("github"),
	}
}

// SetBaseURL points the client at another API root, such as a GitHub
// Enterprise server or a test double.
func (c *Client) SetBaseURL(raw string) error {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid API base URL %q: %w", raw, err)
	}
	c.gh.BaseURL = u
	return nil
}

// splitFullName splits "owner/repo".
func splitFullName(fullName string) (string, string, error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository name %q, expected owner/repo", fullName)
	}
	return owner, repo, nil
}

func httpCode(resp *github.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}
