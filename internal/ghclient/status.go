package ghclient

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/go-github/v57/github"
)

// State is a GitHub commit status state.
type State string

const (
	StateSuccess State = "success"
	StateFailure State = "failure"
)

// GitHub rejects descriptions longer than this many characters.
const maxDescriptionLen = 140

// ReportStatus sets the status of sha in the repository named by fullName
// ("owner/repo").
func (c *Client) ReportStatus(ctx context.Context, fullName, sha string, state State, description string) error {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return err
	}
	if sha == "" {
		return fmt.Errorf("missing commit sha for %s", fullName)
	}

	status := &github.RepoStatus{
		State:       github.String(string(state)),
		Description: github.String(truncate(description, maxDescriptionLen)),
		Context:     github.String(c.statusContext),
	}

	c.logger.Debug("sending commit status",
		slog.String("repo", fullName), slog.String("sha", sha), slog.String("state", string(state)))

	_, resp, err := c.gh.Repositories.CreateStatus(ctx, owner, repo, sha, status)
	if err != nil {
		return fmt.Errorf("failed to create commit status for %s@%s (http %d): %w", fullName, sha, httpCode(resp), err)
	}

	c.logger.Debug("commit status sent", slog.String("repo", fullName), slog.String("sha", sha))
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
