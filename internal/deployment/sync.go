package deployment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pullhook/internal/security"
	"pullhook/pkg/cmdutil"
)

// Git steps reported in SyncError.Step.
const (
	StepFetch = "fetch"
	StepReset = "reset"
)

// SyncResult is the outcome of one fetch + hard reset attempt.
type SyncResult struct {
	Branch   string
	Success  bool
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// SyncError is returned when a git step exits non-zero or cannot be run.
// Stderr holds everything git wrote to standard error up to the failure.
type SyncError struct {
	Step     string
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *SyncError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("git %s failed (exit code %d): %s", e.Step, e.ExitCode, msg)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Synchronizer brings a checkout in line with its remote branch.
type Synchronizer struct {
	// Timeout bounds each git invocation. Zero means no timeout.
	Timeout time.Duration

	// Env is appended to the inherited environment of git.
	Env []string

	guard *security.CommandGuard
}

// NewSynchronizer creates a synchronizer that runs the git binary from PATH.
func NewSynchronizer(timeout time.Duration) *Synchronizer {
	return &Synchronizer{
		Timeout: timeout,
		Env:     []string{"GIT_TERMINAL_PROMPT=0"},
		guard:   security.NewGitGuard(),
	}
}

// Sync runs `git fetch origin <branch>` followed by
// `git reset --hard origin/<branch>` inside repoPath. The reset is skipped when
// the fetch fails. Output of both steps is accumulated in the result.
func (s *Synchronizer) Sync(ctx context.Context, repoPath, branch string) (*SyncResult, error) {
	if err := security.ValidateBranchName(branch); err != nil {
		return nil, &SyncError{Step: StepFetch, ExitCode: -1, Err: fmt.Errorf("invalid branch name: %w", err)}
	}

	syncResult := &SyncResult{Branch: branch, ExitCode: -1}
	start := time.Now()
	defer func() { syncResult.Duration = time.Since(start) }()

	var stdout, stderr strings.Builder
	steps := []struct {
		name string
		args []string
	}{
		{StepFetch, []string{"git", "fetch", "origin", branch}},
		{StepReset, []string{"git", "reset", "--hard", "origin/" + branch}},
	}

	for _, step := range steps {
		result, err := s.run(ctx, repoPath, step.args)
		if result != nil {
			stdout.Write(result.Stdout)
			stderr.Write(result.Stderr)
			syncResult.ExitCode = result.ExitCode
		}
		syncResult.Stdout = stdout.String()
		syncResult.Stderr = stderr.String()

		if err != nil {
			return syncResult, &SyncError{
				Step:     step.name,
				Command:  cmdutil.FormatCommand(step.args),
				ExitCode: syncResult.ExitCode,
				Stderr:   syncResult.Stderr,
				Err:      err,
			}
		}
	}

	syncResult.Success = true
	return syncResult, nil
}

// CurrentBranch returns the branch currently checked out in repoPath.
func (s *Synchronizer) CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	result, err := s.run(ctx, repoPath, []string{"git", "rev-parse", "--abbrev-ref", "HEAD"})
	if err != nil {
		stderr := ""
		if result != nil {
			stderr = strings.TrimSpace(string(result.Stderr))
		}
		return "", fmt.Errorf("failed to determine current branch: %w: %s", err, stderr)
	}

	branch := strings.TrimSpace(string(result.Stdout))
	if branch == "HEAD" {
		return "", fmt.Errorf("checkout at %s is in detached HEAD state", repoPath)
	}
	return branch, nil
}

func (s *Synchronizer) run(ctx context.Context, dir string, args []string) (*cmdutil.Result, error) {
	guard := s.guard
	if guard == nil {
		guard = security.NewGitGuard()
	}
	if err := guard.ValidateCommandParts(args); err != nil {
		return nil, err
	}

	return cmdutil.Run(ctx, cmdutil.ExecOptions{
		Dir:     dir,
		Timeout: s.Timeout,
		Env:     s.Env,
	}, args)
}
