package deployment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"pullhook/internal/security"
)

// StepResolve is reported when the branch to synchronise cannot be determined.
const StepResolve = "resolve"

const refPrefix = "refs/heads/"

// Syncer synchronises a checkout with its remote. *Synchronizer implements it.
type Syncer interface {
	Sync(ctx context.Context, repoPath, branch string) (*SyncResult, error)
	CurrentBranch(ctx context.Context, repoPath string) (string, error)
}

// Report summarises one deployment.
type Report struct {
	Sync    *SyncResult
	Touched []TouchOutcome
}

// Deployer ties synchronisation and the restart signal together for a single
// checkout.
type Deployer struct {
	RepoPath   string
	Branch     string // watched branch, or security.WildcardBranch
	TouchPaths []string
	Syncer     Syncer
	Locks      *LockManager
	Logger     *slog.Logger
	Now        func() time.Time
}

// NewDeployer creates a deployer with its own lock manager.
func NewDeployer(repoPath, branch string, touchPaths []string, syncer Syncer, logger *slog.Logger) *Deployer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Deployer{
		RepoPath:   repoPath,
		Branch:     branch,
		TouchPaths: touchPaths,
		Syncer:     syncer,
		Locks:      NewLockManager(),
		Logger:     logger,
		Now:        time.Now,
	}
}

// Watches reports whether a pushed ref should be deployed. An empty ref is
// accepted so that payloads without a ref still synchronise the watched branch.
func (d *Deployer) Watches(ref string) bool {
	if d.Branch == security.WildcardBranch || ref == "" {
		return true
	}
	return ref == refPrefix+d.Branch
}

// TargetBranch picks the branch to synchronise. A fixed watched branch always
// wins; with the wildcard the pushed branch is used, falling back to whatever
// the checkout currently has checked out.
func (d *Deployer) TargetBranch(ctx context.Context, ref string) (string, error) {
	if d.Branch != security.WildcardBranch {
		return d.Branch, nil
	}
	if strings.HasPrefix(ref, refPrefix) {
		return strings.TrimPrefix(ref, refPrefix), nil
	}
	return d.Syncer.CurrentBranch(ctx, d.RepoPath)
}

// Deploy synchronises the checkout and, only if that succeeded, touches the
// watched files. Deployments of the same checkout are serialised.
func (d *Deployer) Deploy(ctx context.Context, ref string) (*Report, error) {
	d.Locks.Lock(d.RepoPath)
	defer d.Locks.Unlock(d.RepoPath)

	branch, err := d.TargetBranch(ctx, ref)
	if err != nil {
		d.Logger.Error("Cannot determine branch to synchronise", "repo", d.RepoPath, "ref", ref, "error", err)
		return &Report{}, &SyncError{Step: StepResolve, ExitCode: -1, Err: err}
	}

	d.Logger.Info("Pulling latest changes", "repo", d.RepoPath, "branch", branch)

	result, err := d.Syncer.Sync(ctx, d.RepoPath, branch)
	if err != nil {
		attrs := []any{"repo", d.RepoPath, "branch", branch, "error", err}
		var syncErr *SyncError
		if errors.As(err, &syncErr) {
			attrs = append(attrs, "step", syncErr.Step, "exit_code", syncErr.ExitCode, "stderr", syncErr.Stderr)
		}
		d.Logger.Error("Git synchronisation failed", attrs...)
		return &Report{Sync: result}, err
	}

	d.Logger.Info("Git synchronisation completed",
		"repo", d.RepoPath,
		"branch", branch,
		"duration_ms", result.Duration.Milliseconds(),
		"output", result.Stdout)

	return &Report{Sync: result, Touched: d.Signal()}, nil
}

// Signal touches the watched files without synchronising.
func (d *Deployer) Signal() []TouchOutcome {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}

	outcomes := Touch(d.RepoPath, d.TouchPaths, now())
	for _, o := range outcomes {
		switch o.Status {
		case TouchTouched:
			d.Logger.Info("Touched file", "path", o.Path)
		case TouchMissing:
			d.Logger.Warn("File does not exist", "path", o.Path)
		default:
			d.Logger.Warn("Could not touch file", "path", o.Path, "status", string(o.Status), "error", o.Err)
		}
	}
	return outcomes
}
