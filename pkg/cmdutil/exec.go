package cmdutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// ExecOptions configures command execution.
type ExecOptions struct {
	// Dir is the working directory for the command.
	Dir string

	// Timeout is the maximum execution time.
	// If zero, no timeout is applied.
	Timeout time.Duration

	// Env contains extra environment variables for the command, appended to the
	// inherited environment. Each entry should be in the form "KEY=value".
	Env []string
}

// Result contains the result of a command execution.
type Result struct {
	Stdout []byte
	Stderr []byte

	// ExitCode is the exit code of the command, or -1 if it never started
	// or was killed by a signal.
	ExitCode int

	// Duration is how long the command took to execute.
	Duration time.Duration
}

// OK reports whether the command exited with status zero.
func (r *Result) OK() bool {
	return r != nil && r.ExitCode == 0
}

// Run executes a command with the given options.
//
// Stdout and stderr are written into unbounded buffers while the child runs, so a
// chatty process can never block on a full pipe and nothing is truncated. A
// non-nil Result is always returned, even when err is set.
func Run(ctx context.Context, opts ExecOptions, cmdParts []string) (*Result, error) {
	result := &Result{ExitCode: -1}
	if len(cmdParts) == 0 {
		return result, fmt.Errorf("empty command")
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, cmdParts[0], cmdParts[1:]...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(cmd.Environ(), opts.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result.Duration = time.Since(start)
	result.Stdout = stdout.Bytes()
	result.Stderr = stderr.Bytes()

	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("command %s: %w", FormatCommand(cmdParts), ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return result, fmt.Errorf("command %s exited with code %d", FormatCommand(cmdParts), result.ExitCode)
		}
		return result, fmt.Errorf("command %s failed: %w", FormatCommand(cmdParts), err)
	}

	return result, nil
}

// FormatCommand formats command parts into a readable string for logging.
// Example: ["git", "commit", "-m", "my message"] -> "git commit -m 'my message'"
func FormatCommand(cmdParts []string) string {
	if len(cmdParts) == 0 {
		return "<empty command>"
	}

	quoted := make([]string, len(cmdParts))
	for i, part := range cmdParts {
		if part == "" || strings.ContainsAny(part, " \t\n\"'$`\\;&|*?") {
			quoted[i] = shellquote.Join(part)
		} else {
			quoted[i] = part
		}
	}

	return strings.Join(quoted, " ")
}

// SanitizeOutput removes sensitive information from command output.
func SanitizeOutput(output []byte, secrets []string) []byte {
	sanitized := string(output)
	for _, secret := range secrets {
		if secret != "" {
			sanitized = strings.ReplaceAll(sanitized, secret, "***REDACTED***")
		}
	}
	return []byte(sanitized)
}
