package occtl

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/racp/ocserv-agent/pkg/apierror"
	"github.com/rs/zerolog"
)

const (
	DefaultPath    = "/usr/bin/occtl"
	DefaultTimeout = 5 * time.Second

	maxStdout       = 4 << 20
	maxStderr       = 64 << 10
	stderrDetailMax = 500
	// waitDelay bounds how long Wait keeps reading pipes inherited by
	// grandchildren after the process itself has been killed.
	waitDelay = 500 * time.Millisecond
)

var permissionMarkers = []string{"a password is required", "not allowed", "permission"}

// Executor runs occtl with the given arguments.
type Executor interface {
	Run(ctx context.Context, args ...string) (Result, error)
}

// Result is the captured output of a zero-exit invocation.
type Result struct {
	Stdout string
	Stderr string
}

type RunnerConfig struct {
	Path    string
	UseSudo bool
	Timeout time.Duration
}

// Runner spawns one occtl process per call under a hard deadline. It holds no
// mutable state and is safe for concurrent use.
type Runner struct {
	path    string
	useSudo bool
	timeout time.Duration
	logger  zerolog.Logger
}

func NewRunner(cfg RunnerConfig, logger zerolog.Logger) *Runner {
	r := &Runner{path: cfg.Path, useSudo: cfg.UseSudo, timeout: cfg.Timeout, logger: logger}
	if r.path == "" {
		r.path = DefaultPath
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	return r
}

// WithTimeout returns a copy of r with a different deadline.
func (r *Runner) WithTimeout(timeout time.Duration) *Runner {
	clone := *r
	if timeout > 0 {
		clone.timeout = timeout
	}
	return &clone
}

type command struct {
	name    string
	args    []string
	display string
}

// buildCommand wraps the invocation in `sudo -n` when elevation is enabled;
// -n makes sudo fail instead of prompting for a password.
func (r *Runner) buildCommand(args []string) command {
	if r.useSudo {
		full := append([]string{"-n", r.path}, args...)
		return command{name: "sudo", args: full, display: "sudo " + strings.Join(full, " ")}
	}
	return command{
		name:    r.path,
		args:    append([]string(nil), args...),
		display: strings.TrimSpace(r.path + " " + strings.Join(args, " ")),
	}
}

// Run executes occtl and classifies the outcome. A nil error means the
// process exited zero; every failure is an *apierror.Error.
func (r *Runner) Run(ctx context.Context, args ...string) (Result, error) {
	if len(args) == 0 {
		return Result{}, apierror.BadRequest("occtl: args must be a non-empty list")
	}
	c := r.buildCommand(args)

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.name, c.args...)
	configureProcess(cmd)
	cmd.WaitDelay = waitDelay
	stdout := newCappedBuffer(maxStdout)
	stderr := newCappedBuffer(maxStderr)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if runCtx.Err() != nil {
			apiErr := r.classify(runCtx, ctx, err, c.display, "", "")
			r.logFailure(apiErr, time.Since(start))
			return Result{}, apiErr
		}
		apiErr := apierror.Upstream(apierror.CodeOcctlNotFound, fmt.Sprintf("Failed to start occtl runner: %v", err)).
			WithDetail("display", c.display)
		r.logFailure(apiErr, time.Since(start))
		return Result{}, apiErr
	}
	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	out := strings.TrimRight(stdout.String(), " \t\r\n")
	errOut := strings.TrimRight(stderr.String(), " \t\r\n")
	if stdout.Truncated() {
		r.logger.Warn().Str("cmd", c.display).Int("limit", maxStdout).Msg("occtl stdout truncated")
	}

	if waitErr != nil {
		apiErr := r.classify(runCtx, ctx, waitErr, c.display, out, errOut)
		r.logFailure(apiErr, elapsed)
		return Result{}, apiErr
	}

	r.logger.Debug().Str("cmd", c.display).Dur("duration", elapsed).Str("outcome", "ok").Msg("occtl invocation")
	return Result{Stdout: out, Stderr: errOut}, nil
}

func (r *Runner) classify(runCtx, parent context.Context, waitErr error, display, stdout, stderr string) *apierror.Error {
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return apierror.Upstream(apierror.CodeOcctlTimeout, fmt.Sprintf("occtl timed out after %dms", r.timeout.Milliseconds())).
			WithDetail("display", display)
	}
	if parent.Err() != nil {
		return apierror.Upstream(apierror.CodeOcctlFailed, "occtl canceled").
			WithDetail("display", display)
	}

	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return apierror.Upstream(apierror.CodeOcctlFailed, fmt.Sprintf("occtl runner error: %v", waitErr)).
			WithDetail("display", display)
	}

	exitCode := exitErr.ExitCode()
	if isPermissionDenied(stderr) {
		reason := stderr
		if reason == "" {
			reason = fmt.Sprintf("exit=%d", exitCode)
		}
		return apierror.Upstream(apierror.CodeOcctlFailed, "occtl permission error (sudoers?): "+truncate(reason, stderrDetailMax)).
			WithDetail("display", display).
			WithDetail("exitCode", exitCode).
			WithDetail("stderr", truncate(stderr, stderrDetailMax)).
			WithDetail("permissionDenied", true)
	}
	apiErr := apierror.Upstream(apierror.CodeOcctlFailed, fmt.Sprintf("occtl failed (exit=%d)", exitCode)).
		WithDetail("display", display).
		WithDetail("exitCode", exitCode).
		WithDetail("stderr", truncate(stderr, stderrDetailMax))
	if stderr == "" && stdout != "" {
		apiErr.WithDetail("stdout", truncate(stdout, stderrDetailMax))
	}
	return apiErr
}

func (r *Runner) logFailure(err *apierror.Error, elapsed time.Duration) {
	r.logger.Warn().
		Str("code", string(err.Code)).
		Dur("duration", elapsed).
		Interface("details", err.Details).
		Msg(err.Message)
}

func isPermissionDenied(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, marker := range permissionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
