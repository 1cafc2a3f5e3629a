package occtl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/racp/ocserv-agent/internal/testutil"
	"github.com/racp/ocserv-agent/pkg/apierror"
	"golang.org/x/sys/unix"
)

func newTestRunner(t *testing.T, body string, timeout time.Duration) *Runner {
	t.Helper()
	path := testutil.WriteScript(t, body)
	return NewRunner(RunnerConfig{Path: path, Timeout: timeout}, testutil.Logger())
}

func requireCode(t *testing.T, err error, code apierror.Code) *apierror.Error {
	t.Helper()
	apiErr, ok := apierror.As(err)
	if !ok {
		t.Fatalf("expected *apierror.Error with %s, got %v", code, err)
	}
	if apiErr.Code != code {
		t.Fatalf("expected %s got %s (%s)", code, apiErr.Code, apiErr.Message)
	}
	return apiErr
}

func TestRunPassesArgsAndTrimsOutput(t *testing.T) {
	t.Parallel()
	r := newTestRunner(t, `printf '%s\n' "$@"; echo warn >&2`, time.Second)
	ctx, cancel := testutil.Context(t)
	defer cancel()

	res, err := r.Run(ctx, "disconnect", "user", "alice smith")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Stdout != "disconnect\nuser\nalice smith" {
		t.Fatalf("unexpected stdout %q", res.Stdout)
	}
	if res.Stderr != "warn" {
		t.Fatalf("unexpected stderr %q", res.Stderr)
	}
}

func TestRunRejectsEmptyArgs(t *testing.T) {
	t.Parallel()
	r := NewRunner(RunnerConfig{Path: "/bin/true"}, testutil.Logger())
	_, err := r.Run(context.Background())
	requireCode(t, err, apierror.CodeBadRequest)
}

func TestRunMissingBinary(t *testing.T) {
	t.Parallel()
	r := NewRunner(RunnerConfig{Path: filepath.Join(t.TempDir(), "missing-occtl")}, testutil.Logger())
	_, err := r.Run(context.Background(), "show", "users")
	apiErr := requireCode(t, err, apierror.CodeOcctlNotFound)
	if apiErr.Status != 503 {
		t.Fatalf("expected 503 got %d", apiErr.Status)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	t.Parallel()
	r := newTestRunner(t, `echo "session not found" >&2; exit 3`, time.Second)
	_, err := r.Run(context.Background(), "disconnect", "id", "42")
	apiErr := requireCode(t, err, apierror.CodeOcctlFailed)
	if apiErr.Message != "occtl failed (exit=3)" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
	if apiErr.Details["exitCode"] != 3 {
		t.Fatalf("expected exitCode 3, got %v", apiErr.Details["exitCode"])
	}
	if apiErr.Details["stderr"] != "session not found" {
		t.Fatalf("unexpected stderr detail %v", apiErr.Details["stderr"])
	}
	if _, ok := apiErr.Details["permissionDenied"]; ok {
		t.Fatal("did not expect permissionDenied")
	}
}

func TestRunNonZeroExitKeepsStdoutWhenStderrEmpty(t *testing.T) {
	t.Parallel()
	r := newTestRunner(t, `echo "unknown command"; exit 1`, time.Second)
	_, err := r.Run(context.Background(), "show", "nothing")
	apiErr := requireCode(t, err, apierror.CodeOcctlFailed)
	if apiErr.Details["stdout"] != "unknown command" {
		t.Fatalf("expected stdout detail, got %v", apiErr.Details)
	}
}

func TestRunPermissionDenied(t *testing.T) {
	t.Parallel()
	r := newTestRunner(t, `echo "sudo: a password is required" >&2; exit 1`, time.Second)
	_, err := r.Run(context.Background(), "show", "users")
	apiErr := requireCode(t, err, apierror.CodeOcctlFailed)
	if apiErr.Details["permissionDenied"] != true {
		t.Fatalf("expected permissionDenied flag, got %v", apiErr.Details)
	}
	if !strings.Contains(apiErr.Message, "a password is required") {
		t.Fatalf("expected stderr in message, got %q", apiErr.Message)
	}
}

func TestRunStderrIsTruncated(t *testing.T) {
	t.Parallel()
	r := newTestRunner(t, `i=0; while [ $i -lt 100 ]; do printf 'xxxxxxxxxx' >&2; i=$((i+1)); done; exit 2`, time.Second)
	_, err := r.Run(context.Background(), "show", "users")
	apiErr := requireCode(t, err, apierror.CodeOcctlFailed)
	stderr, _ := apiErr.Details["stderr"].(string)
	if len(stderr) != stderrDetailMax {
		t.Fatalf("expected stderr truncated to %d, got %d", stderrDetailMax, len(stderr))
	}
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	t.Parallel()
	pidFile := filepath.Join(t.TempDir(), "pid")
	r := newTestRunner(t, `echo $$ > '`+pidFile+`'; exec sleep 5`, 200*time.Millisecond)

	start := time.Now()
	_, err := r.Run(context.Background(), "show", "users")
	elapsed := time.Since(start)

	apiErr := requireCode(t, err, apierror.CodeOcctlTimeout)
	if apiErr.Message != "occtl timed out after 200ms" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
	if elapsed > 3*time.Second {
		t.Fatalf("timeout took too long: %s", elapsed)
	}

	raw, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("read pid: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		t.Fatalf("parse pid: %v", err)
	}
	if err := unix.Kill(pid, 0); !errors.Is(err, unix.ESRCH) {
		t.Fatalf("expected process %d gone, kill(0) returned %v", pid, err)
	}
}

func TestRunTimeoutKillsChildren(t *testing.T) {
	t.Parallel()
	pidFile := filepath.Join(t.TempDir(), "child")
	r := newTestRunner(t, `sleep 5 & echo $! > '`+pidFile+`'; wait`, 200*time.Millisecond)

	_, err := r.Run(context.Background(), "show", "users")
	requireCode(t, err, apierror.CodeOcctlTimeout)

	raw, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("read pid: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		t.Fatalf("parse pid: %v", err)
	}
	// The orphaned child is reaped by init asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := unix.Kill(pid, 0); errors.Is(err, unix.ESRCH) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("child %d still running after timeout", pid)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestRunCanceledContext(t *testing.T) {
	t.Parallel()
	r := newTestRunner(t, `exec sleep 5`, 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	_, err := r.Run(ctx, "show", "users")
	apiErr := requireCode(t, err, apierror.CodeOcctlFailed)
	if apiErr.Message != "occtl canceled" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
}

func TestWithTimeoutCopies(t *testing.T) {
	t.Parallel()
	base := NewRunner(RunnerConfig{}, testutil.Logger())
	short := base.WithTimeout(time.Second)
	if base.timeout != DefaultTimeout || short.timeout != time.Second {
		t.Fatalf("unexpected timeouts base=%s short=%s", base.timeout, short.timeout)
	}
	if base.path != DefaultPath {
		t.Fatalf("expected default path, got %q", base.path)
	}
}

func TestBuildCommandSudo(t *testing.T) {
	t.Parallel()
	r := NewRunner(RunnerConfig{Path: "/usr/bin/occtl", UseSudo: true}, testutil.Logger())
	c := r.buildCommand([]string{"--json", "show", "users"})
	if c.name != "sudo" {
		t.Fatalf("expected sudo, got %q", c.name)
	}
	if strings.Join(c.args, " ") != "-n /usr/bin/occtl --json show users" {
		t.Fatalf("unexpected args %v", c.args)
	}
	if c.display != "sudo -n /usr/bin/occtl --json show users" {
		t.Fatalf("unexpected display %q", c.display)
	}

	plain := NewRunner(RunnerConfig{Path: "/usr/bin/occtl"}, testutil.Logger()).buildCommand([]string{"show", "status"})
	if plain.name != "/usr/bin/occtl" || plain.display != "/usr/bin/occtl show status" {
		t.Fatalf("unexpected plain command %+v", plain)
	}
}

func TestCappedBuffer(t *testing.T) {
	t.Parallel()
	b := newCappedBuffer(5)
	n, err := b.Write([]byte("abc"))
	if err != nil || n != 3 {
		t.Fatalf("write: n=%d err=%v", n, err)
	}
	n, _ = b.Write([]byte("defgh"))
	if n != 5 {
		t.Fatalf("expected full length reported, got %d", n)
	}
	if b.String() != "abcde" || !b.Truncated() {
		t.Fatalf("unexpected buffer %q truncated=%v", b.String(), b.Truncated())
	}
}
