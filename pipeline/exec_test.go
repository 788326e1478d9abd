package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// stubScript writes an executable shell script and returns its path.
func stubScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "stub")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestRunnerCapturesOutput(t *testing.T) {
	script := stubScript(t, "echo out-line\necho err-line >&2\n")

	var runner Runner
	res, err := runner.Run(context.Background(), script)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d", res.ExitCode)
	}
	if !strings.Contains(res.Stdout, "out-line") {
		t.Fatalf("stdout missing line: %q", res.Stdout)
	}
	if !strings.Contains(res.Stderr, "err-line") {
		t.Fatalf("stderr missing line: %q", res.Stderr)
	}
}

func TestRunnerMirrorsLines(t *testing.T) {
	script := stubScript(t, "echo one\necho two\necho three >&2\n")

	var lines []string
	runner := Runner{OnLine: func(line string) { lines = append(lines, line) }}
	if _, err := runner.Run(context.Background(), script); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 mirrored lines, got %d: %v", len(lines), lines)
	}
}

func TestRunnerNonZeroExit(t *testing.T) {
	script := stubScript(t, "echo boom >&2\nexit 7\n")

	var runner Runner
	res, err := runner.Run(context.Background(), script)
	if err == nil {
		t.Fatalf("expected error for non-zero exit")
	}

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *CommandError, got %T: %v", err, err)
	}
	if cmdErr.ExitCode != 7 || res.ExitCode != 7 {
		t.Fatalf("exit code = %d / %d, want 7", cmdErr.ExitCode, res.ExitCode)
	}
	if !strings.Contains(cmdErr.Error(), "boom") {
		t.Fatalf("error should carry stderr tail: %q", cmdErr.Error())
	}
}

func TestRunnerStartFailure(t *testing.T) {
	var runner Runner
	if _, err := runner.Run(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing executable")
	}
}

func TestRunnerCancellation(t *testing.T) {
	script := stubScript(t, "sleep 5\n")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	var runner Runner
	_, err := runner.Run(ctx, script)
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("process group was not killed promptly: %s", elapsed)
	}
}

func TestCommandErrorMessage(t *testing.T) {
	err := &CommandError{Command: "python", ExitCode: 2, Stderr: "Traceback\nValueError: bad input\n"}
	msg := err.Error()
	if !strings.Contains(msg, "python exited with code 2") {
		t.Fatalf("unexpected message: %q", msg)
	}
	if !strings.Contains(msg, "ValueError: bad input") {
		t.Fatalf("message should keep the traceback tail: %q", msg)
	}

	bare := &CommandError{Command: "python", ExitCode: 1}
	if bare.Error() != "python exited with code 1" {
		t.Fatalf("unexpected bare message: %q", bare.Error())
	}
}

func TestTailOfTruncatesLongOutput(t *testing.T) {
	long := strings.Repeat("x", 1000)
	if got := tailOf(long); len(got) != 300 {
		t.Fatalf("expected 300-char tail, got %d", len(got))
	}
	if got := tailOf("a\nb\nc\nd\ne"); got != "c | d | e" {
		t.Fatalf("expected last three lines, got %q", got)
	}
	if got := tailOf("  \n "); got != "" {
		t.Fatalf("expected empty tail, got %q", got)
	}
}
