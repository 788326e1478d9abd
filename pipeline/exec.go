package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Result holds the outcome of a completed subprocess.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner executes external commands with both streams captured. OnLine, when
// set, receives every output line as it is produced so callers can mirror
// subprocess progress without waiting for exit. Lines from stdout and stderr
// are delivered one at a time.
type Runner struct {
	OnLine func(line string)

	lineMu sync.Mutex
}

// Run starts name with args and waits for it to finish. A cancelled context
// kills the whole process group and returns the context error with whatever
// output was captured up to that point. A non-zero exit returns a
// *CommandError alongside the Result.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	cmd := exec.Command(name, args...)
	setProcAttr(cmd)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	var stdout, stderr strings.Builder
	var wg sync.WaitGroup
	wg.Add(2)
	go r.drain(stdoutPipe, &stdout, &wg)
	go r.drain(stderrPipe, &stderr, &wg)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	done := make(chan error, 1)
	go func() {
		wg.Wait()
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		killProcess(cmd)
		<-done
		res := &Result{
			ExitCode: -1,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
		}
		return res, fmt.Errorf("%s cancelled: %w", filepath.Base(name), ctx.Err())
	case err = <-done:
	}

	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
			return res, &CommandError{
				Command:  filepath.Base(name),
				ExitCode: res.ExitCode,
				Stdout:   res.Stdout,
				Stderr:   res.Stderr,
			}
		}
		return res, fmt.Errorf("failed to run %s: %w", name, err)
	}
	return res, nil
}

// drain copies one output stream line by line into sink, mirroring each line
// to OnLine when set.
func (r *Runner) drain(src io.Reader, sink *strings.Builder, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(src)
	// Training frameworks print long progress lines; allow up to 1 MiB.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		sink.WriteString(line)
		sink.WriteByte('\n')
		if r.OnLine != nil {
			r.lineMu.Lock()
			r.OnLine(line)
			r.lineMu.Unlock()
		}
	}
}
