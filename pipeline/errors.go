// Package pipeline orchestrates the SynthSeg segmentation run: subprocess
// execution with captured output, artifact verification, spreadsheet
// conversion, and cleanup.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInputNotFound   = errors.New("input file not found")
	ErrNotConfigured   = errors.New("toolkit not configured")
	ErrPredictMissing  = errors.New("predict script not found")
	ErrArtifactMissing = errors.New("artifact not created")
)

// CommandError reports a subprocess that exited non-zero, carrying its exit
// code and captured output.
type CommandError struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	if detail := tailOf(e.Stderr); detail != "" {
		return msg + ": " + detail
	}
	if detail := tailOf(e.Stdout); detail != "" {
		return msg + ": " + detail
	}
	return msg
}

// tailOf trims captured output down to its informative tail. Long tracebacks
// end with the actual error, so the last lines carry the message.
func tailOf(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 3 {
		lines = lines[len(lines)-3:]
	}
	out := strings.Join(lines, " | ")
	if len(out) > 300 {
		out = out[len(out)-300:]
	}
	return out
}
