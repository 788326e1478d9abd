package state

import (
	"bytes"
	"io"
	"sync"
)

// ProgressBuffer keeps the most recent output lines of an active run. Once
// full it evicts the oldest line and counts the drop; appends never block.
// Lines carry monotonic indices so pollers can resume where they left off.
type ProgressBuffer struct {
	mu      sync.Mutex
	lines   []string
	max     int
	total   uint64
	dropped uint64
}

// NewProgressBuffer creates a buffer holding at most max lines.
func NewProgressBuffer(max int) *ProgressBuffer {
	if max <= 0 {
		max = 500
	}
	return &ProgressBuffer{
		lines: make([]string, 0, max),
		max:   max,
	}
}

// Append adds one line, evicting the oldest when full.
func (b *ProgressBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.lines) >= b.max {
		b.lines = b.lines[1:]
		b.dropped++
	}
	b.lines = append(b.lines, line)
	b.total++
}

// Snapshot returns all retained lines plus the drop count.
func (b *ProgressBuffer) Snapshot() ([]string, uint64) {
	lines, _, dropped := b.SnapshotFrom(0)
	return lines, dropped
}

// SnapshotFrom returns the retained lines at or after the monotonic index
// from, the index to resume from next, and the drop count. Indices older than
// the retention window are clamped forward.
func (b *ProgressBuffer) SnapshotFrom(from uint64) ([]string, uint64, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	first := b.total - uint64(len(b.lines))
	if from < first {
		from = first
	}
	if from > b.total {
		from = b.total
	}

	out := make([]string, b.total-from)
	copy(out, b.lines[from-first:])
	return out, b.total, b.dropped
}

// Writer adapts the buffer to io.Writer for console-style output. Writes are
// split into lines; a trailing partial line is held until its newline
// arrives.
func (b *ProgressBuffer) Writer() io.Writer {
	return &lineWriter{buf: b}
}

type lineWriter struct {
	buf     *ProgressBuffer
	pending []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		w.buf.Append(string(w.pending[:i]))
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}

// Len returns the number of retained lines.
func (b *ProgressBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}
