package state

import (
	"fmt"
	"sync"
	"testing"
)

func TestProgressBufferAppendAndSnapshot(t *testing.T) {
	b := NewProgressBuffer(10)
	b.Append("one")
	b.Append("two")

	lines, dropped := b.Snapshot()
	if dropped != 0 {
		t.Fatalf("dropped = %d, want 0", dropped)
	}
	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestProgressBufferEviction(t *testing.T) {
	b := NewProgressBuffer(3)
	for i := 0; i < 5; i++ {
		b.Append(fmt.Sprintf("line-%d", i))
	}

	lines, dropped := b.Snapshot()
	if dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}
	if len(lines) != 3 || lines[0] != "line-2" || lines[2] != "line-4" {
		t.Fatalf("unexpected retained lines: %v", lines)
	}
}

func TestProgressBufferSnapshotFrom(t *testing.T) {
	b := NewProgressBuffer(10)
	for i := 0; i < 4; i++ {
		b.Append(fmt.Sprintf("line-%d", i))
	}

	lines, next, _ := b.SnapshotFrom(2)
	if len(lines) != 2 || lines[0] != "line-2" || lines[1] != "line-3" {
		t.Fatalf("unexpected tail: %v", lines)
	}
	if next != 4 {
		t.Fatalf("next = %d, want 4", next)
	}

	// Resuming at next returns nothing until more lines arrive.
	lines, next, _ = b.SnapshotFrom(next)
	if len(lines) != 0 || next != 4 {
		t.Fatalf("expected empty resume, got %v next=%d", lines, next)
	}

	b.Append("line-4")
	lines, _, _ = b.SnapshotFrom(next)
	if len(lines) != 1 || lines[0] != "line-4" {
		t.Fatalf("expected only the new line, got %v", lines)
	}
}

func TestProgressBufferClampsStaleCursor(t *testing.T) {
	b := NewProgressBuffer(2)
	for i := 0; i < 6; i++ {
		b.Append(fmt.Sprintf("line-%d", i))
	}

	// Index 0 fell out of the window long ago.
	lines, next, dropped := b.SnapshotFrom(0)
	if len(lines) != 2 || lines[0] != "line-4" {
		t.Fatalf("unexpected clamped lines: %v", lines)
	}
	if next != 6 || dropped != 4 {
		t.Fatalf("next=%d dropped=%d", next, dropped)
	}
}

func TestProgressBufferConcurrentAppend(t *testing.T) {
	b := NewProgressBuffer(50)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Append(fmt.Sprintf("w%d-%d", n, j))
			}
		}(i)
	}
	wg.Wait()

	lines, dropped := b.Snapshot()
	if len(lines) != 50 {
		t.Fatalf("retained = %d, want 50", len(lines))
	}
	if dropped != 350 {
		t.Fatalf("dropped = %d, want 350", dropped)
	}
}
