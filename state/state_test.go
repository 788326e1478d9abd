package state

import (
	"context"
	"fmt"
	"testing"
	"time"

	"segbridge/models"
)

func newTestState() *AppState {
	return &AppState{Sessions: make(map[uint]*RunSession)}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestState()

	ctx, cancel := context.WithCancel(context.Background())
	s.AddSession(7, &RunSession{
		RunID:     7,
		StartedAt: time.Now(),
		Cancel:    cancel,
		Progress:  NewProgressBuffer(10),
	})

	if !s.SessionExists(7) {
		t.Fatalf("session should exist")
	}
	if s.SessionCount() != 1 {
		t.Fatalf("count = %d, want 1", s.SessionCount())
	}

	session, ok := s.GetSession(7)
	if !ok || session.RunID != 7 {
		t.Fatalf("unexpected session: %+v ok=%v", session, ok)
	}

	if !s.CancelAndRemoveSession(7) {
		t.Fatalf("cancel should report success")
	}
	select {
	case <-ctx.Done():
	default:
		t.Fatalf("context should be cancelled")
	}
	if s.SessionExists(7) {
		t.Fatalf("session should be gone")
	}

	if s.CancelAndRemoveSession(7) {
		t.Fatalf("second cancel should report false")
	}
}

func TestRemoveSessionWithoutCancel(t *testing.T) {
	s := newTestState()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.AddSession(1, &RunSession{RunID: 1, Cancel: cancel})

	s.RemoveSession(1)
	if s.SessionExists(1) {
		t.Fatalf("session should be removed")
	}
	select {
	case <-ctx.Done():
		t.Fatalf("RemoveSession must not cancel the run")
	default:
	}
}

func TestReserveEnforcesLimit(t *testing.T) {
	s := newTestState()

	if !s.Reserve(1) {
		t.Fatalf("first reservation should succeed")
	}
	if s.Reserve(1) {
		t.Fatalf("second reservation should be refused while one is pending")
	}

	s.CommitSession(3, &RunSession{RunID: 3})
	if s.SessionCount() != 1 {
		t.Fatalf("count = %d, want 1", s.SessionCount())
	}
	if s.Reserve(1) {
		t.Fatalf("reservation should be refused while a session is live")
	}

	s.RemoveSession(3)
	if !s.Reserve(1) {
		t.Fatalf("slot should free up once the session is gone")
	}
	s.Release()
	if !s.Reserve(1) {
		t.Fatalf("released reservation should free its slot")
	}
}

func TestErrorFeed(t *testing.T) {
	feed := &ErrorFeed{logs: make([]*models.ErrorLog, 0, 3), maxLogs: 3}

	feed.Log("ERROR", "pipeline", "segmentation failed", "exit 3", map[string]interface{}{"run_id": 1})
	feed.Log("WARN", "report", "excel export failed", "", nil)

	recent := feed.Recent()
	if len(recent) != 2 {
		t.Fatalf("recent = %d entries, want 2", len(recent))
	}
	// Latest first.
	if recent[0].Source != "report" || recent[1].Source != "pipeline" {
		t.Fatalf("unexpected order: %s, %s", recent[0].Source, recent[1].Source)
	}
	if recent[1].Context == "" {
		t.Fatalf("context should be serialized")
	}

	for i := 0; i < 5; i++ {
		feed.Log("ERROR", "run", fmt.Sprintf("failure %d", i), "", nil)
	}
	recent = feed.Recent()
	if len(recent) != 3 {
		t.Fatalf("feed should cap at 3 entries, got %d", len(recent))
	}
	if recent[0].Message != "failure 4" {
		t.Fatalf("latest entry = %q", recent[0].Message)
	}

	feed.Clear()
	if len(feed.Recent()) != 0 {
		t.Fatalf("feed should be empty after clear")
	}
}
