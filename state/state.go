package state

import (
	"context"
	"sync"
	"time"
)

// RunSession tracks one active segmentation run: its cancel function and the
// live progress feed.
type RunSession struct {
	RunID     uint
	StartedAt time.Time
	Cancel    context.CancelFunc
	Progress  *ProgressBuffer
}

// AppState holds application state
type AppState struct {
	Sessions map[uint]*RunSession
	reserved int
	sync.RWMutex
}

// Global is the shared application state instance
var Global = &AppState{
	Sessions: make(map[uint]*RunSession),
}

// AddSession safely adds a session
func (s *AppState) AddSession(id uint, session *RunSession) {
	s.Lock()
	defer s.Unlock()
	s.Sessions[id] = session
}

// Reserve claims a run slot when fewer than limit sessions are live or
// pending. The claim stays held until CommitSession or Release, so two
// concurrent admissions can never both pass the limit check.
func (s *AppState) Reserve(limit int) bool {
	s.Lock()
	defer s.Unlock()
	if len(s.Sessions)+s.reserved >= limit {
		return false
	}
	s.reserved++
	return true
}

// Release drops a reservation that never became a session.
func (s *AppState) Release() {
	s.Lock()
	defer s.Unlock()
	if s.reserved > 0 {
		s.reserved--
	}
}

// CommitSession turns a held reservation into a live session.
func (s *AppState) CommitSession(id uint, session *RunSession) {
	s.Lock()
	defer s.Unlock()
	if s.reserved > 0 {
		s.reserved--
	}
	s.Sessions[id] = session
}

// GetSession safely fetches a session
func (s *AppState) GetSession(id uint) (*RunSession, bool) {
	s.RLock()
	defer s.RUnlock()
	session, exists := s.Sessions[id]
	return session, exists
}

// SessionExists checks whether a session exists
func (s *AppState) SessionExists(id uint) bool {
	s.RLock()
	defer s.RUnlock()
	_, exists := s.Sessions[id]
	return exists
}

// SessionCount returns the number of active sessions
func (s *AppState) SessionCount() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.Sessions)
}

// RemoveSession removes a session without cancelling it; the run goroutine
// calls this on its own way out.
func (s *AppState) RemoveSession(id uint) {
	s.Lock()
	defer s.Unlock()
	delete(s.Sessions, id)
}

// CancelAndRemoveSession cancels and removes a session. Cancellation runs
// outside the lock to avoid deadlocks with the run goroutine.
func (s *AppState) CancelAndRemoveSession(id uint) bool {
	s.Lock()
	session, exists := s.Sessions[id]
	if exists {
		delete(s.Sessions, id)
	}
	s.Unlock()

	if exists && session.Cancel != nil {
		session.Cancel()
		return true
	}
	return exists
}
