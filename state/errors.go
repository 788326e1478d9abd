package state

import (
	"encoding/json"
	"sync"
	"time"

	"segbridge/models"
)

// ErrorFeed records recent errors in memory for the API to expose. Failures
// here mostly originate inside the external subprocess, so entries carry the
// subprocess detail rather than a Go stack.
type ErrorFeed struct {
	mu        sync.RWMutex
	logs      []*models.ErrorLog
	maxLogs   int
	idCounter int
}

// Errors is the shared error feed instance.
var Errors = &ErrorFeed{
	logs:    make([]*models.ErrorLog, 0, 100),
	maxLogs: 100,
}

// Log records one entry, evicting the oldest when full.
func (f *ErrorFeed) Log(level, source, message, detail string, contextData map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()

	contextJSON := ""
	if contextData != nil {
		if data, err := json.Marshal(contextData); err == nil {
			contextJSON = string(data)
		}
	}

	if len(f.logs) >= f.maxLogs {
		f.logs = f.logs[1:]
	}

	f.idCounter++
	f.logs = append(f.logs, &models.ErrorLog{
		ID:        f.idCounter,
		Timestamp: time.Now(),
		Level:     level,
		Source:    source,
		Message:   message,
		Detail:    detail,
		Context:   contextJSON,
	})
}

// Recent returns entries latest-first.
func (f *ErrorFeed) Recent() []*models.ErrorLog {
	f.mu.RLock()
	defer f.mu.RUnlock()

	total := len(f.logs)
	result := make([]*models.ErrorLog, total)
	for i := 0; i < total; i++ {
		result[i] = f.logs[total-1-i]
	}
	return result
}

// Clear removes all entries.
func (f *ErrorFeed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = make([]*models.ErrorLog, 0, f.maxLogs)
	f.idCounter = 0
}

// LogError records a simple error entry.
func LogError(source, message, detail string) {
	Errors.Log("ERROR", source, message, detail, nil)
}

// LogWarn records a warning entry.
func LogWarn(source, message, detail string) {
	Errors.Log("WARN", source, message, detail, nil)
}
