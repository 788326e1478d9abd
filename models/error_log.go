package models

import "time"

// ErrorLog is one entry in the in-memory error feed. Sources are subsystem
// names (run, toolkit, pipeline).
type ErrorLog struct {
	ID        int       `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`   // ERROR, WARN, FATAL
	Source    string    `json:"source"`  // Subsystem that reported the error
	Message   string    `json:"message"` // Error message
	Detail    string    `json:"detail"`  // Detailed information
	Context   string    `json:"context"` // Context information (JSON format)
}
