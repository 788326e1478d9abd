package models

import (
	"strings"
	"time"
)

// Run lifecycle statuses.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusStopped   = "stopped"
)

// Run records one segmentation run and its artifacts.
type Run struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Status           string     `gorm:"default:'queued';index" json:"status"`
	InputPath        string     `gorm:"not null" json:"input_path"`
	OutputDir        string     `gorm:"not null" json:"output_dir"`
	KeepCSV          bool       `gorm:"default:false" json:"keep_csv"`
	SegmentationPath string     `json:"segmentation_path,omitempty"`
	ReportPath       string     `json:"report_path,omitempty"`
	CSVPath          string     `json:"csv_path,omitempty"`
	ExitCode         int        `json:"exit_code"`
	Stdout           string     `gorm:"type:text" json:"stdout,omitempty"`
	Stderr           string     `gorm:"type:text" json:"stderr,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	DurationMS       int64      `json:"duration_ms"`
}

// Active reports whether the run still owns a worker.
func (r *Run) Active() bool {
	return r.Status == StatusQueued || r.Status == StatusRunning
}

// RunCreate request payload for starting a run
type RunCreate struct {
	InputPath string `json:"input_path" binding:"required"`
	OutputDir string `json:"output_dir"`
	KeepCSV   bool   `json:"keep_csv"`
}

// Normalize trims whitespace from input fields
func (r *RunCreate) Normalize() {
	r.InputPath = strings.TrimSpace(r.InputPath)
	r.OutputDir = strings.TrimSpace(r.OutputDir)
}

// RunRead response model for run listings; captured output is omitted to
// keep list payloads small
type RunRead struct {
	ID           uint       `json:"id"`
	Status       string     `json:"status"`
	InputPath    string     `json:"input_path"`
	OutputDir    string     `json:"output_dir"`
	KeepCSV      bool       `json:"keep_csv"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	DurationMS   int64      `json:"duration_ms"`
}

// View converts a Run to its listing form.
func (r *Run) View() RunRead {
	return RunRead{
		ID:           r.ID,
		Status:       r.Status,
		InputPath:    r.InputPath,
		OutputDir:    r.OutputDir,
		KeepCSV:      r.KeepCSV,
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt,
		FinishedAt:   r.FinishedAt,
		DurationMS:   r.DurationMS,
	}
}

// ToolkitUpdate request payload for saving toolkit paths
type ToolkitUpdate struct {
	SynthSegPath string `json:"synthseg_path" binding:"required"`
	PythonPath   string `json:"python_path" binding:"required"`
}

// Normalize trims whitespace from input fields
func (u *ToolkitUpdate) Normalize() {
	u.SynthSegPath = strings.TrimSpace(u.SynthSegPath)
	u.PythonPath = strings.TrimSpace(u.PythonPath)
}
