package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"segbridge/config"
	"segbridge/models"
	"segbridge/pipeline"
	"segbridge/state"
	"segbridge/toolkit"
)

var (
	// ErrTooManyRuns means the concurrent-run limit is reached.
	ErrTooManyRuns = errors.New("concurrent run limit reached")

	// ErrNotConfigured means the toolkit paths are missing or stale.
	ErrNotConfigured = errors.New("toolkit not configured")

	// ErrRunActive means the run still owns a worker goroutine.
	ErrRunActive = errors.New("run is active")
)

// RunService handles segmentation run business logic
type RunService struct {
	db       *gorm.DB
	appState *state.AppState
	tk       *toolkit.Manager
}

// NewRunService constructs a run service
func NewRunService(db *gorm.DB, appState *state.AppState, tk *toolkit.Manager) *RunService {
	return &RunService{db: db, appState: appState, tk: tk}
}

// ListPage returns runs with pagination, newest first.
func (s *RunService) ListPage(page, pageSize int) ([]models.Run, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	var total int64
	if err := s.db.Model(&models.Run{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	var runs []models.Run
	offset := (page - 1) * pageSize
	if err := s.db.Order("id desc").Offset(offset).Limit(pageSize).Find(&runs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, total, nil
}

// Get fetches a run by ID
func (s *RunService) Get(id uint) (*models.Run, error) {
	var run models.Run
	if err := s.db.First(&run, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("run not found: %d", id)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// CountByStatus returns run totals grouped by status.
func (s *RunService) CountByStatus() (map[string]int64, error) {
	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	if err := s.db.Model(&models.Run{}).
		Select("status, count(*) as total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}

// Create validates the request, persists a queued run, and starts its worker
// goroutine. The worker transitions the record through running and on to a
// terminal status.
func (s *RunService) Create(req models.RunCreate) (*models.Run, error) {
	req.Normalize()

	if req.InputPath == "" {
		return nil, fmt.Errorf("input_path is required")
	}
	if _, err := os.Stat(req.InputPath); err != nil {
		return nil, fmt.Errorf("input file not found: %s", req.InputPath)
	}

	if !s.tk.Configured() {
		return nil, fmt.Errorf("%w: set the SynthSeg and Python paths first", ErrNotConfigured)
	}

	// Reserve the run slot before touching the database; the reservation is
	// held until the session commits, so concurrent creates cannot all slip
	// past the limit between the check and the session registration.
	if !s.appState.Reserve(config.Settings.MaxConcurrentRuns) {
		return nil, fmt.Errorf("%w (%d)", ErrTooManyRuns, config.Settings.MaxConcurrentRuns)
	}

	run := models.Run{
		Status:    models.StatusQueued,
		InputPath: req.InputPath,
		OutputDir: req.OutputDir,
		KeepCSV:   req.KeepCSV,
	}
	if err := s.db.Create(&run).Error; err != nil {
		s.appState.Release()
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	// The default output directory needs the assigned ID, so it is filled in
	// after the insert.
	if run.OutputDir == "" {
		run.OutputDir = filepath.Join(config.Settings.RunsDir, fmt.Sprintf("run-%d", run.ID))
		if err := s.db.Model(&run).Update("output_dir", run.OutputDir).Error; err != nil {
			s.appState.Release()
			return nil, fmt.Errorf("failed to assign output directory: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	session := &state.RunSession{
		RunID:     run.ID,
		StartedAt: time.Now(),
		Cancel:    cancel,
		Progress:  state.NewProgressBuffer(config.Settings.ProgressBufferLines),
	}
	s.appState.CommitSession(run.ID, session)

	go s.execute(ctx, run, session)

	log.Printf("run: started run %d input=%s", run.ID, run.InputPath)
	return &run, nil
}

// Stop cancels an active run. The worker goroutine observes the cancellation,
// kills the subprocess group, and marks the record stopped.
func (s *RunService) Stop(id uint) error {
	session, ok := s.appState.GetSession(id)
	if !ok {
		return fmt.Errorf("run %d is not active", id)
	}
	log.Printf("run: stopping run %d", id)
	session.Cancel()
	return nil
}

// Delete removes a finished run record. Artifacts stay on disk; they belong
// to the user's output directory.
func (s *RunService) Delete(id uint) error {
	if s.appState.SessionExists(id) {
		return fmt.Errorf("%w: stop run %d before deleting", ErrRunActive, id)
	}

	run, err := s.Get(id)
	if err != nil {
		return err
	}
	if run.Active() {
		return fmt.Errorf("%w: run %d is %s", ErrRunActive, id, run.Status)
	}

	if err := s.db.Delete(run).Error; err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// Progress returns the live progress feed of an active run starting at the
// monotonic line index from.
func (s *RunService) Progress(id uint, from uint64) (lines []string, next uint64, dropped uint64, active bool) {
	session, ok := s.appState.GetSession(id)
	if !ok {
		return nil, from, 0, false
	}
	lines, next, dropped = session.Progress.SnapshotFrom(from)
	return lines, next, dropped, true
}

// execute runs the pipeline for one record and transitions its status.
func (s *RunService) execute(ctx context.Context, run models.Run, session *state.RunSession) {
	defer s.appState.RemoveSession(run.ID)

	started := time.Now()
	s.db.Model(&models.Run{}).Where("id = ?", run.ID).Updates(map[string]interface{}{
		"status":     models.StatusRunning,
		"started_at": started,
	})

	// Stage the input so the run never disturbs the source volume.
	staged, cleanup, err := pipeline.StageInput(run.InputPath)
	if err != nil {
		s.finish(run.ID, started, nil, err)
		return
	}
	defer cleanup()

	summary, err := pipeline.Run(ctx, s.tk, pipeline.Options{
		InputPath: staged,
		OutputDir: run.OutputDir,
		KeepCSV:   run.KeepCSV,
		Console:   session.Progress.Writer(),
		OnLine:    session.Progress.Append,
	})
	s.finish(run.ID, started, summary, err)
}

// finish writes the terminal state of a run.
func (s *RunService) finish(id uint, started time.Time, summary *pipeline.Summary, runErr error) {
	finished := time.Now()
	updates := map[string]interface{}{
		"finished_at": finished,
		"duration_ms": finished.Sub(started).Milliseconds(),
	}

	switch {
	case runErr == nil:
		updates["status"] = models.StatusSucceeded
		updates["segmentation_path"] = summary.SegmentationPath
		updates["report_path"] = summary.ReportPath
		updates["csv_path"] = summary.CSVPath
		updates["exit_code"] = summary.ExitCode
		log.Printf("run: run %d succeeded in %dms", id, updates["duration_ms"])

	case errors.Is(runErr, context.Canceled):
		updates["status"] = models.StatusStopped
		updates["error_message"] = "stopped by user"
		log.Printf("run: run %d stopped", id)

	default:
		updates["status"] = models.StatusFailed
		updates["error_message"] = runErr.Error()
		var cmdErr *pipeline.CommandError
		if errors.As(runErr, &cmdErr) {
			updates["exit_code"] = cmdErr.ExitCode
			updates["stdout"] = cmdErr.Stdout
			updates["stderr"] = cmdErr.Stderr
		}
		state.LogError("run", fmt.Sprintf("run %d failed", id), runErr.Error())
		log.Printf("run: run %d failed: %v", id, runErr)
	}

	if err := s.db.Model(&models.Run{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		log.Printf("run: failed to persist final state of run %d: %v", id, err)
	}
}
