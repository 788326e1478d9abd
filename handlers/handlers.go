package handlers

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"segbridge/database"
	"segbridge/models"
	"segbridge/service"
	"segbridge/state"
	"segbridge/version"
)

var shutdownChan chan bool

// SetShutdownChannel exposes the shutdown channel to handlers
func SetShutdownChannel(ch chan bool) {
	shutdownChan = ch
}

// GetConfig returns the current toolkit paths
func GetConfig(c *gin.Context) {
	cfg, configured := service.GlobalServices.Toolkit.Show()
	ok(c, gin.H{
		"synthseg_path": cfg.SynthSegPath,
		"python_path":   cfg.PythonPath,
		"configured":    configured,
	})
}

// UpdateConfig saves the toolkit paths after validating them. With
// ?force=true the paths are saved even when validation fails; the response
// message says so explicitly.
func UpdateConfig(c *gin.Context) {
	var req models.ToolkitUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid request", err.Error())
		return
	}
	req.Normalize()

	force := c.Query("force") == "true"
	report, err := service.GlobalServices.Toolkit.Save(req.SynthSegPath, req.PythonPath, force)
	if err != nil {
		if report != nil && !report.OK() && !force {
			respond(c, http.StatusUnprocessableEntity, CodeInvalidRequest, "Validation failed", report)
			return
		}
		fail(c, http.StatusInternalServerError, CodeInternal, "Failed to save config", err.Error())
		return
	}

	message := "Configuration saved"
	if force && !report.OK() {
		message = "Configuration saved despite failed validation (force)"
	}
	respond(c, http.StatusOK, CodeOK, message, report)
}

// ValidateConfig runs both validators and reports both messages
func ValidateConfig(c *gin.Context) {
	report := service.GlobalServices.Toolkit.Validate()
	ok(c, report)
}

// CreateRun starts a segmentation run
func CreateRun(c *gin.Context) {
	var req models.RunCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid request", err.Error())
		return
	}

	run, err := service.GlobalServices.Run.Create(req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTooManyRuns):
			fail(c, http.StatusConflict, CodeConflict, "Concurrent run limit reached", err.Error())
		case errors.Is(err, service.ErrNotConfigured):
			fail(c, http.StatusUnprocessableEntity, CodeNotConfigured, "Toolkit is not configured", err.Error())
		default:
			fail(c, http.StatusBadRequest, CodeInvalidRequest, "Failed to start run", err.Error())
		}
		return
	}

	ok(c, run)
}

// ListRuns lists runs with pagination, newest first
func ListRuns(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	runs, total, err := service.GlobalServices.Run.ListPage(page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, CodeInternal, "Failed to list runs", err.Error())
		return
	}

	views := make([]models.RunRead, 0, len(runs))
	for i := range runs {
		views = append(views, runs[i].View())
	}
	ok(c, gin.H{
		"runs":      views,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetRun returns one run with its captured output
func GetRun(c *gin.Context) {
	run, httpOK := runFromParam(c)
	if !httpOK {
		return
	}
	ok(c, run)
}

// DeleteRun removes a finished run record. Artifacts stay on disk.
func DeleteRun(c *gin.Context) {
	id, paramOK := runIDFromParam(c)
	if !paramOK {
		return
	}

	if err := service.GlobalServices.Run.Delete(id); err != nil {
		if errors.Is(err, service.ErrRunActive) {
			fail(c, http.StatusConflict, CodeConflict, "Run is active; stop it before deleting", err.Error())
			return
		}
		fail(c, http.StatusNotFound, CodeNotFound, "Run not found", err.Error())
		return
	}
	ok(c, gin.H{"id": id})
}

// StopRun cancels an active run
func StopRun(c *gin.Context) {
	id, paramOK := runIDFromParam(c)
	if !paramOK {
		return
	}

	if err := service.GlobalServices.Run.Stop(id); err != nil {
		fail(c, http.StatusConflict, CodeConflict, "Run is not active", err.Error())
		return
	}
	respond(c, http.StatusOK, CodeOK, "Stop requested", gin.H{"id": id})
}

// GetRunProgress returns the live progress feed of an active run. For
// finished runs the captured output lives on the run record instead.
func GetRunProgress(c *gin.Context) {
	id, paramOK := runIDFromParam(c)
	if !paramOK {
		return
	}

	from, _ := strconv.ParseUint(c.DefaultQuery("from", "0"), 10, 64)
	lines, next, dropped, active := service.GlobalServices.Run.Progress(id, from)
	if !active {
		run, err := service.GlobalServices.Run.Get(id)
		if err != nil {
			fail(c, http.StatusNotFound, CodeNotFound, "Run not found", err.Error())
			return
		}
		ok(c, gin.H{
			"active":  false,
			"status":  run.Status,
			"lines":   []string{},
			"next":    from,
			"dropped": 0,
		})
		return
	}

	ok(c, gin.H{
		"active":  true,
		"status":  models.StatusRunning,
		"lines":   lines,
		"next":    next,
		"dropped": dropped,
	})
}

// GetErrorLogs returns recent error feed entries
func GetErrorLogs(c *gin.Context) {
	ok(c, state.Errors.Recent())
}

// ClearErrorLogs wipes the error feed
func ClearErrorLogs(c *gin.Context) {
	state.Errors.Clear()
	respond(c, http.StatusOK, CodeOK, "Error logs cleared", nil)
}

// GetVersion returns build metadata
func GetVersion(c *gin.Context) {
	ok(c, gin.H{
		"version":    version.GetVersion(),
		"commit":     version.CommitHash,
		"build_time": version.BuildTime,
	})
}

// HealthCheck health endpoint
func HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	dbHealthy := database.SQLiteUp(ctx)

	_, configured := service.GlobalServices.Toolkit.Show()

	health := gin.H{
		"status":             "healthy",
		"timestamp":          time.Now().Unix(),
		"active_runs":        state.Global.SessionCount(),
		"db_healthy":         dbHealthy,
		"toolkit_configured": configured,
	}

	if !dbHealthy {
		health["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}
	c.JSON(http.StatusOK, health)
}

// GetMetrics gathers system metrics
func GetMetrics(c *gin.Context) {
	counts, err := service.GlobalServices.Run.CountByStatus()
	if err != nil {
		fail(c, http.StatusInternalServerError, CodeInternal, "Failed to collect metrics", err.Error())
		return
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	ok(c, gin.H{
		"timestamp": time.Now().Unix(),
		"runs": gin.H{
			"active":    state.Global.SessionCount(),
			"by_status": counts,
		},
		"sqlite": gin.H{
			"busy_errors":   database.SQLiteBusyErrorsTotal(),
			"locked_errors": database.SQLiteLockedErrorsTotal(),
		},
		"system": gin.H{
			"goroutines":   runtime.NumGoroutine(),
			"memory_alloc": mem.Alloc,
			"memory_total": mem.TotalAlloc,
			"memory_sys":   mem.Sys,
			"gc_runs":      mem.NumGC,
		},
	})
}

// Shutdown triggers a graceful service shutdown
func Shutdown(c *gin.Context) {
	if shutdownChan == nil {
		fail(c, http.StatusInternalServerError, CodeInternal, "Shutdown not available", nil)
		return
	}
	respond(c, http.StatusOK, CodeOK, "Shutting down", nil)
	select {
	case shutdownChan <- true:
	default:
	}
}

// runIDFromParam parses the :id route parameter.
func runIDFromParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid run ID", c.Param("id"))
		return 0, false
	}
	return uint(id), true
}

// runFromParam parses :id and loads the run.
func runFromParam(c *gin.Context) (*models.Run, bool) {
	id, paramOK := runIDFromParam(c)
	if !paramOK {
		return nil, false
	}
	run, err := service.GlobalServices.Run.Get(id)
	if err != nil {
		fail(c, http.StatusNotFound, CodeNotFound, "Run not found", err.Error())
		return nil, false
	}
	return run, true
}
