package service

import (
	"segbridge/state"
	"segbridge/toolkit"

	"gorm.io/gorm"
)

// Services is the global service container
type Services struct {
	Run     *RunService
	Toolkit *ToolkitService
}

// GlobalServices is the global service instance
var GlobalServices *Services

// InitServices initializes all services
func InitServices(db *gorm.DB, appState *state.AppState, tk *toolkit.Manager) {
	toolkitSvc := NewToolkitService(tk)
	runSvc := NewRunService(db, appState, tk)

	GlobalServices = &Services{
		Run:     runSvc,
		Toolkit: toolkitSvc,
	}
}
