package service

import (
	"fmt"
	"log"
	"time"

	"segbridge/config"
	"segbridge/toolkit"
)

// ValidationReport carries both validator verdicts. Messages are dialog text
// shown to the user as-is.
type ValidationReport struct {
	InstallOK      bool   `json:"install_ok"`
	InstallMessage string `json:"install_message"`
	PythonOK       bool   `json:"python_ok"`
	PythonMessage  string `json:"python_message"`
}

// OK reports whether both checks passed.
func (r *ValidationReport) OK() bool {
	return r.InstallOK && r.PythonOK
}

// ToolkitService handles toolkit configuration business logic
type ToolkitService struct {
	tk *toolkit.Manager
}

// NewToolkitService constructs a toolkit service
func NewToolkitService(tk *toolkit.Manager) *ToolkitService {
	return &ToolkitService{tk: tk}
}

// Manager returns the underlying config manager.
func (s *ToolkitService) Manager() *toolkit.Manager {
	return s.tk
}

// Show returns the current configuration snapshot and whether it is usable.
func (s *ToolkitService) Show() (toolkit.Config, bool) {
	return s.tk.Config(), s.tk.Configured()
}

// Validate checks the configured paths.
func (s *ToolkitService) Validate() *ValidationReport {
	cfg := s.tk.Config()
	return s.ValidatePaths(cfg.SynthSegPath, cfg.PythonPath)
}

// ValidatePaths checks arbitrary paths without saving them.
func (s *ToolkitService) ValidatePaths(synthsegPath, pythonPath string) *ValidationReport {
	report := &ValidationReport{}
	report.InstallOK, report.InstallMessage = toolkit.ValidateInstall(synthsegPath)
	report.PythonOK, report.PythonMessage = toolkit.ValidatePython(pythonPath,
		time.Duration(config.Settings.ImportProbeTimeoutSeconds)*time.Second,
		time.Duration(config.Settings.PackageProbeTimeoutSeconds)*time.Second,
	)
	return report
}

// Save validates both paths and persists them. With force set, validation
// failures are returned in the report but the paths are saved anyway.
func (s *ToolkitService) Save(synthsegPath, pythonPath string, force bool) (*ValidationReport, error) {
	report := s.ValidatePaths(synthsegPath, pythonPath)
	if !report.OK() && !force {
		return report, fmt.Errorf("validation failed: %s", report.Failure())
	}

	if err := s.tk.Save(synthsegPath, pythonPath); err != nil {
		return report, err
	}
	log.Printf("toolkit: saved config synthseg=%s python=%s", synthsegPath, pythonPath)
	return report, nil
}

// Failure returns the first failing validator message.
func (r *ValidationReport) Failure() string {
	if !r.InstallOK {
		return r.InstallMessage
	}
	if !r.PythonOK {
		return r.PythonMessage
	}
	return ""
}
