// Package toolkit manages the persisted SynthSeg toolkit configuration and
// validates the external installation and its Python runtime.
package toolkit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// Config is the persisted toolkit configuration.
type Config struct {
	SynthSegPath string `json:"synthseg_path"`
	PythonPath   string `json:"python_path"`
}

// Manager loads and saves the toolkit config file and answers whether the
// environment is configured. Safe for concurrent use.
type Manager struct {
	mu   sync.RWMutex
	root string
	path string
	cfg  Config
}

// DefaultRoot returns the per-user directory that hosts the config file,
// matching the host application's layout on each platform.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "NA-MIC")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "NA-MIC")
	default:
		return filepath.Join(home, ".config", "NA-MIC")
	}
}

// NewManager creates a Manager rooted at root (empty means DefaultRoot) and
// loads any existing config file.
func NewManager(root string) *Manager {
	if root == "" {
		root = DefaultRoot()
	}
	m := &Manager{
		root: root,
		path: filepath.Join(root, "SlicerSynthSeg", "config.json"),
	}
	m.Reload()
	return m
}

// Path returns the config file location.
func (m *Manager) Path() string {
	return m.path
}

// Reload re-reads the config file. A missing or unreadable file yields an
// empty config; a half-written or corrupt file is treated the same way so a
// bad config never blocks startup.
func (m *Manager) Reload() {
	var cfg Config
	if data, err := os.ReadFile(m.path); err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			cfg = Config{}
		}
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
}

// Config returns a snapshot of the current configuration.
func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Save writes both paths to the config file, creating parent directories as
// needed, and updates the in-memory copy.
func (m *Manager) Save(synthsegPath, pythonPath string) error {
	cfg := Config{SynthSegPath: synthsegPath, PythonPath: pythonPath}

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", m.path, err)
	}

	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return nil
}

// Configured reports whether both paths are set and still exist on disk.
func (m *Manager) Configured() bool {
	cfg := m.Config()
	if cfg.SynthSegPath == "" || cfg.PythonPath == "" {
		return false
	}
	if _, err := os.Stat(cfg.SynthSegPath); err != nil {
		return false
	}
	if _, err := os.Stat(cfg.PythonPath); err != nil {
		return false
	}
	return true
}

// PredictScript returns the path of the predict entry point inside the
// configured installation.
func (m *Manager) PredictScript() string {
	cfg := m.Config()
	if cfg.SynthSegPath == "" {
		return ""
	}
	return PredictScriptIn(cfg.SynthSegPath)
}

// PredictScriptIn returns the predict entry point for an installation dir.
func PredictScriptIn(installDir string) string {
	return filepath.Join(installDir, "SynthSeg", "predict_synthseg.py")
}

// ModelFileIn returns the v1 model weights path for an installation dir.
func ModelFileIn(installDir string) string {
	return filepath.Join(installDir, "models", "synthseg_1.0.h5")
}
