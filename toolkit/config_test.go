package toolkit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManagerMissingFile(t *testing.T) {
	m := NewManager(t.TempDir())
	if cfg := m.Config(); cfg.SynthSegPath != "" || cfg.PythonPath != "" {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
	if m.Configured() {
		t.Fatalf("expected unconfigured manager")
	}
}

func TestManagerSaveAndReload(t *testing.T) {
	root := t.TempDir()
	synthseg := filepath.Join(root, "synthseg")
	python := filepath.Join(root, "python")
	if err := os.Mkdir(synthseg, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(python, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("write: %v", err)
	}

	m := NewManager(root)
	if err := m.Save(synthseg, python); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(m.Path())
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if !strings.Contains(string(data), `"synthseg_path"`) || !strings.Contains(string(data), `"python_path"`) {
		t.Fatalf("unexpected config contents: %s", data)
	}

	reloaded := NewManager(root)
	cfg := reloaded.Config()
	if cfg.SynthSegPath != synthseg || cfg.PythonPath != python {
		t.Fatalf("reload mismatch: %+v", cfg)
	}
	if !reloaded.Configured() {
		t.Fatalf("expected configured manager after save")
	}
}

func TestManagerCorruptFile(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)
	if err := os.MkdirAll(filepath.Dir(m.Path()), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(m.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	m.Reload()
	if cfg := m.Config(); cfg.SynthSegPath != "" || cfg.PythonPath != "" {
		t.Fatalf("corrupt file should load as empty config, got %+v", cfg)
	}
}

func TestConfiguredRequiresExistingPaths(t *testing.T) {
	root := t.TempDir()
	synthseg := filepath.Join(root, "synthseg")
	python := filepath.Join(root, "python")
	if err := os.Mkdir(synthseg, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(python, []byte(""), 0755); err != nil {
		t.Fatalf("write: %v", err)
	}

	m := NewManager(root)
	if err := m.Save(synthseg, python); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !m.Configured() {
		t.Fatalf("expected configured")
	}

	// Paths must still exist at check time, not only at save time.
	if err := os.Remove(python); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if m.Configured() {
		t.Fatalf("expected unconfigured after python removal")
	}
}

func TestDefaultRoot(t *testing.T) {
	root := DefaultRoot()
	if root == "" {
		t.Fatalf("empty default root")
	}
	if !strings.Contains(root, "NA-MIC") {
		t.Fatalf("default root %q should live under the NA-MIC directory", root)
	}
}

func TestPredictScriptIn(t *testing.T) {
	got := PredictScriptIn(filepath.Join("opt", "synthseg"))
	want := filepath.Join("opt", "synthseg", "SynthSeg", "predict_synthseg.py")
	if got != want {
		t.Fatalf("PredictScriptIn = %q, want %q", got, want)
	}
}
