package toolkit

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// buildInstall creates a SynthSeg install tree with the given pieces present.
func buildInstall(t *testing.T, withScript, withModelsDir, withModel bool) string {
	t.Helper()
	dir := t.TempDir()
	if withScript {
		scriptDir := filepath.Join(dir, "SynthSeg")
		if err := os.MkdirAll(scriptDir, 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(scriptDir, "predict_synthseg.py"), []byte("# predict\n"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if withModelsDir {
		if err := os.MkdirAll(filepath.Join(dir, "models"), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	if withModel {
		if err := os.WriteFile(filepath.Join(dir, "models", "synthseg_1.0.h5"), []byte("h5"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return dir
}

func TestValidateInstall(t *testing.T) {
	tests := []struct {
		name    string
		dir     func(t *testing.T) string
		ok      bool
		message string
	}{
		{
			"missing directory",
			func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") },
			false, "Directory does not exist",
		},
		{
			"missing predict script",
			func(t *testing.T) string { return buildInstall(t, false, true, true) },
			false, "SynthSeg/predict_synthseg.py not found",
		},
		{
			"missing models directory",
			func(t *testing.T) string { return buildInstall(t, true, false, false) },
			false, "models directory not found",
		},
		{
			"missing model weights",
			func(t *testing.T) string { return buildInstall(t, true, true, false) },
			false, "synthseg_1.0.h5 model not found in models/",
		},
		{
			"complete install",
			func(t *testing.T) string { return buildInstall(t, true, true, true) },
			true, "SynthSeg installation valid",
		},
	}

	for _, tt := range tests {
		ok, msg := ValidateInstall(tt.dir(t))
		if ok != tt.ok || msg != tt.message {
			t.Fatalf("%s: ValidateInstall = (%v, %q), want (%v, %q)", tt.name, ok, msg, tt.ok, tt.message)
		}
	}
}

// stubPython writes an executable shell script standing in for a Python
// interpreter.
func stubPython(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub interpreters require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "python")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestValidatePythonMissingExecutable(t *testing.T) {
	ok, msg := ValidatePython(filepath.Join(t.TempDir(), "python"), time.Second, time.Second)
	if ok || msg != "Python executable not found" {
		t.Fatalf("ValidatePython = (%v, %q)", ok, msg)
	}
}

func TestValidatePythonValid(t *testing.T) {
	python := stubPython(t, "exit 0\n")
	ok, msg := ValidatePython(python, 5*time.Second, time.Second)
	if !ok || msg != "Python environment valid" {
		t.Fatalf("ValidatePython = (%v, %q)", ok, msg)
	}
}

func TestValidatePythonCollectsMissingPackages(t *testing.T) {
	// Fail the combined probe and any probe mentioning tensorflow or keras;
	// the rest import fine.
	python := stubPython(t, `case "$2" in
*tensorflow*) exit 1 ;;
*keras*) exit 1 ;;
*) exit 0 ;;
esac
`)
	ok, msg := ValidatePython(python, 5*time.Second, time.Second)
	if ok {
		t.Fatalf("expected failed validation")
	}
	if msg != "Missing packages: tensorflow, keras" {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestValidatePythonAllMissing(t *testing.T) {
	python := stubPython(t, "exit 1\n")
	ok, msg := ValidatePython(python, 5*time.Second, time.Second)
	if ok {
		t.Fatalf("expected failed validation")
	}
	if msg != "Missing packages: tensorflow, keras, nibabel, scipy, numpy" {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestValidatePythonTimeout(t *testing.T) {
	python := stubPython(t, "sleep 5\n")
	ok, msg := ValidatePython(python, 100*time.Millisecond, 100*time.Millisecond)
	if ok || msg != "Python validation timed out" {
		t.Fatalf("ValidatePython = (%v, %q)", ok, msg)
	}
}
