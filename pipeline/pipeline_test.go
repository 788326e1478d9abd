package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"segbridge/state"
	"segbridge/toolkit"
)

// fakeToolkit builds a configured toolkit whose predict script is handed to a
// stub python interpreter.
func fakeToolkit(t *testing.T, pythonBody string) *toolkit.Manager {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub interpreters require a POSIX shell")
	}

	root := t.TempDir()
	install := filepath.Join(root, "synthseg")
	if err := os.MkdirAll(filepath.Join(install, "SynthSeg"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(toolkit.PredictScriptIn(install), []byte("# predict\n"), 0644); err != nil {
		t.Fatalf("write predict script: %v", err)
	}

	python := filepath.Join(root, "python")
	if err := os.WriteFile(python, []byte("#!/bin/sh\n"+pythonBody), 0755); err != nil {
		t.Fatalf("write python stub: %v", err)
	}

	tk := toolkit.NewManager(root)
	if err := tk.Save(install, python); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return tk
}

// predictStub emits both artifacts the way the real predict script would.
const predictStub = `while [ $# -gt 0 ]; do
  case "$1" in
    --o) shift; echo fake-volume > "$1" ;;
    --vol) shift; printf 'subject,left hippocampus,right hippocampus\nt1,4100,4200\n' > "$1" ;;
  esac
  shift
done
exit 0
`

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "t1.nii.gz")
	if err := os.WriteFile(path, []byte("nifti"), 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func TestRunMissingInput(t *testing.T) {
	tk := toolkit.NewManager(t.TempDir())
	_, err := Run(context.Background(), tk, Options{
		InputPath: filepath.Join(t.TempDir(), "missing.nii.gz"),
		OutputDir: t.TempDir(),
	})
	if !errors.Is(err, ErrInputNotFound) {
		t.Fatalf("expected ErrInputNotFound, got %v", err)
	}
}

func TestRunUnconfigured(t *testing.T) {
	tk := toolkit.NewManager(t.TempDir())
	_, err := Run(context.Background(), tk, Options{
		InputPath: writeInput(t),
		OutputDir: t.TempDir(),
	})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestRunMissingPredictScript(t *testing.T) {
	root := t.TempDir()
	install := filepath.Join(root, "synthseg")
	if err := os.Mkdir(install, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	python := filepath.Join(root, "python")
	if err := os.WriteFile(python, []byte(""), 0755); err != nil {
		t.Fatalf("write: %v", err)
	}
	tk := toolkit.NewManager(root)
	if err := tk.Save(install, python); err != nil {
		t.Fatalf("Save: %v", err)
	}

	_, err := Run(context.Background(), tk, Options{
		InputPath: writeInput(t),
		OutputDir: t.TempDir(),
	})
	if !errors.Is(err, ErrPredictMissing) {
		t.Fatalf("expected ErrPredictMissing, got %v", err)
	}
}

func TestRunCompletePipeline(t *testing.T) {
	tk := fakeToolkit(t, predictStub)
	outDir := filepath.Join(t.TempDir(), "out")

	var console bytes.Buffer
	summary, err := Run(context.Background(), tk, Options{
		InputPath: writeInput(t),
		OutputDir: outDir,
		Console:   &console,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.SegmentationPath != filepath.Join(outDir, SegmentationFile) {
		t.Fatalf("segmentation path = %q", summary.SegmentationPath)
	}
	if _, err := os.Stat(summary.SegmentationPath); err != nil {
		t.Fatalf("segmentation not written: %v", err)
	}
	if summary.ReportPath == "" {
		t.Fatalf("expected xlsx report")
	}
	if _, err := os.Stat(summary.ReportPath); err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if summary.Rows != 1 || summary.Columns != 3 {
		t.Fatalf("unexpected table shape: rows=%d cols=%d", summary.Rows, summary.Columns)
	}

	// The intermediate CSV is removed once the spreadsheet exists.
	if summary.CSVPath != "" {
		t.Fatalf("csv path should be cleared, got %q", summary.CSVPath)
	}
	if _, err := os.Stat(filepath.Join(outDir, VolumesCSVFile)); !os.IsNotExist(err) {
		t.Fatalf("csv should be deleted, stat err = %v", err)
	}

	out := console.String()
	for _, want := range []string{"[1/3] Running segmentation", "[2/3] Converting volumes", "[3/3] Cleanup", "Pipeline Complete!"} {
		if !strings.Contains(out, want) {
			t.Fatalf("console output missing %q:\n%s", want, out)
		}
	}
}

func TestRunKeepCSV(t *testing.T) {
	tk := fakeToolkit(t, predictStub)
	outDir := filepath.Join(t.TempDir(), "out")

	summary, err := Run(context.Background(), tk, Options{
		InputPath: writeInput(t),
		OutputDir: outDir,
		KeepCSV:   true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.CSVPath == "" {
		t.Fatalf("expected csv path to survive")
	}
	if _, err := os.Stat(summary.CSVPath); err != nil {
		t.Fatalf("csv should be kept: %v", err)
	}
}

func TestRunSegmentationFailure(t *testing.T) {
	tk := fakeToolkit(t, "echo model exploded >&2\nexit 3\n")

	_, err := Run(context.Background(), tk, Options{
		InputPath: writeInput(t),
		OutputDir: t.TempDir(),
	})
	if err == nil {
		t.Fatalf("expected failure")
	}
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *CommandError, got %v", err)
	}
	if cmdErr.ExitCode != 3 {
		t.Fatalf("exit code = %d", cmdErr.ExitCode)
	}
}

func TestRunArtifactMissing(t *testing.T) {
	// Predict succeeds but writes nothing.
	tk := fakeToolkit(t, "exit 0\n")

	_, err := Run(context.Background(), tk, Options{
		InputPath: writeInput(t),
		OutputDir: t.TempDir(),
	})
	if !errors.Is(err, ErrArtifactMissing) {
		t.Fatalf("expected ErrArtifactMissing, got %v", err)
	}
}

func TestRunExcelFailureIsWarning(t *testing.T) {
	// Write a ragged CSV the converter rejects; the run must still succeed.
	stub := `while [ $# -gt 0 ]; do
  case "$1" in
    --o) shift; echo fake-volume > "$1" ;;
    --vol) shift; printf 'subject,a,b\nt1,1\n' > "$1" ;;
  esac
  shift
done
exit 0
`
	tk := fakeToolkit(t, stub)
	outDir := filepath.Join(t.TempDir(), "out")
	state.Errors.Clear()

	var console bytes.Buffer
	summary, err := Run(context.Background(), tk, Options{
		InputPath: writeInput(t),
		OutputDir: outDir,
		Console:   &console,
	})
	if err != nil {
		t.Fatalf("conversion failure must not fail the run: %v", err)
	}
	if summary.ReportPath != "" {
		t.Fatalf("report path should be empty on conversion failure")
	}
	if summary.CSVPath == "" {
		t.Fatalf("csv must survive when conversion fails")
	}
	if _, err := os.Stat(summary.CSVPath); err != nil {
		t.Fatalf("csv should remain on disk: %v", err)
	}
	if !strings.Contains(console.String(), "Warning: Excel export failed") {
		t.Fatalf("console should carry the warning:\n%s", console.String())
	}

	warned := false
	for _, entry := range state.Errors.Recent() {
		if entry.Level == "WARN" && entry.Source == "pipeline" {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("excel failure should land in the error feed")
	}
}

func TestStageInput(t *testing.T) {
	src := writeInput(t)

	staged, cleanup, err := StageInput(src)
	if err != nil {
		t.Fatalf("StageInput: %v", err)
	}
	if filepath.Base(staged) != "input.nii.gz" {
		t.Fatalf("staged name = %q", filepath.Base(staged))
	}
	data, err := os.ReadFile(staged)
	if err != nil || string(data) != "nifti" {
		t.Fatalf("staged copy mismatch: %q %v", data, err)
	}

	cleanup()
	if _, err := os.Stat(filepath.Dir(staged)); !os.IsNotExist(err) {
		t.Fatalf("staging dir should be removed, stat err = %v", err)
	}
}

func TestStageInputMissingSource(t *testing.T) {
	if _, _, err := StageInput(filepath.Join(t.TempDir(), "missing.nii.gz")); err == nil {
		t.Fatalf("expected error for missing source")
	}
}

func TestVolumeExt(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"t1.nii.gz", ".nii.gz"},
		{"T1.NII.GZ", ".nii.gz"},
		{"t1.nii", ".nii"},
		{"scan", ".nii.gz"},
	}
	for _, tt := range tests {
		if got := volumeExt(tt.in); got != tt.want {
			t.Fatalf("volumeExt(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
