package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"segbridge/report"
	"segbridge/state"
	"segbridge/toolkit"
)

// Artifact names inside the output directory.
const (
	SegmentationFile = "segmentation.nii.gz"
	VolumesCSVFile   = "volumes.csv"
	VolumesXLSXFile  = "volumes.xlsx"
)

// Options configures a single pipeline run.
type Options struct {
	InputPath string
	OutputDir string
	KeepCSV   bool

	// Console receives the step-by-step progress text. Nil discards it.
	Console io.Writer

	// OnLine mirrors raw subprocess output lines as they appear.
	OnLine func(line string)
}

// Summary describes a completed run.
type Summary struct {
	SegmentationPath string
	ReportPath       string // empty when the Excel conversion failed
	CSVPath          string // empty when the intermediate CSV was removed
	Rows             int
	Columns          int
	ExitCode         int
	Duration         time.Duration
}

// Run executes the full segmentation pipeline: gate on configuration, invoke
// the predict script through the configured Python, verify artifacts, convert
// the volumes CSV to a spreadsheet, and clean up. The subprocess itself runs
// without a timeout; cancellation comes only through ctx.
func Run(ctx context.Context, tk *toolkit.Manager, opts Options) (*Summary, error) {
	console := opts.Console
	if console == nil {
		console = io.Discard
	}
	start := time.Now()

	if _, err := os.Stat(opts.InputPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInputNotFound, opts.InputPath)
	}

	if !tk.Configured() {
		return nil, fmt.Errorf("%w: set the SynthSeg and Python paths first", ErrNotConfigured)
	}
	cfg := tk.Config()
	script := tk.PredictScript()
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPredictMissing, script)
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	segPath := filepath.Join(opts.OutputDir, SegmentationFile)
	csvPath := filepath.Join(opts.OutputDir, VolumesCSVFile)
	xlsxPath := filepath.Join(opts.OutputDir, VolumesXLSXFile)

	rule := strings.Repeat("=", 70)
	fmt.Fprintln(console, rule)
	fmt.Fprintln(console, "SynthSeg Brain Segmentation - Complete Pipeline")
	fmt.Fprintln(console, rule)
	fmt.Fprintf(console, "Input:      %s\n", opts.InputPath)
	fmt.Fprintf(console, "Output dir: %s\n", opts.OutputDir)
	fmt.Fprintln(console, rule)

	fmt.Fprintln(console, "\n[1/3] Running segmentation...")
	fmt.Fprintln(console, "(This may take 3-10 minutes on CPU)")
	log.Printf("pipeline: starting segmentation input=%s output=%s", opts.InputPath, opts.OutputDir)

	runner := &Runner{OnLine: opts.OnLine}
	res, err := runner.Run(ctx, cfg.PythonPath, script,
		"--i", opts.InputPath,
		"--o", segPath,
		"--vol", csvPath,
		"--v1",
		"--cpu",
	)
	if err != nil {
		log.Printf("pipeline: segmentation failed: %v", err)
		return nil, fmt.Errorf("segmentation failed: %w", err)
	}
	log.Printf("pipeline: segmentation finished in %s", res.Duration.Round(time.Millisecond))

	if _, err := os.Stat(segPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, segPath)
	}
	if _, err := os.Stat(csvPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, csvPath)
	}
	fmt.Fprintf(console, "Segmentation saved: %s\n", segPath)
	fmt.Fprintf(console, "CSV saved: %s\n", csvPath)

	fmt.Fprintln(console, "\n[2/3] Converting volumes to Excel...")
	summary := &Summary{
		SegmentationPath: segPath,
		CSVPath:          csvPath,
		ExitCode:         res.ExitCode,
	}
	conv, convErr := report.ConvertCSV(csvPath, xlsxPath)
	if convErr != nil {
		// The spreadsheet is a convenience; the CSV stays authoritative.
		log.Printf("pipeline: warning: excel export failed: %v", convErr)
		state.LogWarn("pipeline", "excel export failed", convErr.Error())
		fmt.Fprintf(console, "Warning: Excel export failed: %v\n", convErr)
		fmt.Fprintln(console, "CSV file is still available.")
	} else {
		summary.ReportPath = xlsxPath
		summary.Rows = conv.Rows
		summary.Columns = conv.Columns
		fmt.Fprintf(console, "Excel saved: %s\n", xlsxPath)
		fmt.Fprintf(console, "  Rows: %d, Columns: %d\n", conv.Rows, conv.Columns)
	}

	fmt.Fprintln(console, "\n[3/3] Cleanup...")
	if !opts.KeepCSV && summary.ReportPath != "" {
		if err := os.Remove(csvPath); err != nil {
			log.Printf("pipeline: warning: failed to remove %s: %v", csvPath, err)
			state.LogWarn("pipeline", "failed to remove intermediate csv", err.Error())
		} else {
			summary.CSVPath = ""
			fmt.Fprintln(console, "Removed intermediate CSV file")
		}
	} else if opts.KeepCSV {
		fmt.Fprintln(console, "Kept CSV file as requested")
	}

	summary.Duration = time.Since(start)

	fmt.Fprintln(console, "\n"+rule)
	fmt.Fprintln(console, "Pipeline Complete!")
	fmt.Fprintln(console, rule)
	fmt.Fprintf(console, "Output folder: %s\n", opts.OutputDir)
	fmt.Fprintf(console, "  - %s  (%.1f KB)\n", SegmentationFile, fileSizeKB(segPath))
	if summary.ReportPath != "" {
		fmt.Fprintf(console, "  - %s         (%.1f KB)\n", VolumesXLSXFile, fileSizeKB(xlsxPath))
	}
	if summary.CSVPath != "" {
		fmt.Fprintf(console, "  - %s          (%.1f KB)\n", VolumesCSVFile, fileSizeKB(csvPath))
	}
	fmt.Fprintln(console, rule)
	log.Printf("pipeline: complete in %s", summary.Duration.Round(time.Millisecond))

	return summary, nil
}

func fileSizeKB(path string) float64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return float64(info.Size()) / 1024.0
}
