package pipeline

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// StageInput copies the input volume into a fresh temp directory so a run
// never touches the source file. The returned cleanup removes the directory
// best-effort; a failed removal is logged as a warning and never fails the
// run.
func StageInput(inputPath string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "segbridge-run-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create staging dir: %w", err)
	}

	staged := filepath.Join(dir, "input"+volumeExt(inputPath))
	if err := copyFile(inputPath, staged); err != nil {
		os.RemoveAll(dir)
		return "", nil, fmt.Errorf("failed to stage input: %w", err)
	}

	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("pipeline: warning: failed to remove staging dir %s: %v", dir, err)
		}
	}
	return staged, cleanup, nil
}

// volumeExt preserves the input's volume extension, treating .nii.gz as one
// unit. Unrecognized inputs keep their own extension.
func volumeExt(path string) string {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".nii.gz") {
		return ".nii.gz"
	}
	if ext := filepath.Ext(path); ext != "" {
		return ext
	}
	return ".nii.gz"
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
