package toolkit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Default probe timeouts. The combined import of tensorflow and friends can
// take several seconds on a cold interpreter; individual probes are cheaper.
const (
	DefaultImportProbeTimeout  = 10 * time.Second
	DefaultPackageProbeTimeout = 5 * time.Second
)

// requiredPackages are the Python packages the predict script imports.
var requiredPackages = []string{"tensorflow", "keras", "nibabel", "scipy", "numpy"}

const combinedImportProbe = `import tensorflow, keras, nibabel, scipy, numpy; print("OK")`

// ValidateInstall checks a SynthSeg installation directory. The first failed
// check wins; the message is dialog text shown to the user as-is.
func ValidateInstall(dir string) (bool, string) {
	if _, err := os.Stat(dir); err != nil {
		return false, "Directory does not exist"
	}
	if _, err := os.Stat(PredictScriptIn(dir)); err != nil {
		return false, "SynthSeg/predict_synthseg.py not found"
	}
	if _, err := os.Stat(filepath.Join(dir, "models")); err != nil {
		return false, "models directory not found"
	}
	if _, err := os.Stat(ModelFileIn(dir)); err != nil {
		return false, "synthseg_1.0.h5 model not found in models/"
	}
	return true, "SynthSeg installation valid"
}

// ValidatePython checks that the Python executable exists and can import the
// packages the predict script needs. One combined probe runs first; when it
// fails with a non-zero exit, each package is probed individually to name the
// missing ones.
func ValidatePython(python string, importTimeout, packageTimeout time.Duration) (bool, string) {
	if importTimeout <= 0 {
		importTimeout = DefaultImportProbeTimeout
	}
	if packageTimeout <= 0 {
		packageTimeout = DefaultPackageProbeTimeout
	}

	if _, err := os.Stat(python); err != nil {
		return false, "Python executable not found"
	}

	ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
	defer cancel()
	err := exec.CommandContext(ctx, python, "-c", combinedImportProbe).Run()
	if err == nil {
		return true, "Python environment valid"
	}
	if ctx.Err() == context.DeadlineExceeded {
		return false, "Python validation timed out"
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false, fmt.Sprintf("Validation error: %v", err)
	}

	missing := make([]string, 0, len(requiredPackages))
	for _, pkg := range requiredPackages {
		ok, probeErr := probePackage(python, pkg, packageTimeout)
		if probeErr != nil {
			if errors.Is(probeErr, context.DeadlineExceeded) {
				return false, "Python validation timed out"
			}
			return false, fmt.Sprintf("Validation error: %v", probeErr)
		}
		if !ok {
			missing = append(missing, pkg)
		}
	}
	return false, fmt.Sprintf("Missing packages: %s", strings.Join(missing, ", "))
}

// probePackage runs `python -c "import <pkg>"` and reports whether it
// succeeded. A non-zero exit means the package is missing; any other failure
// is returned as an error.
func probePackage(python, pkg string, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	err := exec.CommandContext(ctx, python, "-c", "import "+pkg).Run()
	if err == nil {
		return true, nil
	}
	if ctx.Err() == context.DeadlineExceeded {
		return false, context.DeadlineExceeded
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, err
}
