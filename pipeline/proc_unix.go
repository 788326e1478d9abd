//go:build !windows

package pipeline

import (
	"os/exec"
	"syscall"
)

// setProcAttr places the child in its own process group so cancellation can
// take down the whole tree, not just the interpreter.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcess(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		_ = cmd.Process.Kill()
	}
}
