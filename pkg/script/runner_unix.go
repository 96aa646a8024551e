//go:build unix

package script

import (
	"os/exec"
	"syscall"
)

// killProcessGroup makes cancellation kill every process the shell spawned,
// so pipes held open by grandchildren cannot outlive the script.
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
