//go:build unix

package exec

import (
	"os/exec"
	"syscall"
)

// setProcessGroup configures cmd to run in its own process group and to be
// killed (SIGKILL, whole group) if its context is cancelled, satisfying
// spec.md §4.3.1 step 6: "sends SIGKILL to the process group" on timeout.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
