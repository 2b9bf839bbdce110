//go:build !unix

package exec

import "os/exec"

// setProcessGroup is a no-op on platforms without POSIX process groups;
// cancellation falls back to killing the single child process.
func setProcessGroup(cmd *exec.Cmd) {}
