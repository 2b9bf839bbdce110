//go:build !linux

package exec

import "os/exec"

// probeOOM is a no-op outside Linux; cgroups are a Linux-only concept
// (spec.md §4.3.1 step 8 is explicitly scoped "On Linux").
func probeOOM(cmd *exec.Cmd) (killed bool, memoryMaxBytes int64) {
	return false, 0
}
