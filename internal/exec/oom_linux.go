//go:build linux

package exec

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// probeOOM inspects the cgroup the child ran under for evidence of an OOM
// kill, per spec.md §4.3.1 step 8. Best-effort: returns false, 0 if the
// cgroup memory controller isn't mounted or the process exited before its
// cgroup could be inspected.
func probeOOM(cmd *exec.Cmd) (killed bool, memoryMaxBytes int64) {
	if cmd.Process == nil {
		return false, 0
	}
	cgroupPath, ok := cgroupPathForPID(cmd.Process.Pid)
	if !ok {
		return false, 0
	}

	memMax := readCgroupInt(filepath.Join(cgroupPath, "memory.max"))
	oomEvents := readCgroupInt(filepath.Join(cgroupPath, "memory.events"))
	return oomEvents > 0, memMax
}

func cgroupPathForPID(pid int) (string, bool) {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "cgroup"))
	if err != nil {
		return "", false
	}
	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			continue
		}
		rel := strings.TrimPrefix(parts[2], "/")
		path := filepath.Join("/sys/fs/cgroup", rel)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

func readCgroupInt(path string) int64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	for i, f := range fields {
		if f == "oom_kill" && i+1 < len(fields) {
			v, _ := strconv.ParseInt(fields[i+1], 10, 64)
			return v
		}
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
