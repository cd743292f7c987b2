//go:build !windows

package process

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// liveIdentity reads /proc/<pid> to recover the executable path and an
// approximate process start time, used by Rescue to verify a
// processor.json record still refers to the same process rather than
// a PID that's been reused, per spec §4.I.
func liveIdentity(pid int) (exePath string, startTime time.Time, alive bool) {
	statPath := fmt.Sprintf("/proc/%d/stat", pid)
	data, err := os.ReadFile(statPath)
	if err != nil {
		return "", time.Time{}, false
	}

	// Field 22 (1-indexed) of /proc/[pid]/stat is starttime in clock
	// ticks since boot; the comm field (field 2) is parenthesized and
	// may itself contain spaces, so split after its closing paren.
	closeParen := strings.LastIndexByte(string(data), ')')
	if closeParen < 0 {
		return "", time.Time{}, false
	}
	fields := strings.Fields(string(data)[closeParen+1:])
	const starttimeFieldFromState = 19 // index into `fields` (field 22 minus the 3 consumed by pid/comm/state)
	if len(fields) <= starttimeFieldFromState {
		return "", time.Time{}, false
	}
	ticks, err := strconv.ParseInt(fields[starttimeFieldFromState], 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}

	bootTime := systemBootTime()
	clockTicksPerSec := int64(100) // USER_HZ is 100 on virtually all Linux distributions
	start := bootTime.Add(time.Duration(ticks) * time.Second / time.Duration(clockTicksPerSec))

	exe, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		// The symlink can fail for a process we don't own; fall back
		// to the start time match alone.
		exe = ""
	}
	return exe, start, true
}

func systemBootTime() time.Time {
	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return time.Time{}
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "btime ") {
			secs, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, "btime ")), 10, 64)
			if err == nil {
				return time.Unix(secs, 0)
			}
		}
	}
	return time.Time{}
}

// isAlive reports whether pid refers to a running process, via the
// conventional unix signal-0 liveness probe.
func isAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// killProcess sends the native kill signal to pid, per spec §4.I.
func killProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGKILL)
}
