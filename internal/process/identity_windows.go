//go:build windows

package process

import (
	"os"
	"syscall"
	"time"
	"unsafe"
)

var (
	kernel32            = syscall.NewLazyDLL("kernel32.dll")
	procOpenProcess     = kernel32.NewProc("OpenProcess")
	procGetProcessTimes = kernel32.NewProc("GetProcessTimes")
	procQueryFullPath   = kernel32.NewProc("QueryFullProcessImageNameW")
	procCloseHandle     = kernel32.NewProc("CloseHandle")
)

const (
	processQueryLimitedInformation = 0x1000
	processTerminate                = 0x0001
)

// liveIdentity queries the Windows process table for pid's executable
// path and creation time, the Windows analogue of /proc/<pid>/stat.
func liveIdentity(pid int) (exePath string, startTime time.Time, alive bool) {
	handle, _, _ := procOpenProcess.Call(processQueryLimitedInformation, 0, uintptr(pid))
	if handle == 0 {
		return "", time.Time{}, false
	}
	defer procCloseHandle.Call(handle)

	var creation, exit, kernelTime, userTime syscall.Filetime
	ret, _, _ := procGetProcessTimes.Call(handle,
		uintptr(unsafe.Pointer(&creation)),
		uintptr(unsafe.Pointer(&exit)),
		uintptr(unsafe.Pointer(&kernelTime)),
		uintptr(unsafe.Pointer(&userTime)))
	if ret == 0 {
		return "", time.Time{}, true
	}

	buf := make([]uint16, 32768)
	size := uint32(len(buf))
	pathPtr, _ := syscall.UTF16PtrFromString("")
	_ = pathPtr
	procQueryFullPath.Call(handle, 0, uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&size)))
	exePath = syscall.UTF16ToString(buf[:size])

	startTime = time.Unix(0, creation.Nanoseconds())
	return exePath, startTime, true
}

func isAlive(pid int) bool {
	handle, _, _ := procOpenProcess.Call(processQueryLimitedInformation, 0, uintptr(pid))
	if handle == 0 {
		return false
	}
	defer procCloseHandle.Call(handle)

	var exitCode uint32
	const stillActive = 259
	procGetExitCodeProcess := kernel32.NewProc("GetExitCodeProcess")
	ret, _, _ := procGetExitCodeProcess.Call(handle, uintptr(unsafe.Pointer(&exitCode)))
	return ret != 0 && exitCode == stillActive
}

func killProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}
