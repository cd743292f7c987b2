//go:build windows

package auth

import (
	"syscall"
	"unsafe"
)

var (
	advapi32          = syscall.NewLazyDLL("advapi32.dll")
	procRegOpenKeyExW  = advapi32.NewProc("RegOpenKeyExW")
	procRegQueryValueW = advapi32.NewProc("RegQueryValueExW")
	procRegCloseKey    = advapi32.NewProc("RegCloseKey")
)

const (
	hkeyLocalMachine = 0x80000002
	keyRead          = 0x20019
)

// platformMachineID reads HKLM\SOFTWARE\Microsoft\Cryptography\MachineGuid,
// the per-installation GUID Windows itself generates at setup time.
func platformMachineID() string {
	keyPath, err := syscall.UTF16PtrFromString(`SOFTWARE\Microsoft\Cryptography`)
	if err != nil {
		return ""
	}
	var hkey syscall.Handle
	ret, _, _ := procRegOpenKeyExW.Call(
		uintptr(hkeyLocalMachine),
		uintptr(unsafe.Pointer(keyPath)),
		0,
		uintptr(keyRead),
		uintptr(unsafe.Pointer(&hkey)),
	)
	if ret != 0 {
		return ""
	}
	defer procRegCloseKey.Call(uintptr(hkey))

	valueName, err := syscall.UTF16PtrFromString("MachineGuid")
	if err != nil {
		return ""
	}
	var bufLen uint32 = 128
	buf := make([]uint16, bufLen/2)
	ret, _, _ = procRegQueryValueW.Call(
		uintptr(hkey),
		uintptr(unsafe.Pointer(valueName)),
		0,
		0,
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(unsafe.Pointer(&bufLen)),
	)
	if ret != 0 {
		return ""
	}
	return syscall.UTF16ToString(buf)
}
