//go:build !windows

package auth

import (
	"os"
	"strings"
)

// machineIDPaths are read in order; the first one that exists and
// yields a non-empty line wins. Linux ships /etc/machine-id since
// systemd became ubiquitous; the dbus path is the older convention
// some minimal distros still carry instead.
var machineIDPaths = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
}

// platformMachineID returns the OS-reported stable machine identifier,
// or "" if none of the conventional paths exist.
func platformMachineID() string {
	for _, path := range machineIDPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id
		}
	}
	return ""
}
