package installer

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
)

// JavaInstall describes one detected or provisioned JVM.
type JavaInstall struct {
	Path  string
	Major int
	Arch  string
}

// JavaManager detects, validates, and (stub) provisions JVMs, per
// spec §4.G step 6.
type JavaManager struct {
	cacheDir string

	mu      sync.Mutex
	cached  map[int]JavaInstall
}

func NewJavaManager(cacheDir string) *JavaManager {
	return &JavaManager{cacheDir: cacheDir, cached: make(map[int]JavaInstall)}
}

// Select resolves a Java runtime for requiredMajor, respecting an
// override path first, per spec §4.G step 6.
func (j *JavaManager) Select(ctx context.Context, override string, requiredMajor int) (JavaInstall, error) {
	if override != "" {
		if install, err := ValidateJava(override); err == nil {
			return install, nil
		}
	}

	j.mu.Lock()
	cached, ok := j.cached[requiredMajor]
	j.mu.Unlock()
	if ok {
		return cached, nil
	}

	if install, ok := j.detectSystemJava(requiredMajor); ok {
		j.mu.Lock()
		j.cached[requiredMajor] = install
		j.mu.Unlock()
		return install, nil
	}

	return JavaInstall{}, onelauncher.WithFields(onelauncher.KindNotFound,
		"no cached Java install matches the required major version; automated provisioning is not available in this environment",
		map[string]any{"kind": "java", "id": strconv.Itoa(requiredMajor)})
}

// detectSystemJava probes PATH and the launcher's java cache dir for
// an install matching requiredMajor.
func (j *JavaManager) detectSystemJava(requiredMajor int) (JavaInstall, bool) {
	candidates := []string{"java"}
	if path, err := exec.LookPath("java"); err == nil {
		candidates = append(candidates, path)
	}
	entries, _ := os.ReadDir(j.cacheDir)
	for _, e := range entries {
		if e.IsDir() {
			bin := "bin/java"
			if runtime.GOOS == "windows" {
				bin = "bin/java.exe"
			}
			candidates = append(candidates, filepath.Join(j.cacheDir, e.Name(), bin))
		}
	}

	for _, candidate := range candidates {
		install, err := ValidateJava(candidate)
		if err == nil && install.Major == requiredMajor {
			return install, true
		}
	}
	return JavaInstall{}, false
}

// ValidateJava launches candidate with "-version" and parses the
// reported major version, per spec §4.G step 6's "verify by launching
// the candidate" requirement.
func ValidateJava(candidate string) (JavaInstall, error) {
	cmd := exec.Command(candidate, "-version")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return JavaInstall{}, onelauncher.Wrap(onelauncher.KindIO, err, candidate)
	}
	major := parseJavaMajorVersion(out.String())
	if major == 0 {
		return JavaInstall{}, onelauncher.New(onelauncher.KindIO, "could not parse java -version output")
	}
	return JavaInstall{Path: candidate, Major: major, Arch: currentArch()}, nil
}

// parseJavaMajorVersion handles both the legacy "1.8.0_xxx" and
// modern "17.0.1" version string formats.
func parseJavaMajorVersion(output string) int {
	idx := strings.Index(output, "\"")
	if idx < 0 {
		return 0
	}
	rest := output[idx+1:]
	end := strings.Index(rest, "\"")
	if end < 0 {
		return 0
	}
	version := rest[:end]

	parts := strings.Split(version, ".")
	if len(parts) == 0 {
		return 0
	}
	first, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	if first == 1 && len(parts) > 1 {
		second, err := strconv.Atoi(parts[1])
		if err == nil {
			return second
		}
	}
	return first
}
