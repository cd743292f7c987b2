package installer

import (
	"archive/zip"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
)

// processorTokens are the canonical substitution tokens of spec
// §4.G step 5.
type processorTokens struct {
	Side            string
	MinecraftJar    string
	LibraryDir      string
	Root            string
	MinecraftVersion string
}

func (t processorTokens) substitute(arg string) string {
	replacer := strings.NewReplacer(
		"{SIDE}", t.Side,
		"{MINECRAFT_JAR}", t.MinecraftJar,
		"{LIBRARY_DIR}", t.LibraryDir,
		"{ROOT}", t.Root,
		"{MINECRAFT_VERSION}", t.MinecraftVersion,
	)
	return replacer.Replace(arg)
}

// RunProcessors executes each processor as a JVM subprocess in
// sequence, per spec §4.G step 5.
func RunProcessors(ctx context.Context, javaPath string, procs []Processor, data map[string]DataEntry, tokens processorTokens, libraryRoot string) error {
	for _, proc := range procs {
		if !processorAppliesToSide(proc, tokens.Side) {
			continue
		}

		mainClass, err := jarMainClass(proc.Jar)
		if err != nil {
			return onelauncher.ProcessorFailed(proc.Jar, -1)
		}

		classpath := append([]string{}, proc.Classpath...)
		classpath = append(classpath, proc.Jar)
		resolvedClasspath := make([]string, 0, len(classpath))
		for _, entry := range classpath {
			resolvedClasspath = append(resolvedClasspath, resolveLibraryRef(entry, libraryRoot))
		}

		args := make([]string, 0, len(proc.Args))
		for _, a := range proc.Args {
			args = append(args, substituteProcessorArg(a, data, tokens, libraryRoot))
		}

		cmdArgs := append([]string{"-cp", strings.Join(resolvedClasspath, classpathSeparator()), mainClass}, args...)
		cmd := exec.CommandContext(ctx, javaPath, cmdArgs...)
		if err := cmd.Run(); err != nil {
			exitCode := -1
			if exitErr, ok := err.(*exec.ExitError); ok {
				exitCode = exitErr.ExitCode()
			}
			return onelauncher.ProcessorFailed(proc.Jar, exitCode)
		}
	}
	return nil
}

func processorAppliesToSide(proc Processor, side string) bool {
	if len(proc.Sides) == 0 {
		return true
	}
	for _, s := range proc.Sides {
		if strings.EqualFold(s, side) {
			return true
		}
	}
	return false
}

// substituteProcessorArg resolves canonical tokens, then the data
// block's {KEY} placeholders, then library references in the form
// [group:artifact:version].
func substituteProcessorArg(arg string, data map[string]DataEntry, tokens processorTokens, libraryRoot string) string {
	arg = tokens.substitute(arg)
	for key, entry := range data {
		placeholder := "{" + key + "}"
		value := entry.Client
		if tokens.Side == "server" {
			value = entry.Server
		}
		arg = strings.ReplaceAll(arg, placeholder, value)
	}
	if strings.HasPrefix(arg, "[") && strings.HasSuffix(arg, "]") {
		return resolveLibraryRef(arg[1:len(arg)-1], libraryRoot)
	}
	return arg
}

// resolveLibraryRef turns a "group:artifact:version[:classifier]"
// reference into its path under libraryRoot, matching the vanilla
// launcher's Maven-coordinate-to-path convention.
func resolveLibraryRef(ref, libraryRoot string) string {
	if !strings.Contains(ref, ":") {
		return ref
	}
	parts := strings.Split(ref, ":")
	if len(parts) < 3 {
		return ref
	}
	group := strings.ReplaceAll(parts[0], ".", "/")
	artifact, version := parts[1], parts[2]
	filename := fmt.Sprintf("%s-%s", artifact, version)
	if len(parts) > 3 {
		filename += "-" + parts[3]
	}
	filename += ".jar"
	return filepath.Join(libraryRoot, group, artifact, version, filename)
}

func jarMainClass(jarPath string) (string, error) {
	r, err := zip.OpenReader(jarPath)
	if err != nil {
		return "", onelauncher.Wrap(onelauncher.KindIO, err, jarPath)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != "META-INF/MANIFEST.MF" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", onelauncher.Wrap(onelauncher.KindIO, err, jarPath)
		}
		defer rc.Close()

		buf := make([]byte, f.UncompressedSize64)
		if _, err := rc.Read(buf); err != nil && err.Error() != "EOF" {
			// manifest files are small; a short read here still lets
			// the line scan below find Main-Class if present.
		}
		for _, line := range strings.Split(string(buf), "\n") {
			line = strings.TrimRight(line, "\r")
			if strings.HasPrefix(line, "Main-Class: ") {
				return strings.TrimPrefix(line, "Main-Class: "), nil
			}
		}
	}
	return "", onelauncher.New(onelauncher.KindIO, "no Main-Class in manifest: "+jarPath)
}
