package installer

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Polyfrost/onelauncher-core/internal/fetch"
	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
	"github.com/Polyfrost/onelauncher-core/internal/storage"
)

// InstallLibraries downloads every rule-passing library (and its
// native classifier, if any) and unpacks natives into
// <natives>/<version>/, stripping META-INF/, per spec §4.G steps 2-3.
func InstallLibraries(ctx context.Context, client *fetch.Client, dirs *storage.Directories, versionID string, libs []Library, report func(delta float64)) error {
	filtered := FilterLibraries(libs)
	if len(filtered) == 0 {
		return nil
	}
	share := 1.0 / float64(len(filtered))

	for _, lib := range filtered {
		if lib.Artifact != nil {
			path := libraryPath(dirs, lib)
			if _, err := client.Download(ctx, lib.Artifact.URL, path, lib.Artifact.Sha1, nil); err != nil {
				return err
			}
		}
		if native, ok := NativesFor(lib); ok {
			nativeJar := filepath.Join(dirs.Libraries(), "natives-"+filepath.Base(native.URL))
			if _, err := client.Download(ctx, native.URL, nativeJar, native.Sha1, nil); err != nil {
				return err
			}
			if err := extractNatives(nativeJar, dirs.Natives(versionID)); err != nil {
				return err
			}
		}
		if report != nil {
			report(share)
		}
	}
	return nil
}

func libraryPath(dirs *storage.Directories, lib Library) string {
	if lib.Artifact != nil && lib.Artifact.Path != "" {
		return filepath.Join(dirs.Libraries(), filepath.FromSlash(lib.Artifact.Path))
	}
	return resolveLibraryRef(lib.Name, dirs.Libraries())
}

// extractNatives unzips a natives jar into destDir, stripping
// META-INF/, per spec §4.G step 3.
func extractNatives(jarPath, destDir string) error {
	r, err := zip.OpenReader(jarPath)
	if err != nil {
		return onelauncher.Wrap(onelauncher.KindIO, err, jarPath)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return onelauncher.Wrap(onelauncher.KindIO, err, destDir)
	}

	for _, f := range r.File {
		if strings.HasPrefix(f.Name, "META-INF/") || f.FileInfo().IsDir() {
			continue
		}
		target := filepath.Join(destDir, fetch.SanitizeZipEntryName(f.Name))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return onelauncher.Wrap(onelauncher.KindIO, err, target)
		}
		rc, err := f.Open()
		if err != nil {
			return onelauncher.Wrap(onelauncher.KindIO, err, f.Name)
		}
		out, err := os.Create(target)
		if err != nil {
			rc.Close()
			return onelauncher.Wrap(onelauncher.KindIO, err, target)
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return onelauncher.Wrap(onelauncher.KindIO, copyErr, target)
		}
	}
	return nil
}
