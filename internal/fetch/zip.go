package fetch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"

	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
)

// ZipEntry describes one streamed archive entry passed to a ZipVisitor.
type ZipEntry struct {
	Name     string // sanitised, forward-slash path relative to archive root
	IsDir    bool
	Open     func() (io.ReadCloser, error)
}

// ZipVisitor is called once per matching entry during WalkZip.
type ZipVisitor func(entry ZipEntry) error

// WalkZip streams entries of the zip at path without loading the whole
// archive into memory, per spec §4.B. Only entries for which predicate
// returns true are visited; predicate may be nil to visit everything.
func WalkZip(ctx context.Context, path string, predicate func(name string) bool, visit ZipVisitor) error {
	f, err := os.Open(path)
	if err != nil {
		return onelauncher.Wrap(onelauncher.KindIO, err, path)
	}
	defer f.Close()

	format, input, err := archives.Identify(ctx, path, f)
	if err != nil {
		return onelauncher.Wrap(onelauncher.KindIO, err, "identify archive")
	}
	extractor, ok := format.(archives.Extractor)
	if !ok {
		return onelauncher.New(onelauncher.KindIO, "archive format does not support extraction")
	}

	return extractor.Extract(ctx, input, func(ctx context.Context, f archives.FileInfo) error {
		name := SanitizeZipEntryName(f.NameInArchive)
		if name == "" {
			return nil
		}
		if predicate != nil && !predicate(name) {
			return nil
		}
		entry := ZipEntry{
			Name:  name,
			IsDir: f.IsDir(),
			Open: func() (io.ReadCloser, error) {
				return f.Open()
			},
		}
		return visit(entry)
	})
}

// ExtractZip extracts every entry matching predicate (nil == all) from
// the zip at srcPath into destDir, sanitising entry names per spec
// §4.B ("strip .., normalise separators before joining onto a
// destination"). overwrite controls whether an existing file is
// replaced; with overwrite=false an existing file is left untouched.
func ExtractZip(ctx context.Context, srcPath, destDir string, predicate func(name string) bool, overwrite bool) error {
	return WalkZip(ctx, srcPath, predicate, func(entry ZipEntry) error {
		target := filepath.Join(destDir, filepath.FromSlash(entry.Name))
		if entry.IsDir {
			return os.MkdirAll(target, 0o755)
		}
		if !overwrite {
			if _, err := os.Stat(target); err == nil {
				return nil
			}
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return onelauncher.Wrap(onelauncher.KindIO, err, target)
		}
		rc, err := entry.Open()
		if err != nil {
			return onelauncher.Wrap(onelauncher.KindIO, err, entry.Name)
		}
		defer rc.Close()

		out, err := os.Create(target)
		if err != nil {
			return onelauncher.Wrap(onelauncher.KindIO, err, target)
		}
		defer out.Close()

		_, err = io.Copy(out, rc)
		if err != nil {
			return onelauncher.Wrap(onelauncher.KindIO, err, target)
		}
		return nil
	})
}

// SanitizeZipEntryName strips ".." path segments and normalises
// separators to forward slashes, per spec §4.B. A ".." segment drops
// the segment before it and is ignored at the root, so the result never
// climbs above the archive root; it is "" only when no segment remains.
func SanitizeZipEntryName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	parts := strings.Split(name, "/")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			if len(cleaned) > 0 {
				cleaned = cleaned[:len(cleaned)-1]
			}
			continue
		default:
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, "/")
}
