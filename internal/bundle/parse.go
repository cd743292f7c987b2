package bundle

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/Polyfrost/onelauncher-core/internal/fetch"
	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
	"github.com/Polyfrost/onelauncher-core/internal/packages"
)

const manifestEntryName = "modrinth.index.json"

// mrpackManifestDoc mirrors modrinth.index.json.
type mrpackManifestDoc struct {
	FormatVersion int    `json:"formatVersion"`
	Name          string `json:"name"`
	VersionID     string `json:"versionId"`
	Summary       string `json:"summary,omitempty"`
	Files         []struct {
		Path   string `json:"path"`
		Hashes struct {
			SHA1 string `json:"sha1"`
		} `json:"hashes"`
		Env struct {
			Client string `json:"client"`
			Server string `json:"server"`
		} `json:"env"`
		Downloads []string `json:"downloads"`
		FileSize  int64    `json:"fileSize"`
	} `json:"files"`
	Dependencies struct {
		Minecraft    string `json:"minecraft"`
		Forge        string `json:"forge,omitempty"`
		FabricLoader string `json:"fabric-loader,omitempty"`
		NeoForge     string `json:"neoforge,omitempty"`
		Quilt        string `json:"quilt-loader,omitempty"`
	} `json:"dependencies"`
}

// polyMrPackManifestDoc extends mrpackManifestDoc with the top-level
// enabled flag and the per-file enabled/hidden flags polymrpack adds.
type polyMrPackManifestDoc struct {
	Name         string            `json:"name"`
	VersionID    string            `json:"versionId"`
	Enabled      bool              `json:"enabled"`
	Dependencies map[string]string `json:"dependencies"`
	Files        []struct {
		Path   string `json:"path"`
		Hashes struct {
			SHA1 string `json:"sha1"`
		} `json:"hashes"`
		Downloads []string `json:"downloads"`
		FileSize  int64    `json:"fileSize"`
		Enabled   bool     `json:"enabled"`
		Hidden    bool     `json:"hidden"`
	} `json:"files"`
}

func readManifestBytes(ctx context.Context, archivePath string) ([]byte, error) {
	var data []byte
	err := fetch.WalkZip(ctx, archivePath, func(name string) bool {
		return name == manifestEntryName
	}, func(entry fetch.ZipEntry) error {
		rc, err := entry.Open()
		if err != nil {
			return err
		}
		defer rc.Close()
		buf, err := io.ReadAll(rc)
		if err != nil {
			return err
		}
		data = buf
		return nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, onelauncher.New(onelauncher.KindNotFound, manifestEntryName+" not found in "+archivePath)
	}
	return data, nil
}

func fileToManifestFile(path string, sha1 string, downloads []string, fileSize int64, enabled, hidden bool) ManifestFile {
	var url string
	if len(downloads) > 0 {
		url = downloads[0]
	}
	if projectID, versionID, ok := parseModrinthCDNURL(url); ok {
		return ManifestFile{
			Path:    path,
			Enabled: enabled,
			Hidden:  hidden,
			Managed: &ManagedFile{
				Provider:    packages.ProviderModrinth,
				ProjectID:   projectID,
				VersionID:   versionID,
				Filename:    filepath.Base(path),
				DownloadURL: url,
				Sha1:        sha1,
			},
		}
	}
	return ManifestFile{
		Path:    path,
		Enabled: enabled,
		Hidden:  hidden,
		External: &ExternalFile{
			Name: filepath.Base(path),
			URL:  url,
			Sha1: sha1,
			Size: fileSize,
		},
	}
}

// ParseMRPack parses a standard Modrinth .mrpack archive into a
// canonical Manifest, per spec §4.H's key-derivation input.
func ParseMRPack(ctx context.Context, archivePath string) (*Manifest, error) {
	data, err := readManifestBytes(ctx, archivePath)
	if err != nil {
		return nil, err
	}
	var doc mrpackManifestDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindSerde, err, "decode "+manifestEntryName)
	}

	m := &Manifest{
		Name:          doc.Name,
		Version:       doc.VersionID,
		MCVersion:     doc.Dependencies.Minecraft,
		OverridesDirs: []string{"client-overrides", "overrides"},
		SourcePath:    archivePath,
	}
	switch {
	case doc.Dependencies.Forge != "":
		m.Loader, m.LoaderVersion = "forge", doc.Dependencies.Forge
	case doc.Dependencies.NeoForge != "":
		m.Loader, m.LoaderVersion = "neoforge", doc.Dependencies.NeoForge
	case doc.Dependencies.FabricLoader != "":
		m.Loader, m.LoaderVersion = "fabric", doc.Dependencies.FabricLoader
	case doc.Dependencies.Quilt != "":
		m.Loader, m.LoaderVersion = "quilt", doc.Dependencies.Quilt
	}

	for _, f := range doc.Files {
		if !isPackagePath(f.Path) {
			continue
		}
		m.Files = append(m.Files, fileToManifestFile(f.Path, f.Hashes.SHA1, f.Downloads, f.FileSize, true, false))
	}
	return m, nil
}

// ParsePolyMRPack parses OneLauncher's own polymrpack extension, which
// adds per-file enabled/hidden flags on top of the mrpack schema.
func ParsePolyMRPack(ctx context.Context, archivePath string) (*Manifest, error) {
	data, err := readManifestBytes(ctx, archivePath)
	if err != nil {
		return nil, err
	}
	var doc polyMrPackManifestDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindSerde, err, "decode polymrpack "+manifestEntryName)
	}

	m := &Manifest{
		Name:          doc.Name,
		Version:       doc.VersionID,
		OverridesDirs: []string{"client-overrides", "overrides"},
		SourcePath:    archivePath,
	}
	for key, value := range doc.Dependencies {
		if key == "minecraft" {
			m.MCVersion = value
		} else {
			m.Loader, m.LoaderVersion = key, value
		}
	}

	for _, f := range doc.Files {
		if !isPackagePath(f.Path) {
			continue
		}
		m.Files = append(m.Files, fileToManifestFile(f.Path, f.Hashes.SHA1, f.Downloads, f.FileSize, f.Enabled, f.Hidden))
	}
	return m, nil
}

// isPackagePath restricts manifest files to the package-managed
// folders; config/other files ship via the overrides/ subtree instead.
func isPackagePath(path string) bool {
	path = strings.ReplaceAll(path, "\\", "/")
	top := strings.SplitN(path, "/", 2)[0]
	switch top {
	case "mods", "resourcepacks", "shaderpacks", "datapacks":
		return true
	default:
		return false
	}
}

// Parse auto-detects mrpack vs polymrpack. polymrpack carries a
// top-level "enabled" flag that plain mrpack never does; a manifest
// with that key is parsed as polymrpack, any other as mrpack. The
// per-file flags are not probed.
func Parse(ctx context.Context, archivePath string) (*Manifest, error) {
	data, err := readManifestBytes(ctx, archivePath)
	if err != nil {
		return nil, err
	}
	var probe struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindSerde, err, "probe "+manifestEntryName)
	}
	if probe.Enabled != nil {
		return ParsePolyMRPack(ctx, archivePath)
	}
	return ParseMRPack(ctx, archivePath)
}
