package cluster

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
)

// clusterJSONName is the export mirror's filename inside each cluster
// directory. The database row (Store) is authoritative; this file
// exists only so external tools and the user's own backups can read a
// cluster's metadata without a database connection.
const clusterJSONName = "cluster.json"

type clusterJSONDoc struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	MCVersion      string            `json:"mc_version"`
	Loader         string            `json:"loader"`
	LoaderVersion  string            `json:"loader_version,omitempty"`
	Stage          string            `json:"stage"`
	IconPath       string            `json:"icon_path,omitempty"`
	JavaOverride   string            `json:"java_override,omitempty"`
	MemoryMinMB    int               `json:"memory_min_mb,omitempty"`
	MemoryMaxMB    int               `json:"memory_max_mb,omitempty"`
	ExtraJVMArgs   string            `json:"extra_jvm_args,omitempty"`
	ExtraEnv       map[string]string `json:"extra_env,omitempty"`
	WindowWidth    int               `json:"window_width,omitempty"`
	WindowHeight   int               `json:"window_height,omitempty"`
	Fullscreen     bool              `json:"fullscreen,omitempty"`
	PreHook        string            `json:"pre_hook,omitempty"`
	PostHook       string            `json:"post_hook,omitempty"`
	WrapperCommand string            `json:"wrapper_command,omitempty"`
	RecentlyPlayed int64             `json:"recently_played_seconds"`
	OverallPlayed  int64             `json:"overall_played_seconds"`
	LastPlayedAt   *time.Time        `json:"last_played_at,omitempty"`
	OriginPackage  string            `json:"origin_package_hash,omitempty"`
	OriginVersion  string            `json:"origin_version_id,omitempty"`
	OriginLocked   bool              `json:"origin_locked,omitempty"`
}

func writeClusterJSONFile(dir string, c *Cluster) error {
	doc := clusterJSONDoc{
		ID:             c.ID,
		Name:           c.Name,
		MCVersion:      c.MCVersion,
		Loader:         string(c.Loader),
		LoaderVersion:  c.LoaderVersion,
		Stage:          string(c.Stage),
		IconPath:       c.IconPath,
		JavaOverride:   c.JavaOverride,
		MemoryMinMB:    c.MemoryMinMB,
		MemoryMaxMB:    c.MemoryMaxMB,
		ExtraJVMArgs:   c.ExtraJVMArgs,
		ExtraEnv:       c.ExtraEnv(),
		WindowWidth:    c.WindowWidth,
		WindowHeight:   c.WindowHeight,
		Fullscreen:     c.Fullscreen,
		PreHook:        c.PreHook,
		PostHook:       c.PostHook,
		WrapperCommand: c.WrapperCommand,
		RecentlyPlayed: c.RecentlyPlayed,
		OverallPlayed:  c.OverallPlayed,
		LastPlayedAt:   c.LastPlayedAt,
		OriginPackage:  c.OriginPackageHash,
		OriginVersion:  c.OriginVersionID,
		OriginLocked:   c.OriginLocked,
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return onelauncher.Wrap(onelauncher.KindSerde, err, "marshal cluster.json")
	}

	path := filepath.Join(dir, clusterJSONName)
	tmp, err := os.CreateTemp(dir, ".cluster-*.json")
	if err != nil {
		return onelauncher.Wrap(onelauncher.KindIO, err, dir)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return onelauncher.Wrap(onelauncher.KindIO, err, tmpPath)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return onelauncher.Wrap(onelauncher.KindIO, err, tmpPath)
	}
	return os.Rename(tmpPath, path)
}
