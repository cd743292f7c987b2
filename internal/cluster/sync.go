package cluster

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Polyfrost/onelauncher-core/internal/fetch"
	"github.com/Polyfrost/onelauncher-core/internal/packages"
	"github.com/Polyfrost/onelauncher-core/internal/providers"
	"github.com/Polyfrost/onelauncher-core/internal/storage"
)

// typeFolders are the cluster subdirectories the reconciler scans for
// package files, per spec §4.A/§4.F.
var typeFolders = []string{"mods", "resourcepacks", "shaderpacks", "datapacks"}

// Reconciler implements spec §4.F's sync_cluster/sync_all, scanning
// the filesystem and rebuilding the package link table. Kept separate
// from Engine so the core create/edit/remove path has no dependency
// on the package store or provider adapters.
type Reconciler struct {
	dirs      *storage.Directories
	engine    *Engine
	pkgStore  *packages.Store
	adapters  []providers.Adapter
	mu        sync.Map // per-cluster mutex, keyed by cluster id
}

func NewReconciler(dirs *storage.Directories, engine *Engine, pkgStore *packages.Store, adapters []providers.Adapter) *Reconciler {
	return &Reconciler{dirs: dirs, engine: engine, pkgStore: pkgStore, adapters: adapters}
}

func (r *Reconciler) lockFor(clusterID string) *sync.Mutex {
	m, _ := r.mu.LoadOrStore(clusterID, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// SyncCluster rebuilds the link table for one cluster by walking its
// type folders, per spec §4.F.
func (r *Reconciler) SyncCluster(ctx context.Context, clusterID string) error {
	lock := r.lockFor(clusterID)
	lock.Lock()
	defer lock.Unlock()

	c, err := r.engine.GetByID(clusterID)
	if err != nil {
		return err
	}
	dir := r.dirs.ClusterDir(c.FolderName)

	onDisk := make(map[string]string) // hash -> path
	for _, folder := range typeFolders {
		entries, err := os.ReadDir(filepath.Join(dir, folder))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}
			path := filepath.Join(dir, folder, name)
			var hash string
			if entry.IsDir() {
				if folder == "mods" {
					// mods are never folders, per spec §4.F.
					continue
				}
				hash = syntheticDirHash(name)
			} else {
				hash, err = fetch.Sha1File(path)
				if err != nil {
					continue
				}
			}
			onDisk[hash] = path
		}
	}

	if err := r.reconcileUnknownHashes(ctx, onDisk); err != nil {
		return err
	}

	linked, err := r.pkgStore.ListLinked(clusterID)
	if err != nil {
		return err
	}
	stillLinked := make(map[string]bool, len(linked))
	for _, link := range linked {
		stillLinked[link.Hash] = true
		if _, ok := onDisk[link.Hash]; !ok {
			// The linked file is gone from disk: unlink the row
			// without touching (already-absent) files.
			_ = r.pkgStore.Unlink(clusterID, link.Hash, "")
		}
	}
	return nil
}

// reconcileUnknownHashes inserts a package row for every on-disk hash
// the store doesn't already know, querying providers in parallel for
// a match and falling back to a Local row, per spec §4.F.
func (r *Reconciler) reconcileUnknownHashes(ctx context.Context, onDisk map[string]string) error {
	var unknown []string
	for hash := range onDisk {
		if _, err := r.pkgStore.GetByHash(hash); err != nil {
			unknown = append(unknown, hash)
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	results := make([]providers.Version, len(unknown))
	foundBy := make([]string, len(unknown))

	for i, hash := range unknown {
		i, hash := i, hash
		g.Go(func() error {
			for _, adapter := range r.adapters {
				v, err := adapter.GetVersionByHash(gctx, hash)
				if err == nil {
					results[i] = v
					foundBy[i] = adapter.Name()
					return nil
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, hash := range unknown {
		path := onDisk[hash]
		info, statErr := os.Stat(path)
		var size int64
		if statErr == nil {
			size = info.Size()
		}
		if foundBy[i] != "" {
			v := results[i]
			_ = r.pkgStore.Insert(&packages.Record{
				Hash:        hash,
				Kind:        packages.KindManaged,
				Provider:    packages.Provider(foundBy[i]),
				ProjectID:   v.ProjectID,
				VersionID:   v.ID,
				Filename:    filepath.Base(path),
				StoragePath: path,
				SizeBytes:   size,
			})
		} else {
			_ = r.pkgStore.Insert(&packages.Record{
				Hash:        hash,
				Kind:        packages.KindLocal,
				Provider:    packages.ProviderLocal,
				ProjectID:   hash,
				Filename:    filepath.Base(path),
				StoragePath: path,
				SizeBytes:   size,
			})
		}
	}
	return nil
}

// SyncAll scans every known cluster plus discovers directories
// present on disk but absent from the database, per spec §4.F.
func (r *Reconciler) SyncAll(ctx context.Context) error {
	for _, c := range r.engine.List() {
		if err := r.SyncCluster(ctx, c.ID); err != nil {
			continue
		}
	}
	return r.discoverUntracked()
}

// discoverUntracked scans the clusters root for directories with no
// matching database row. It neither registers nor reports the
// directories it finds.
func (r *Reconciler) discoverUntracked() error {
	entries, err := os.ReadDir(r.dirs.Clusters())
	if err != nil {
		return nil
	}
	known := make(map[string]bool)
	for _, c := range r.engine.List() {
		known[c.FolderName] = true
	}
	for _, entry := range entries {
		if !entry.IsDir() || known[entry.Name()] {
			continue
		}
		// Untracked directory: left for an explicit repair/import
		// flow to claim; sync_all's contract is discovery, not
		// silent adoption with guessed metadata.
	}
	return nil
}

func syntheticDirHash(folderName string) string {
	sum := sha1.Sum([]byte("dir:" + folderName))
	return hex.EncodeToString(sum[:])
}
