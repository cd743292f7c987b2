package cluster

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/Polyfrost/onelauncher-core/internal/ingress"
	"github.com/Polyfrost/onelauncher-core/internal/metadata"
	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
	"github.com/Polyfrost/onelauncher-core/internal/storage"
)

// Installer is the game-installer collaborator the engine invokes
// during create/repair, per spec §4.F step 4. Implemented by
// internal/installer.Engine; kept as an interface here so this
// package never imports installer (dependency inversion avoids the
// obvious import cycle).
type Installer interface {
	Install(ctx context.Context, c *Cluster, force bool, sub ingress.SubIngress) error
}

// EditFunc mutates a cluster in place; returned error aborts the edit
// without persisting, per spec §4.F's closure-style edit().
type EditFunc func(c *Cluster) error

var nameSanitizer = regexp.MustCompile("[/\\\\?*:'\"|<>`]")

// Engine is the cluster engine of spec §4.F. One Engine is
// constructed at startup; it owns the write lock over the in-memory
// cluster map and the fsnotify watcher invalidating it.
type Engine struct {
	dirs      *storage.Directories
	store     *Store
	metaCache *metadata.Cache
	installer Installer
	bus       *ingress.Bus

	mu       sync.RWMutex
	byID     map[string]*Cluster
	watcher  *fsnotify.Watcher
}

func New(dirs *storage.Directories, store *Store, metaCache *metadata.Cache, installer Installer, bus *ingress.Bus) (*Engine, error) {
	e := &Engine{
		dirs:      dirs,
		store:     store,
		metaCache: metaCache,
		installer: installer,
		bus:       bus,
		byID:      make(map[string]*Cluster),
	}
	if err := e.reload(); err != nil {
		return nil, err
	}
	if err := e.startWatcher(); err != nil {
		// Watching is best-effort cache invalidation; a failure to
		// start it does not abort engine construction. Without a
		// watcher the map loaded above is served as-is and external
		// changes are not picked up.
		e.watcher = nil
	}
	return e, nil
}

func (e *Engine) reload() error {
	records, err := e.store.List()
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.byID = make(map[string]*Cluster, len(records))
	for _, r := range records {
		e.byID[r.ID] = &Cluster{Record: r}
	}
	return nil
}

// startWatcher adds a non-recursive watch on the clusters root: a
// write, removal or rename of an entry directly under it reloads the
// in-memory map from the database. Changes inside a cluster directory,
// including edits of its cluster.json, raise no event.
func (e *Engine) startWatcher() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(e.dirs.Clusters()); err != nil {
		w.Close()
		return err
	}
	e.watcher = w
	go e.watchLoop(w)
	return nil
}

func (e *Engine) watchLoop(w *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				_ = e.reload()
			}
		case _, ok := <-w.Errors:
			if !ok {
				return
			}
		}
	}
}

func (e *Engine) Close() error {
	if e.watcher != nil {
		return e.watcher.Close()
	}
	return nil
}

// sanitizeName strips characters illegal in folder names on any
// supported OS, matching internal/storage.SanitizeName.
func sanitizeName(name string) string {
	return nameSanitizer.ReplaceAllString(name, "_")
}

// CreateCluster implements spec §4.F's four-step create_cluster.
func (e *Engine) CreateCluster(ctx context.Context, name, mcVersion string, loader metadata.Loader, loaderVersion, iconPath string) (*Cluster, error) {
	folderName := storage.UniqueFolderName(e.dirs.Clusters(), sanitizeName(name))
	dir := e.dirs.ClusterDir(folderName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindIO, err, dir)
	}

	resolvedLoaderVersion, err := e.resolveLoaderVersion(ctx, mcVersion, loader, loaderVersion)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	rec := Record{
		ID:            uuid.NewString(),
		Name:          name,
		FolderName:    folderName,
		MCVersion:     mcVersion,
		Loader:        loader,
		LoaderVersion: resolvedLoaderVersion,
		Stage:         StageNotInstalled,
		IconPath:      iconPath,
	}
	if err := e.store.Insert(&rec); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	c := &Cluster{Record: rec}
	e.mu.Lock()
	e.byID[c.ID] = c
	e.mu.Unlock()

	sub := ingress.SubIngress{}
	if e.bus != nil {
		id := e.bus.Init("cluster_install", "Installing "+name, 1.0)
		sub = ingress.SubIngress{Bus: e.bus, Parent: id, Share: 1.0}
		defer e.bus.Complete(id)
	}

	if err := e.installer.Install(ctx, c, false, sub); err != nil {
		// Roll back: delete both the row and the directory, per spec
		// §4.F step 4.
		e.mu.Lock()
		delete(e.byID, c.ID)
		e.mu.Unlock()
		_ = e.store.Delete(c.ID)
		os.RemoveAll(dir)
		return nil, err
	}

	c.Stage = StageInstalled
	if err := e.store.Save(&c.Record); err != nil {
		return nil, err
	}
	if err := e.writeClusterJSON(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (e *Engine) resolveLoaderVersion(ctx context.Context, mcVersion string, loader metadata.Loader, requested string) (string, error) {
	if loader == metadata.LoaderVanilla {
		return "", nil
	}
	manifest, err := e.metaCache.GetModded(ctx, loader)
	if err != nil {
		return "", err
	}
	entries, ok := manifest.ByMCVer[mcVersion]
	if !ok || len(entries) == 0 {
		return "", onelauncher.UnsupportedLoader(string(loader), mcVersion)
	}
	if requested != "" {
		for _, entry := range entries {
			if entry.Version == requested {
				return requested, nil
			}
		}
		return "", onelauncher.WithFields(onelauncher.KindInvalidLoaderVer,
			fmt.Sprintf("loader version %s not found for %s %s", requested, loader, mcVersion),
			map[string]any{"loader": loader, "mc_version": mcVersion, "requested": requested})
	}
	// Newest stable entry, falling back to the first entry if none are
	// marked stable.
	for _, entry := range entries {
		if entry.Stable {
			return entry.Version, nil
		}
	}
	return entries[0].Version, nil
}

// Edit applies f under the engine's write lock, then persists the row
// and cluster.json, per spec §4.F's closure-style edit semantics.
func (e *Engine) Edit(id string, f EditFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.byID[id]
	if !ok {
		return onelauncher.NotFound("cluster", id)
	}
	if err := f(c); err != nil {
		return err
	}
	if err := e.store.Save(&c.Record); err != nil {
		return err
	}
	return e.writeClusterJSON(c)
}

func (e *Engine) writeClusterJSON(c *Cluster) error {
	return writeClusterJSONFile(e.dirs.ClusterDir(c.FolderName), c)
}

func (e *Engine) Remove(id string) error {
	e.mu.Lock()
	c, ok := e.byID[id]
	if ok {
		delete(e.byID, id)
	}
	e.mu.Unlock()
	if !ok {
		return onelauncher.NotFound("cluster", id)
	}
	if err := e.store.Delete(id); err != nil {
		return err
	}
	return os.RemoveAll(e.dirs.ClusterDir(c.FolderName))
}

// List returns every cluster, or — if one or more filters are passed —
// only the clusters for which every filter returns true. Mirrors the
// original store's list_filtered: a cluster survives only if ALL
// filters accept it.
func (e *Engine) List(filters ...func(*Cluster) bool) []*Cluster {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Cluster, 0, len(e.byID))
	for _, c := range e.byID {
		if clusterMatches(c, filters) {
			out = append(out, c)
		}
	}
	return out
}

func clusterMatches(c *Cluster, filters []func(*Cluster) bool) bool {
	for _, f := range filters {
		if !f(c) {
			return false
		}
	}
	return true
}

// FilterByStage returns a List filter accepting only clusters in stage.
func FilterByStage(stage Stage) func(*Cluster) bool {
	return func(c *Cluster) bool { return c.Stage == stage }
}

// FilterByLoader returns a List filter accepting only clusters using loader.
func FilterByLoader(loader metadata.Loader) func(*Cluster) bool {
	return func(c *Cluster) bool { return c.Loader == loader }
}

func (e *Engine) GetByID(id string) (*Cluster, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.byID[id]
	if !ok {
		return nil, onelauncher.NotFound("cluster", id)
	}
	return c, nil
}

// Repair force-reinstalls a cluster, per spec §4.F.
func (e *Engine) Repair(ctx context.Context, id string) error {
	c, err := e.GetByID(id)
	if err != nil {
		return err
	}
	sub := ingress.SubIngress{}
	if e.bus != nil {
		fid := e.bus.Init("cluster_repair", "Repairing "+c.Name, 1.0)
		sub = ingress.SubIngress{Bus: e.bus, Parent: fid, Share: 1.0}
		defer e.bus.Complete(fid)
	}
	if err := e.installer.Install(ctx, c, true, sub); err != nil {
		return err
	}
	return e.Edit(id, func(c *Cluster) error {
		c.Stage = StageInstalled
		return nil
	})
}
