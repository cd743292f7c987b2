package metadata

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Polyfrost/onelauncher-core/internal/fetch"
	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
)

// onDisk is the single metadata.json persisted file, per spec §4.C.
type onDisk struct {
	Vanilla   *MinecraftVersionManifest  `json:"vanilla,omitempty"`
	Modded    map[Loader]*ModdedManifest `json:"modded,omitempty"`
	FetchedAt time.Time                  `json:"fetched_at"`
}

// Cache is the unified metadata cache of spec §4.C. It loads
// <caches>/metadata.json on first use; if the file or individual
// loader manifests are missing, it fetches the missing ones in
// parallel (errgroup fan-out) and persists the merged result as one
// document. loaders_for is memoised per Minecraft version.
type Cache struct {
	path   string
	bakPath string
	client *fetch.Client

	mu   sync.RWMutex
	data onDisk

	loadersMu    sync.Mutex
	loadersCache map[string][]Loader
}

func New(client *fetch.Client, metadataFile string) *Cache {
	return &Cache{
		path:         metadataFile,
		bakPath:      metadataFile + ".bak",
		client:       client,
		loadersCache: make(map[string][]Loader),
	}
}

// Load reads metadata.json if present. A missing or corrupt file is
// not an error: callers fall through to fetching on demand.
func (c *Cache) Load() error {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return onelauncher.Wrap(onelauncher.KindIO, err, c.path)
	}
	var d onDisk
	if err := json.Unmarshal(raw, &d); err != nil {
		// Corrupt primary file: try the backup before giving up.
		if bak, berr := os.ReadFile(c.bakPath); berr == nil {
			if jerr := json.Unmarshal(bak, &d); jerr == nil {
				c.mu.Lock()
				c.data = d
				c.mu.Unlock()
				return nil
			}
		}
		return nil
	}
	c.mu.Lock()
	c.data = d
	c.mu.Unlock()
	return nil
}

// persist writes metadata.json atomically, rotating the previous
// version to .bak first, per spec §4.C.
func (c *Cache) persist() error {
	c.mu.RLock()
	payload, err := json.MarshalIndent(c.data, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return onelauncher.Wrap(onelauncher.KindIO, err, "marshal metadata cache")
	}

	if _, err := os.Stat(c.path); err == nil {
		_ = os.Rename(c.path, c.bakPath)
	}

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, ".metadata-*.json")
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
	if err := os.Rename(tmpPath, c.path); err != nil {
		return onelauncher.Wrap(onelauncher.KindIO, err, c.path)
	}
	return nil
}

// GetVanilla returns the cached vanilla manifest, fetching and
// persisting it if absent.
func (c *Cache) GetVanilla(ctx context.Context) (*MinecraftVersionManifest, error) {
	c.mu.RLock()
	m := c.data.Vanilla
	c.mu.RUnlock()
	if m != nil {
		return m, nil
	}

	fetched, err := fetchVanilla(ctx, c.client)
	if err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindNetwork, err, "fetch vanilla manifest")
	}

	c.mu.Lock()
	c.data.Vanilla = fetched
	c.data.FetchedAt = time.Now()
	c.mu.Unlock()

	if err := c.persist(); err != nil {
		return fetched, err
	}
	return fetched, nil
}

// GetModded returns the cached modded manifest for loader, per spec
// §4.C: "A manifest known to a loader but missing from the cache
// returns NotFound without attempting implicit network I/O; explicit
// refresh is a separate call." GetModded IS that fetch-if-missing path
// used by RefreshModded; callers wanting the strict cache-only lookup
// should use Peek.
func (c *Cache) GetModded(ctx context.Context, loader Loader) (*ModdedManifest, error) {
	c.mu.RLock()
	m := c.data.Modded[loader]
	c.mu.RUnlock()
	if m != nil {
		return m, nil
	}
	return c.RefreshModded(ctx, loader)
}

// Peek returns a modded manifest only if already cached, per spec
// §4.C's NotFound-without-network-IO requirement.
func (c *Cache) Peek(loader Loader) (*ModdedManifest, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m := c.data.Modded[loader]
	if m == nil {
		return nil, ErrNotFound
	}
	return m, nil
}

func fetcherFor(loader Loader) func(context.Context, *fetch.Client) (*ModdedManifest, error) {
	switch loader {
	case LoaderForge:
		return fetchForge
	case LoaderNeoForge:
		return fetchNeoForge
	case LoaderFabric:
		return fetchFabric
	case LoaderQuilt:
		return fetchQuilt
	case LoaderLegacyFabric:
		return fetchLegacyFabric
	default:
		return nil
	}
}

// RefreshModded always fetches loader's manifest over the network,
// caches it, and persists — the explicit-refresh call spec §4.C
// distinguishes from the implicit cache-or-NotFound GetModded read.
func (c *Cache) RefreshModded(ctx context.Context, loader Loader) (*ModdedManifest, error) {
	f := fetcherFor(loader)
	if f == nil {
		return nil, onelauncher.New(onelauncher.KindUnsupportedLoader, "no modded manifest for loader "+string(loader))
	}
	fetched, err := f(ctx, c.client)
	if err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindNetwork, err, "fetch "+string(loader)+" manifest")
	}
	fetched.FetchedAt = time.Now()

	c.mu.Lock()
	if c.data.Modded == nil {
		c.data.Modded = make(map[Loader]*ModdedManifest)
	}
	c.data.Modded[loader] = fetched
	c.data.FetchedAt = time.Now()
	c.mu.Unlock()

	c.loadersMu.Lock()
	c.loadersCache = make(map[string][]Loader)
	c.loadersMu.Unlock()

	if err := c.persist(); err != nil {
		return fetched, err
	}
	return fetched, nil
}

// WarmAll fetches the vanilla manifest plus every modded manifest in
// parallel, for first-use population of metadata.json. Each fetch
// persists metadata.json as it completes, and every modded manifest is
// refetched even when already cached.
func (c *Cache) WarmAll(ctx context.Context) error {
	loaders := []Loader{LoaderForge, LoaderNeoForge, LoaderFabric, LoaderQuilt, LoaderLegacyFabric}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := c.GetVanilla(gctx)
		return err
	})
	for _, l := range loaders {
		l := l
		g.Go(func() error {
			_, err := c.RefreshModded(gctx, l)
			return err
		})
	}
	return g.Wait()
}

// LoadersFor reports which loaders publish a version targeting
// mcVersion, computed by scanning the cached modded manifests and
// memoised per Minecraft version, per spec §4.C.
func (c *Cache) LoadersFor(mcVersion string) []Loader {
	c.loadersMu.Lock()
	if cached, ok := c.loadersCache[mcVersion]; ok {
		c.loadersMu.Unlock()
		return cached
	}
	c.loadersMu.Unlock()

	c.mu.RLock()
	var result []Loader
	for loader, manifest := range c.data.Modded {
		if manifest == nil {
			continue
		}
		if _, ok := manifest.ByMCVer[mcVersion]; ok {
			result = append(result, loader)
		}
	}
	c.mu.RUnlock()

	c.loadersMu.Lock()
	c.loadersCache[mcVersion] = result
	c.loadersMu.Unlock()
	return result
}
