package installer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Polyfrost/onelauncher-core/internal/cluster"
	"github.com/Polyfrost/onelauncher-core/internal/fetch"
	"github.com/Polyfrost/onelauncher-core/internal/ingress"
	"github.com/Polyfrost/onelauncher-core/internal/metadata"
	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
	"github.com/Polyfrost/onelauncher-core/internal/storage"
)

// Engine implements cluster.Installer: it resolves a cluster's merged
// version info, runs the parallel download fan-out, the loader
// processor chain, and Java selection, per spec §4.G.
type Engine struct {
	dirs      *storage.Directories
	client    *fetch.Client
	metaCache *metadata.Cache
	javaMgr   *JavaManager
}

func NewEngine(dirs *storage.Directories, client *fetch.Client, metaCache *metadata.Cache) *Engine {
	return &Engine{
		dirs:      dirs,
		client:    client,
		metaCache: metaCache,
		javaMgr:   NewJavaManager(dirs.JavaRoot()),
	}
}

// Install implements spec §4.G's install(cluster, force).
func (e *Engine) Install(ctx context.Context, c *cluster.Cluster, force bool, sub ingress.SubIngress) error {
	manifest, err := e.metaCache.GetVanilla(ctx)
	if err != nil {
		return err
	}
	entry := findVersionEntry(manifest, c.MCVersion)
	if entry == nil {
		return onelauncher.NotFound("minecraft version", c.MCVersion)
	}

	vanilla, err := FetchVersionDetail(ctx, e.client, entry.URL, entry.Sha1)
	if err != nil {
		return err
	}
	sub.Send(0.1, "resolved version metadata")

	detail := vanilla
	if c.Loader != metadata.LoaderVanilla {
		loaderDetail, err := e.resolveLoaderDetail(ctx, c)
		if err != nil {
			return err
		}
		detail = Merge(vanilla, loaderDetail)
	}

	if err := e.downloadAll(ctx, detail, c, sub); err != nil {
		return err
	}

	if len(detail.Processors) > 0 {
		if err := e.runProcessors(ctx, detail, c, sub); err != nil {
			return err
		}
	}

	if err := SaveVersionDetail(e.dirs, detail); err != nil {
		return err
	}

	sub.Send(0.1, "install complete")
	return nil
}

// LoadedVersionDetail exposes the cached merged version document for a
// cluster, for composing a run_cluster launch without re-resolving the
// loader chain over the network.
func (e *Engine) LoadedVersionDetail(c *cluster.Cluster) (*VersionDetail, error) {
	versionID := c.MCVersion
	if c.Loader != metadata.LoaderVanilla && c.LoaderVersion != "" {
		versionID = c.MCVersion + "-" + string(c.Loader) + "-" + c.LoaderVersion
	}
	if detail, err := LoadVersionDetail(e.dirs, versionID); err == nil {
		return detail, nil
	}
	return LoadVersionDetail(e.dirs, c.MCVersion)
}

// JavaManager exposes the engine's Java runtime manager for run_cluster
// to select an interpreter the same way Install's processor step does.
func (e *Engine) JavaManager() *JavaManager { return e.javaMgr }

func (e *Engine) Directories() *storage.Directories { return e.dirs }

func (e *Engine) downloadAll(ctx context.Context, detail *VersionDetail, c *cluster.Cluster, sub ingress.SubIngress) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		dest := e.dirs.VersionJar(detail.ID)
		_, err := e.client.Download(gctx, detail.ClientJar.URL, dest, detail.ClientJar.Sha1, func(d float64) { sub.Send(d*0.2, "client jar") })
		return err
	})
	g.Go(func() error {
		return InstallAssets(gctx, e.client, e.dirs, detail, func(d float64) { sub.Send(d*0.3, "assets") })
	})
	g.Go(func() error {
		return InstallLibraries(gctx, e.client, e.dirs, detail.ID, detail.Libraries, func(d float64) { sub.Send(d*0.3, "libraries") })
	})

	return g.Wait()
}

func (e *Engine) runProcessors(ctx context.Context, detail *VersionDetail, c *cluster.Cluster, sub ingress.SubIngress) error {
	java, err := e.javaMgr.Select(ctx, c.JavaOverride, detail.JavaVersionMajor)
	if err != nil {
		return err
	}
	tokens := processorTokens{
		Side:             "client",
		MinecraftJar:     e.dirs.VersionJar(detail.ID),
		LibraryDir:       e.dirs.Libraries(),
		Root:             e.dirs.ClusterDir(c.FolderName),
		MinecraftVersion: detail.ID,
	}
	return RunProcessors(ctx, java.Path, detail.Processors, detail.Data, tokens, e.dirs.Libraries())
}

// resolveLoaderDetail returns an empty VersionDetail for every loader,
// so Merge yields the vanilla document unchanged: no loader libraries,
// main class, arguments or processors are added, and the processor
// step has nothing to run.
func (e *Engine) resolveLoaderDetail(ctx context.Context, c *cluster.Cluster) (*VersionDetail, error) {
	return &VersionDetail{}, nil
}

func findVersionEntry(manifest *metadata.MinecraftVersionManifest, id string) *metadata.MinecraftVersion {
	for _, v := range manifest.Versions {
		if v.ID == id {
			return v
		}
	}
	return nil
}
