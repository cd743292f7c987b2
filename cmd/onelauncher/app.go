// Package main is the onelauncher CLI: a thin cobra front end over the
// core packages in internal/, composed once at startup and threaded
// into the command tree.
package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Polyfrost/onelauncher-core/internal/applog"
	"github.com/Polyfrost/onelauncher-core/internal/auth"
	"github.com/Polyfrost/onelauncher-core/internal/bundle"
	"github.com/Polyfrost/onelauncher-core/internal/cluster"
	"github.com/Polyfrost/onelauncher-core/internal/config"
	"github.com/Polyfrost/onelauncher-core/internal/fetch"
	"github.com/Polyfrost/onelauncher-core/internal/ingress"
	"github.com/Polyfrost/onelauncher-core/internal/installer"
	"github.com/Polyfrost/onelauncher-core/internal/metadata"
	"github.com/Polyfrost/onelauncher-core/internal/packages"
	"github.com/Polyfrost/onelauncher-core/internal/process"
	"github.com/Polyfrost/onelauncher-core/internal/providers"
	"github.com/Polyfrost/onelauncher-core/internal/storage"
)

// App is the process-wide composition root. One App is built in
// main() and threaded into every cobra command's RunE via a closure,
// a single dependency-graph struct rather than a DI framework.
type App struct {
	Dirs   *storage.Directories
	Config *config.Config
	Log    *slog.Logger

	Fetch     *fetch.Client
	Bus       *ingress.Bus
	MetaCache *metadata.Cache

	ClusterStore  *cluster.Store
	ClusterEngine *cluster.Engine
	SyncRecon     *cluster.Reconciler

	InstallEngine *installer.Engine

	PkgStore   *packages.Store
	BundleRec  *bundle.Reconciler
	Modrinth   *providers.Modrinth
	CurseForge *providers.CurseForge

	AuthStore *auth.Store
	AuthFlow  *auth.Flow

	ProcStore  *process.Store
	Supervisor *process.Supervisor
}

// NewApp wires every package's composition root in dependency order,
// the way spec §5's "cold launch" data flow is laid out: storage ->
// fetch -> metadata -> cluster/installer -> packages/bundle ->
// providers -> auth -> process.
func NewApp() (*App, error) {
	dirs, err := storage.New()
	if err != nil {
		return nil, fmt.Errorf("resolve app data directory: %w", err)
	}

	cfg, err := config.Load(dirs.Root())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := applog.New(applog.Config{
		Enabled:    true,
		FilePath:   filepath.Join(dirs.Caches(), "onelauncher.log"),
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 14,
		Compress:   true,
		Level:      slog.LevelInfo,
	})

	client := fetch.New(fetch.Config{
		MaxRetries:       cfg.HTTP.MaxRetries,
		RequestTimeout:   cfg.HTTP.RequestTimeout,
		HTTPConcurrency:  int64(cfg.HTTP.HTTPConcurrency),
		IOConcurrency:    int64(cfg.HTTP.IOConcurrency),
		KeepAliveTimeout: cfg.HTTP.KeepAliveTimeout,
		UserAgent:        cfg.HTTP.UserAgentProduct + "/" + cfg.HTTP.UserAgentVersion,
	})

	bus := ingress.New()
	metaCache := metadata.New(client, dirs.MetadataFile())
	if err := metaCache.Load(); err != nil {
		logger.Warn("metadata cache load failed, starting cold", "error", err)
	}

	installEngine := installer.NewEngine(dirs, client, metaCache)

	clusterStore, err := cluster.OpenStore(dirs.DatabaseFile())
	if err != nil {
		return nil, fmt.Errorf("open cluster store: %w", err)
	}
	clusterEngine, err := cluster.New(dirs, clusterStore, metaCache, installEngine, bus)
	if err != nil {
		return nil, fmt.Errorf("start cluster engine: %w", err)
	}

	pkgStore, err := packages.Open(dirs.DatabaseFile())
	if err != nil {
		return nil, fmt.Errorf("open package store: %w", err)
	}

	modrinth := providers.NewModrinth(client)
	curseforge := providers.NewCurseForge(client, cfg.Providers.CurseForgeAPIKey)
	adapters := []providers.Adapter{modrinth, curseforge}

	syncRecon := cluster.NewReconciler(dirs, clusterEngine, pkgStore, adapters)
	bundleRec := bundle.NewReconciler(dirs, pkgStore, client)

	authStore, err := auth.OpenStore(dirs.AuthenticationFile())
	if err != nil {
		return nil, fmt.Errorf("open auth store: %w", err)
	}
	authFlow := auth.New(authStore, cfg.Auth.ClientID, "https://login.live.com/oauth20_desktop.srf")

	procStore, err := process.OpenStore(dirs.ProcessorFile())
	if err != nil {
		return nil, fmt.Errorf("open process store: %w", err)
	}
	supervisor := process.NewSupervisor(procStore, bus, clusterEngine)

	return &App{
		Dirs:          dirs,
		Config:        cfg,
		Log:           logger,
		Fetch:         client,
		Bus:           bus,
		MetaCache:     metaCache,
		ClusterStore:  clusterStore,
		ClusterEngine: clusterEngine,
		SyncRecon:     syncRecon,
		InstallEngine: installEngine,
		PkgStore:      pkgStore,
		BundleRec:     bundleRec,
		Modrinth:      modrinth,
		CurseForge:    curseforge,
		AuthStore:     authStore,
		AuthFlow:      authFlow,
		ProcStore:     procStore,
		Supervisor:    supervisor,
	}, nil
}

// Close releases the engine's fsnotify watcher and the two gorm
// connections; it does not touch the process supervisor, which has no
// close-time resources of its own (its children outlive the CLI
// invocation by design).
func (a *App) Close() {
	if err := a.ClusterEngine.Close(); err != nil {
		a.Log.Warn("cluster engine close", "error", err)
	}
	if err := a.ClusterStore.Close(); err != nil {
		a.Log.Warn("cluster store close", "error", err)
	}
	if err := a.PkgStore.Close(); err != nil {
		a.Log.Warn("package store close", "error", err)
	}
}
