package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/Polyfrost/onelauncher-core/internal/fetch"
)

func newTestCache(t *testing.T, handler http.HandlerFunc) (*Cache, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := fetch.New(fetch.DefaultConfig())
	cache := New(client, filepath.Join(t.TempDir(), "metadata.json"))
	return cache, srv
}

func TestCache_PeekNotFoundWithoutNetwork(t *testing.T) {
	cache, _ := newTestCache(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("Peek must not perform network I/O")
	})

	if _, err := cache.Peek(LoaderForge); err != ErrNotFound {
		t.Fatalf("Peek() error = %v, want ErrNotFound", err)
	}
}

func TestCache_RefreshModdedUnknownLoader(t *testing.T) {
	cache, _ := newTestCache(t, func(w http.ResponseWriter, r *http.Request) {})

	if _, err := cache.RefreshModded(context.Background(), LoaderVanilla); err == nil {
		t.Fatal("RefreshModded(LoaderVanilla) expected an error, got nil")
	}
}

func TestCache_LoadersForMemoises(t *testing.T) {
	cache, _ := newTestCache(t, func(w http.ResponseWriter, r *http.Request) {})

	cache.mu.Lock()
	cache.data.Modded = map[Loader]*ModdedManifest{
		LoaderFabric: {
			Loader: LoaderFabric,
			ByMCVer: map[string][]LoaderVersion{
				"1.20.1": {{Version: "0.15.0", MinecraftVersion: "1.20.1", Loader: LoaderFabric}},
			},
		},
	}
	cache.mu.Unlock()

	loaders := cache.LoadersFor("1.20.1")
	if len(loaders) != 1 || loaders[0] != LoaderFabric {
		t.Fatalf("LoadersFor(1.20.1) = %v, want [Fabric]", loaders)
	}

	if cached, ok := cache.loadersCache["1.20.1"]; !ok || len(cached) != 1 {
		t.Fatalf("LoadersFor did not memoise result: %v", cache.loadersCache)
	}

	if got := cache.LoadersFor("1.19"); got != nil {
		t.Fatalf("LoadersFor(1.19) = %v, want nil", got)
	}
}

func TestCache_LoadMissingFileIsNotAnError(t *testing.T) {
	cache, _ := newTestCache(t, func(w http.ResponseWriter, r *http.Request) {})
	if err := cache.Load(); err != nil {
		t.Fatalf("Load() on missing file error = %v, want nil", err)
	}
}
