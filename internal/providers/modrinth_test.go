package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Polyfrost/onelauncher-core/internal/fetch"
)

func TestCurseForge_MissingAPIKey(t *testing.T) {
	cf := NewCurseForge(fetch.New(fetch.DefaultConfig()), "")
	if _, err := cf.Get(context.Background(), "123"); err == nil {
		t.Fatal("Get() with no API key expected MissingApiKey error")
	}
	if _, err := cf.Search(context.Background(), "q", SearchFilters{}, Pagination{}); err == nil {
		t.Fatal("Search() with no API key expected MissingApiKey error")
	}
}

func TestDecodeModrinthVersions_SingleObject(t *testing.T) {
	payload := map[string]any{
		"id":            "v1",
		"project_id":    "p1",
		"name":          "1.0.0",
		"game_versions": []string{"1.20.1"},
		"loaders":       []string{"fabric"},
		"files": []map[string]any{
			{"filename": "mod.jar", "url": "https://example.com/mod.jar", "primary": true,
				"hashes": map[string]string{"sha1": "abc"}},
		},
	}
	data, _ := json.Marshal(payload)
	versions, err := decodeModrinthVersions(data)
	if err != nil {
		t.Fatalf("decodeModrinthVersions() error = %v", err)
	}
	if len(versions) != 1 || versions[0].Sha1 != "abc" {
		t.Fatalf("decodeModrinthVersions() = %+v", versions)
	}
}

func TestModrinth_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":           "abc",
			"slug":         "my-mod",
			"title":        "My Mod",
			"description":  "a mod",
			"project_type": "mod",
		})
	}))
	defer srv.Close()

	orig := modrinthAPIBase
	modrinthAPIBase = srv.URL
	defer func() { modrinthAPIBase = orig }()

	m := NewModrinth(fetch.New(fetch.DefaultConfig()))
	p, err := m.Get(context.Background(), "my-mod")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.Slug != "my-mod" || p.Class != ClassMod {
		t.Fatalf("Get() = %+v", p)
	}
}
