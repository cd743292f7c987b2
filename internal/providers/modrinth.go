package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Polyfrost/onelauncher-core/internal/fetch"
	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
)

// modrinthAPIBase is a var, not a const, so tests can redirect it at
// an httptest server.
var modrinthAPIBase = "https://api.modrinth.com/v2"

// Modrinth implements the Adapter surface of spec §4.E against the
// Modrinth v2 API.
type Modrinth struct {
	client *fetch.Client
}

func NewModrinth(client *fetch.Client) *Modrinth {
	return &Modrinth{client: client}
}

func (m *Modrinth) Name() string { return "modrinth" }

func (m *Modrinth) Search(ctx context.Context, query string, filters SearchFilters, page Pagination) (SearchResult, error) {
	facets := [][]string{{"project_type:" + string(projectTypeFor(filters.Class))}}
	if filters.MCVersion != "" {
		facets = append(facets, []string{"versions:" + filters.MCVersion})
	}
	if filters.Loader != "" {
		facets = append(facets, []string{"categories:" + filters.Loader})
	}
	facetsJSON, _ := json.Marshal(facets)

	q := url.Values{}
	q.Set("query", query)
	q.Set("facets", string(facetsJSON))
	if page.Limit > 0 {
		q.Set("limit", strconv.Itoa(page.Limit))
	}
	if page.Offset > 0 {
		q.Set("offset", strconv.Itoa(page.Offset))
	}

	data, err := m.client.Fetch(ctx, "GET", modrinthAPIBase+"/search?"+q.Encode(), nil, nil, "")
	if err != nil {
		return SearchResult{}, err
	}

	var resp struct {
		Hits []struct {
			ProjectID   string `json:"project_id"`
			Slug        string `json:"slug"`
			Title       string `json:"title"`
			Description string `json:"description"`
			ProjectType string `json:"project_type"`
			IconURL     string `json:"icon_url"`
		} `json:"hits"`
		TotalHits int `json:"total_hits"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return SearchResult{}, onelauncher.Wrap(onelauncher.KindSerde, err, "decode modrinth search response")
	}

	result := SearchResult{Total: resp.TotalHits}
	for _, h := range resp.Hits {
		result.Projects = append(result.Projects, Project{
			ProviderID:  h.ProjectID,
			Slug:        h.Slug,
			Title:       h.Title,
			Description: h.Description,
			Class:       classFor(h.ProjectType),
			IconURL:     h.IconURL,
		})
	}
	return result, nil
}

func (m *Modrinth) Get(ctx context.Context, slugOrID string) (Project, error) {
	data, err := m.client.Fetch(ctx, "GET", fmt.Sprintf("%s/project/%s", modrinthAPIBase, url.PathEscape(slugOrID)), nil, nil, "")
	if err != nil {
		return Project{}, err
	}
	var p struct {
		ID          string `json:"id"`
		Slug        string `json:"slug"`
		Title       string `json:"title"`
		Description string `json:"description"`
		ProjectType string `json:"project_type"`
		IconURL     string `json:"icon_url"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return Project{}, onelauncher.Wrap(onelauncher.KindSerde, err, "decode modrinth project")
	}
	return Project{
		ProviderID:  p.ID,
		Slug:        p.Slug,
		Title:       p.Title,
		Description: p.Description,
		Class:       classFor(p.ProjectType),
		IconURL:     p.IconURL,
	}, nil
}

func (m *Modrinth) GetMany(ctx context.Context, slugsOrIDs []string) ([]Project, error) {
	projects := make([]Project, 0, len(slugsOrIDs))
	for _, id := range slugsOrIDs {
		p, err := m.Get(ctx, id)
		if err != nil {
			continue
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func (m *Modrinth) GetVersions(ctx context.Context, projectID string, mcVersion, loader string, page Pagination) ([]Version, error) {
	q := url.Values{}
	if mcVersion != "" {
		gv, _ := json.Marshal([]string{mcVersion})
		q.Set("game_versions", string(gv))
	}
	if loader != "" {
		ld, _ := json.Marshal([]string{loader})
		q.Set("loaders", string(ld))
	}

	requestURL := fmt.Sprintf("%s/project/%s/version", modrinthAPIBase, url.PathEscape(projectID))
	if encoded := q.Encode(); encoded != "" {
		requestURL += "?" + encoded
	}

	data, err := m.client.Fetch(ctx, "GET", requestURL, nil, nil, "")
	if err != nil {
		return nil, err
	}
	return decodeModrinthVersions(data)
}

func (m *Modrinth) GetVersionByHash(ctx context.Context, sha1 string) (Version, error) {
	data, err := m.client.Fetch(ctx, "GET", fmt.Sprintf("%s/version_file/%s?algorithm=sha1", modrinthAPIBase, sha1), nil, nil, "")
	if err != nil {
		return Version{}, err
	}
	versions, err := decodeModrinthVersions(data)
	if err != nil {
		return Version{}, err
	}
	if len(versions) == 0 {
		return Version{}, onelauncher.NotFound("modrinth version", sha1)
	}
	return versions[0], nil
}

func (m *Modrinth) GetVersionsByHashes(ctx context.Context, sha1s []string) (map[string]Version, error) {
	body, _ := json.Marshal(map[string]any{"hashes": sha1s, "algorithm": "sha1"})
	data, err := m.client.Fetch(ctx, "POST", modrinthAPIBase+"/version_files", map[string]string{"Content-Type": "application/json"}, body, "")
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindSerde, err, "decode modrinth version_files response")
	}

	result := make(map[string]Version, len(raw))
	for hash, entry := range raw {
		versions, err := decodeModrinthVersions(entry)
		if err != nil || len(versions) == 0 {
			continue
		}
		result[hash] = versions[0]
	}
	return result, nil
}

func decodeModrinthVersions(data []byte) ([]Version, error) {
	// Some endpoints return a single object, others an array; normalise
	// to a slice before decoding each entry.
	trimmed := strings.TrimSpace(string(data))
	var rawList []json.RawMessage
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &rawList); err != nil {
			return nil, onelauncher.Wrap(onelauncher.KindSerde, err, "decode modrinth versions")
		}
	} else {
		rawList = []json.RawMessage{data}
	}

	versions := make([]Version, 0, len(rawList))
	for _, raw := range rawList {
		var v struct {
			ID            string   `json:"id"`
			ProjectID     string   `json:"project_id"`
			Name          string   `json:"name"`
			GameVersions  []string `json:"game_versions"`
			Loaders       []string `json:"loaders"`
			Featured      bool     `json:"featured"`
			Dependencies  []struct {
				ProjectID string `json:"project_id"`
			} `json:"dependencies"`
			Files []struct {
				Filename string            `json:"filename"`
				URL      string            `json:"url"`
				Primary  bool              `json:"primary"`
				Hashes   map[string]string `json:"hashes"`
			} `json:"files"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, onelauncher.Wrap(onelauncher.KindSerde, err, "decode modrinth version")
		}

		out := Version{
			ID:           v.ID,
			ProjectID:    v.ProjectID,
			Name:         v.Name,
			MCVersions:   v.GameVersions,
			Loaders:      v.Loaders,
			Side:         SideBoth,
			Featured:     v.Featured,
		}
		for _, d := range v.Dependencies {
			if d.ProjectID != "" {
				out.Dependencies = append(out.Dependencies, d.ProjectID)
			}
		}
		for _, f := range v.Files {
			if f.Primary || out.Filename == "" {
				out.Filename = f.Filename
				out.DownloadURL = f.URL
				out.Sha1 = f.Hashes["sha1"]
			}
		}
		versions = append(versions, out)
	}
	return versions, nil
}

func projectTypeFor(c Class) string {
	switch c {
	case ClassModpack:
		return "modpack"
	case ClassResourcePack:
		return "resourcepack"
	case ClassShader:
		return "shader"
	case ClassDataPack:
		return "datapack"
	default:
		return "mod"
	}
}

func classFor(projectType string) Class {
	switch projectType {
	case "modpack":
		return ClassModpack
	case "resourcepack":
		return ClassResourcePack
	case "shader":
		return ClassShader
	case "datapack":
		return ClassDataPack
	default:
		return ClassMod
	}
}
