package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Polyfrost/onelauncher-core/internal/fetch"
	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
)

var curseForgeAPIBase = "https://api.curseforge.com/v1"

// CurseForge implements Adapter against the CurseForge API, which
// requires a configurable API key; without one every call returns
// MissingApiKey and the bundle reconciler proceeds with the remaining
// providers, per spec §4.E.
type CurseForge struct {
	client *fetch.Client
	apiKey string
}

func NewCurseForge(client *fetch.Client, apiKey string) *CurseForge {
	return &CurseForge{client: client, apiKey: apiKey}
}

func (c *CurseForge) Name() string { return "curseforge" }

func (c *CurseForge) headers() map[string]string {
	return map[string]string{"x-api-key": c.apiKey, "Accept": "application/json"}
}

func (c *CurseForge) requireKey() error {
	if c.apiKey == "" {
		return onelauncher.MissingAPIKey("curseforge")
	}
	return nil
}

func (c *CurseForge) Search(ctx context.Context, query string, filters SearchFilters, page Pagination) (SearchResult, error) {
	if err := c.requireKey(); err != nil {
		return SearchResult{}, err
	}
	q := url.Values{}
	q.Set("gameId", "432")
	q.Set("searchFilter", query)
	q.Set("classId", curseForgeClassID(filters.Class))
	if filters.MCVersion != "" {
		q.Set("gameVersion", filters.MCVersion)
	}
	if page.Limit > 0 {
		q.Set("pageSize", strconv.Itoa(page.Limit))
	}
	if page.Offset > 0 {
		q.Set("index", strconv.Itoa(page.Offset))
	}

	data, err := c.client.Fetch(ctx, "GET", curseForgeAPIBase+"/mods/search?"+q.Encode(), c.headers(), nil, "")
	if err != nil {
		return SearchResult{}, err
	}
	var resp struct {
		Data []curseForgeMod `json:"data"`
		Pagination struct {
			TotalCount int `json:"totalCount"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return SearchResult{}, onelauncher.Wrap(onelauncher.KindSerde, err, "decode curseforge search response")
	}
	result := SearchResult{Total: resp.Pagination.TotalCount}
	for _, m := range resp.Data {
		result.Projects = append(result.Projects, m.toProject())
	}
	return result, nil
}

type curseForgeMod struct {
	ID      int    `json:"id"`
	Slug    string `json:"slug"`
	Name    string `json:"name"`
	Summary string `json:"summary"`
	ClassID int    `json:"classId"`
	Logo    struct {
		URL string `json:"url"`
	} `json:"logo"`
}

func (m curseForgeMod) toProject() Project {
	return Project{
		ProviderID:  strconv.Itoa(m.ID),
		Slug:        m.Slug,
		Title:       m.Name,
		Description: m.Summary,
		Class:       curseForgeClassOf(m.ClassID),
		IconURL:     m.Logo.URL,
	}
}

func (c *CurseForge) Get(ctx context.Context, slugOrID string) (Project, error) {
	if err := c.requireKey(); err != nil {
		return Project{}, err
	}
	data, err := c.client.Fetch(ctx, "GET", fmt.Sprintf("%s/mods/%s", curseForgeAPIBase, slugOrID), c.headers(), nil, "")
	if err != nil {
		return Project{}, err
	}
	var resp struct {
		Data curseForgeMod `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return Project{}, onelauncher.Wrap(onelauncher.KindSerde, err, "decode curseforge mod")
	}
	return resp.Data.toProject(), nil
}

func (c *CurseForge) GetMany(ctx context.Context, slugsOrIDs []string) ([]Project, error) {
	if err := c.requireKey(); err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(slugsOrIDs))
	for _, s := range slugsOrIDs {
		if n, err := strconv.Atoi(s); err == nil {
			ids = append(ids, n)
		}
	}
	body, _ := json.Marshal(map[string]any{"modIds": ids})
	data, err := c.client.Fetch(ctx, "POST", curseForgeAPIBase+"/mods", c.headers(), body, "")
	if err != nil {
		return nil, err
	}
	var resp struct {
		Data []curseForgeMod `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindSerde, err, "decode curseforge mods response")
	}
	projects := make([]Project, 0, len(resp.Data))
	for _, m := range resp.Data {
		projects = append(projects, m.toProject())
	}
	return projects, nil
}

func (c *CurseForge) GetVersions(ctx context.Context, projectID string, mcVersion, loader string, page Pagination) ([]Version, error) {
	if err := c.requireKey(); err != nil {
		return nil, err
	}
	q := url.Values{}
	if mcVersion != "" {
		q.Set("gameVersion", mcVersion)
	}
	if loader != "" {
		q.Set("modLoaderType", strconv.Itoa(curseForgeLoaderID(loader)))
	}
	if page.Limit > 0 {
		q.Set("pageSize", strconv.Itoa(page.Limit))
	}
	if page.Offset > 0 {
		q.Set("index", strconv.Itoa(page.Offset))
	}

	requestURL := fmt.Sprintf("%s/mods/%s/files", curseForgeAPIBase, projectID)
	if encoded := q.Encode(); encoded != "" {
		requestURL += "?" + encoded
	}
	data, err := c.client.Fetch(ctx, "GET", requestURL, c.headers(), nil, "")
	if err != nil {
		return nil, err
	}
	var resp struct {
		Data []curseForgeFile `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindSerde, err, "decode curseforge files response")
	}
	versions := make([]Version, 0, len(resp.Data))
	for _, f := range resp.Data {
		versions = append(versions, f.toVersion())
	}
	return versions, nil
}

type curseForgeFile struct {
	ID           int      `json:"id"`
	ModID        int      `json:"modId"`
	DisplayName  string   `json:"displayName"`
	FileName     string   `json:"fileName"`
	DownloadURL  string   `json:"downloadUrl"`
	GameVersions []string `json:"gameVersions"`
	Hashes       []struct {
		Value     string `json:"value"`
		Algorithm int    `json:"algo"`
	} `json:"hashes"`
}

func (f curseForgeFile) toVersion() Version {
	v := Version{
		ID:          strconv.Itoa(f.ID),
		ProjectID:   strconv.Itoa(f.ModID),
		Name:        f.DisplayName,
		Filename:    f.FileName,
		DownloadURL: f.DownloadURL,
		Side:        SideBoth,
	}
	for _, gv := range f.GameVersions {
		if isLoaderToken(gv) {
			v.Loaders = append(v.Loaders, gv)
		} else {
			v.MCVersions = append(v.MCVersions, gv)
		}
	}
	for _, h := range f.Hashes {
		if h.Algorithm == 1 { // CurseForge algo 1 == sha1
			v.Sha1 = h.Value
		}
	}
	return v
}

func (c *CurseForge) GetVersionByHash(ctx context.Context, sha1 string) (Version, error) {
	versions, err := c.GetVersionsByHashes(ctx, []string{sha1})
	if err != nil {
		return Version{}, err
	}
	v, ok := versions[sha1]
	if !ok {
		return Version{}, onelauncher.NotFound("curseforge version", sha1)
	}
	return v, nil
}

func (c *CurseForge) GetVersionsByHashes(ctx context.Context, sha1s []string) (map[string]Version, error) {
	if err := c.requireKey(); err != nil {
		return nil, err
	}
	body, _ := json.Marshal(map[string]any{"fingerprints": sha1s})
	data, err := c.client.Fetch(ctx, "POST", curseForgeAPIBase+"/fingerprints", c.headers(), body, "")
	if err != nil {
		return nil, err
	}
	var resp struct {
		Data struct {
			ExactMatches []struct {
				File curseForgeFile `json:"file"`
			} `json:"exactMatches"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindSerde, err, "decode curseforge fingerprints response")
	}
	result := make(map[string]Version, len(resp.Data.ExactMatches))
	for _, m := range resp.Data.ExactMatches {
		v := m.File.toVersion()
		if v.Sha1 != "" {
			result[v.Sha1] = v
		}
	}
	return result, nil
}

func curseForgeClassID(c Class) string {
	switch c {
	case ClassModpack:
		return "4471"
	case ClassResourcePack:
		return "12"
	case ClassShader:
		return "6552"
	case ClassDataPack:
		return "6945"
	default:
		return "6"
	}
}

func curseForgeClassOf(id int) Class {
	switch id {
	case 4471:
		return ClassModpack
	case 12:
		return ClassResourcePack
	case 6552:
		return ClassShader
	case 6945:
		return ClassDataPack
	default:
		return ClassMod
	}
}

func curseForgeLoaderID(loader string) int {
	switch loader {
	case "forge":
		return 1
	case "fabric":
		return 4
	case "quilt":
		return 5
	case "neoforge":
		return 6
	default:
		return 0
	}
}

func isLoaderToken(s string) bool {
	switch s {
	case "Forge", "Fabric", "Quilt", "NeoForge":
		return true
	default:
		return false
	}
}
