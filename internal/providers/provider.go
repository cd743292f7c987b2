// Package providers is the provider-adapter layer of spec §4.E:
// uniform search/get/get_versions/get_version_by_hash access across
// Modrinth and CurseForge, translating each provider's wire types into
// the core's canonical enums so no HTTP type leaks past this package.
// Rate-limit-respecting retry is delegated to internal/fetch.
package providers

import (
	"context"
)

// Class mirrors the core's canonical package classification, onto
// which every provider-specific project type is translated.
type Class string

const (
	ClassMod        Class = "mod"
	ClassModpack    Class = "modpack"
	ClassResourcePack Class = "resource_pack"
	ClassShader     Class = "shader"
	ClassDataPack   Class = "data_pack"
)

// Side mirrors the core's canonical client/server/both flag.
type Side string

const (
	SideClient Side = "client"
	SideServer Side = "server"
	SideBoth   Side = "both"
)

// Project is a provider-neutral project summary.
type Project struct {
	ProviderID  string
	Slug        string
	Title       string
	Description string
	Class       Class
	IconURL     string
}

// Version is a provider-neutral project version carrying one file: for
// Modrinth the version's primary file (or its first file when none is
// marked primary), for CurseForge the file itself.
type Version struct {
	ID               string
	ProjectID        string
	Name             string
	MCVersions       []string
	Loaders          []string
	Side             Side
	Filename         string
	DownloadURL      string
	Sha1             string
	Dependencies     []string
	Featured         bool
}

// Pagination bounds a search or version listing.
type Pagination struct {
	Offset int
	Limit  int
}

// SearchFilters narrows a search call; empty fields are unconstrained.
type SearchFilters struct {
	MCVersion string
	Loader    string
	Class     Class
}

// SearchResult is one page of a search call.
type SearchResult struct {
	Projects []Project
	Total    int
}

// Adapter is the uniform interface every provider implements, per
// spec §4.E.
type Adapter interface {
	Name() string
	Search(ctx context.Context, query string, filters SearchFilters, page Pagination) (SearchResult, error)
	Get(ctx context.Context, slugOrID string) (Project, error)
	GetMany(ctx context.Context, slugsOrIDs []string) ([]Project, error)
	GetVersions(ctx context.Context, projectID string, mcVersion, loader string, page Pagination) ([]Version, error)
	GetVersionByHash(ctx context.Context, sha1 string) (Version, error)
	GetVersionsByHashes(ctx context.Context, sha1s []string) (map[string]Version, error)
}
