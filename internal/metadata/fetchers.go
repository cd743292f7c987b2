package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Polyfrost/onelauncher-core/internal/fetch"
)

const (
	mojangManifestURL  = "https://launchermeta.mojang.com/mc/game/version_manifest_v2.json"
	forgePromotionsURL = "https://files.minecraftforge.net/net/minecraftforge/forge/promotions_slim.json"
	neoforgeMavenURL   = "https://maven.neoforged.net/releases/net/neoforged/neoforge/maven-metadata.json"
	fabricLoaderURL    = "https://meta.fabricmc.net/v2/versions/loader"
	fabricGameURL      = "https://meta.fabricmc.net/v2/versions/game"
	quiltLoaderURL     = "https://meta.quiltmc.org/v3/versions/loader"
	quiltGameURL       = "https://meta.quiltmc.org/v3/versions/game"
)

// fetchVanilla retrieves the Mojang version manifest.
func fetchVanilla(ctx context.Context, c *fetch.Client) (*MinecraftVersionManifest, error) {
	data, err := c.Fetch(ctx, "GET", mojangManifestURL, nil, nil, "")
	if err != nil {
		return nil, err
	}
	var manifest MinecraftVersionManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode version manifest: %w", err)
	}
	return &manifest, nil
}

// fetchForge retrieves and decodes Forge's promotions_slim.json.
func fetchForge(ctx context.Context, c *fetch.Client) (*ModdedManifest, error) {
	data, err := c.Fetch(ctx, "GET", forgePromotionsURL, nil, nil, "")
	if err != nil {
		return nil, err
	}
	var promos struct {
		Promos map[string]string `json:"promos"`
	}
	if err := json.Unmarshal(data, &promos); err != nil {
		return nil, fmt.Errorf("decode forge promotions: %w", err)
	}

	pattern := regexp.MustCompile(`^(.+)-(recommended|latest)$`)
	byMC := make(map[string][]LoaderVersion)
	for key, version := range promos.Promos {
		matches := pattern.FindStringSubmatch(key)
		if len(matches) != 3 {
			continue
		}
		mcVersion, kind := matches[1], matches[2]
		byMC[mcVersion] = append(byMC[mcVersion], LoaderVersion{
			Version:          version,
			MinecraftVersion: mcVersion,
			Stable:           kind == "recommended",
			Loader:           LoaderForge,
		})
	}
	return &ModdedManifest{Loader: LoaderForge, ByMCVer: byMC}, nil
}

// fetchNeoForge derives mc-version compatibility from the NeoForge
// version string convention "<mc-minor>.<mc-patch>.<build>".
func fetchNeoForge(ctx context.Context, c *fetch.Client) (*ModdedManifest, error) {
	data, err := c.Fetch(ctx, "GET", neoforgeMavenURL, nil, nil, "")
	if err != nil {
		return nil, err
	}
	var meta struct {
		Versions []string `json:"versions"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode neoforge metadata: %w", err)
	}

	byMC := make(map[string][]LoaderVersion)
	for _, version := range meta.Versions {
		mcVersion := neoForgeMCVersion(version)
		if mcVersion == "" {
			continue
		}
		byMC[mcVersion] = append(byMC[mcVersion], LoaderVersion{
			Version:          version,
			MinecraftVersion: mcVersion,
			Stable:           !strings.Contains(version, "-beta"),
			Loader:           LoaderNeoForge,
		})
	}
	return &ModdedManifest{Loader: LoaderNeoForge, ByMCVer: byMC}, nil
}

func neoForgeMCVersion(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return ""
	}
	return "1." + parts[0] + "." + strings.TrimSuffix(parts[1], "-beta")
}

func fetchFabricLike(ctx context.Context, c *fetch.Client, loaderURL, gameURL string, loader Loader) (*ModdedManifest, error) {
	loaderData, err := c.Fetch(ctx, "GET", loaderURL, nil, nil, "")
	if err != nil {
		return nil, err
	}
	var loaders []struct {
		Version string `json:"version"`
		Stable  bool   `json:"stable"`
	}
	if err := json.Unmarshal(loaderData, &loaders); err != nil {
		return nil, fmt.Errorf("decode %s loader versions: %w", loader, err)
	}

	gameData, err := c.Fetch(ctx, "GET", gameURL, nil, nil, "")
	if err != nil {
		return nil, err
	}
	var games []struct {
		Version string `json:"version"`
		Stable  bool   `json:"stable"`
	}
	if err := json.Unmarshal(gameData, &games); err != nil {
		return nil, fmt.Errorf("decode %s game versions: %w", loader, err)
	}

	byMC := make(map[string][]LoaderVersion)
	for _, game := range games {
		var versions []LoaderVersion
		for _, lv := range loaders {
			versions = append(versions, LoaderVersion{
				Version:          lv.Version,
				MinecraftVersion: game.Version,
				Stable:           lv.Stable,
				Loader:           loader,
			})
		}
		byMC[game.Version] = versions
	}
	return &ModdedManifest{Loader: loader, ByMCVer: byMC}, nil
}

func fetchFabric(ctx context.Context, c *fetch.Client) (*ModdedManifest, error) {
	return fetchFabricLike(ctx, c, fabricLoaderURL, fabricGameURL, LoaderFabric)
}

func fetchQuilt(ctx context.Context, c *fetch.Client) (*ModdedManifest, error) {
	return fetchFabricLike(ctx, c, quiltLoaderURL, quiltGameURL, LoaderQuilt)
}

// fetchLegacyFabric mirrors fetchFabric against LegacyFabric's meta
// server, which follows the identical v2 schema.
func fetchLegacyFabric(ctx context.Context, c *fetch.Client) (*ModdedManifest, error) {
	m, err := fetchFabricLike(ctx, c,
		"https://meta.legacyfabric.net/v2/versions/loader",
		"https://meta.legacyfabric.net/v2/versions/game",
		LoaderLegacyFabric)
	return m, err
}
