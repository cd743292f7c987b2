package installer

import (
	"context"
	"encoding/json"
	"os"

	"github.com/Polyfrost/onelauncher-core/internal/fetch"
	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
	"github.com/Polyfrost/onelauncher-core/internal/storage"
)

// mojangVersionDoc is the shape of a vanilla version JSON document
// (the file a version manifest entry's URL points at).
type mojangVersionDoc struct {
	ID         string `json:"id"`
	MainClass  string `json:"mainClass"`
	Assets     string `json:"assets"`
	AssetIndex AssetIndexRef `json:"assetIndex"`
	JavaVersion struct {
		MajorVersion int `json:"majorVersion"`
	} `json:"javaVersion"`
	Downloads struct {
		Client Artifact `json:"client"`
	} `json:"downloads"`
	Libraries []struct {
		Name  string `json:"name"`
		Rules []Rule `json:"rules,omitempty"`
		Downloads struct {
			Artifact    *Artifact            `json:"artifact,omitempty"`
			Classifiers map[string]Artifact `json:"classifiers,omitempty"`
		} `json:"downloads"`
		Natives map[string]string `json:"natives,omitempty"`
	} `json:"libraries"`
	MinecraftArguments string `json:"minecraftArguments,omitempty"`
	Arguments          *struct {
		Game []json.RawMessage `json:"game"`
		JVM  []json.RawMessage `json:"jvm"`
	} `json:"arguments,omitempty"`
}

// FetchVersionDetail downloads and parses a vanilla version document,
// per spec §4.G step 1.
func FetchVersionDetail(ctx context.Context, client *fetch.Client, url, expectedSha1 string) (*VersionDetail, error) {
	data, err := client.Fetch(ctx, "GET", url, nil, nil, expectedSha1)
	if err != nil {
		return nil, err
	}
	var doc mojangVersionDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindSerde, err, "decode version document")
	}

	detail := &VersionDetail{
		ID:               doc.ID,
		MainClass:        doc.MainClass,
		Assets:           doc.Assets,
		AssetIndex:       doc.AssetIndex,
		JavaVersionMajor: doc.JavaVersion.MajorVersion,
		ClientJar:        doc.Downloads.Client,
		LegacyGameArgs:   doc.MinecraftArguments,
	}
	if detail.JavaVersionMajor == 0 {
		detail.JavaVersionMajor = 8
	}

	for _, l := range doc.Libraries {
		lib := Library{
			Name:        l.Name,
			Rules:       l.Rules,
			Artifact:    l.Downloads.Artifact,
			Natives:     l.Natives,
			Classifiers: l.Downloads.Classifiers,
		}
		detail.Libraries = append(detail.Libraries, lib)
	}

	if doc.Arguments != nil {
		detail.GameArguments = parseArgumentEntries(doc.Arguments.Game)
		detail.JVMArguments = parseArgumentEntries(doc.Arguments.JVM)
	}
	return detail, nil
}

// SaveVersionDetail writes the resolved (vanilla-merged-with-loader)
// version detail to versions/<id>/<id>.json, the authoritative
// on-disk cache spec §6's directory layout names; LoadVersionDetail
// reads it back so launch doesn't re-resolve the loader chain on
// every run_cluster call.
func SaveVersionDetail(dirs *storage.Directories, detail *VersionDetail) error {
	data, err := json.MarshalIndent(detail, "", "  ")
	if err != nil {
		return onelauncher.Wrap(onelauncher.KindSerde, err, "marshal version detail")
	}
	path := dirs.VersionJSON(detail.ID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return onelauncher.Wrap(onelauncher.KindIO, err, path)
	}
	return nil
}

// LoadVersionDetail reads back a version detail cached by
// SaveVersionDetail.
func LoadVersionDetail(dirs *storage.Directories, id string) (*VersionDetail, error) {
	path := dirs.VersionJSON(id)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindIO, err, path)
	}
	var detail VersionDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindSerde, err, path)
	}
	return &detail, nil
}

// parseArgumentEntries decodes the vanilla launcher's mixed
// string/rule-gated-object argument list.
func parseArgumentEntries(raw []json.RawMessage) []ArgumentEntry {
	entries := make([]ArgumentEntry, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			entries = append(entries, ArgumentEntry{Values: []string{s}})
			continue
		}
		var obj struct {
			Rules []Rule          `json:"rules"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(r, &obj); err != nil {
			continue
		}
		var single string
		if err := json.Unmarshal(obj.Value, &single); err == nil {
			entries = append(entries, ArgumentEntry{Rules: obj.Rules, Values: []string{single}})
			continue
		}
		var many []string
		if err := json.Unmarshal(obj.Value, &many); err == nil {
			entries = append(entries, ArgumentEntry{Rules: obj.Rules, Values: many})
		}
	}
	return entries
}
