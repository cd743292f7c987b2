package installer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/Polyfrost/onelauncher-core/internal/fetch"
	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
	"github.com/Polyfrost/onelauncher-core/internal/storage"
)

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return onelauncher.Wrap(onelauncher.KindIO, err, path)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return onelauncher.Wrap(onelauncher.KindIO, err, path)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return onelauncher.Wrap(onelauncher.KindIO, err, tmpPath)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return onelauncher.Wrap(onelauncher.KindIO, err, tmpPath)
	}
	return os.Rename(tmpPath, path)
}

type assetIndexDoc struct {
	Objects map[string]struct {
		Hash string `json:"hash"`
		Size int64  `json:"size"`
	} `json:"objects"`
}

// InstallAssets downloads the asset index and every referenced
// object, placing legacy-layout assets under virtual/legacy and
// modern-layout assets under objects/<ab>/<hash>, per spec §4.G
// step 4.
func InstallAssets(ctx context.Context, client *fetch.Client, dirs *storage.Directories, detail *VersionDetail, report func(delta float64)) error {
	indexPath := dirs.AssetIndexFile(detail.AssetIndex.ID)
	data, err := client.Fetch(ctx, "GET", detail.AssetIndex.URL, nil, nil, detail.AssetIndex.Sha1)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(indexPath, data); err != nil {
		return err
	}

	var index assetIndexDoc
	if err := json.Unmarshal(data, &index); err != nil {
		return onelauncher.Wrap(onelauncher.KindSerde, err, "decode asset index")
	}

	isLegacy := detail.Assets == "legacy" || detail.Assets == "pre-1.6"
	total := len(index.Objects)
	if total == 0 {
		return nil
	}
	share := 1.0 / float64(total)

	for name, obj := range index.Objects {
		objURL := "https://resources.download.minecraft.net/" + obj.Hash[:2] + "/" + obj.Hash
		var dest string
		if isLegacy {
			dest = filepath.Join(dirs.AssetVirtualLegacy(), filepath.FromSlash(name))
		} else {
			dest = dirs.AssetObjectPath(obj.Hash)
		}
		if _, err := client.Download(ctx, objURL, dest, obj.Hash, nil); err != nil {
			return err
		}
		if report != nil {
			report(share)
		}
	}
	return nil
}
