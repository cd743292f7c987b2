package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Polyfrost/onelauncher-core/internal/bundle"
	"github.com/Polyfrost/onelauncher-core/internal/packages"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Check and apply modpack bundle updates for a cluster",
}

// loadManifests parses every bundle archive the caller named into the
// name-keyed map the reconciler's check/apply pass expects, per spec
// §4.H.
func loadManifests(ctx context.Context, archivePaths []string) (map[string]*bundle.Manifest, error) {
	manifests := make(map[string]*bundle.Manifest, len(archivePaths))
	for _, path := range archivePaths {
		m, err := bundle.Parse(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		manifests[m.Name] = m
	}
	return manifests, nil
}

// buildPlanInputs gathers the reconciler's diff inputs for clusterID:
// tracked links, every override recorded against one of the named
// bundles, and the currently installed package rows those links
// point at.
func buildPlanInputs(clusterID string, manifests map[string]*bundle.Manifest) ([]packages.Link, []packages.Override, []packages.Record, error) {
	tracked, err := app.PkgStore.ListLinked(clusterID)
	if err != nil {
		return nil, nil, nil, err
	}

	var overrides []packages.Override
	for bundleName := range manifests {
		bundleOverrides, err := app.PkgStore.ListOverrides(clusterID, bundleName)
		if err != nil {
			return nil, nil, nil, err
		}
		overrides = append(overrides, bundleOverrides...)
	}

	seen := make(map[string]bool)
	var installed []packages.Record
	for _, link := range tracked {
		if seen[link.Hash] {
			continue
		}
		seen[link.Hash] = true
		rec, err := app.PkgStore.GetByHash(link.Hash)
		if err != nil {
			continue
		}
		installed = append(installed, *rec)
	}

	return tracked, overrides, installed, nil
}

var bundleCheckCmd = &cobra.Command{
	Use:   "check <cluster-id> <bundle-archive...>",
	Short: "Show pending additions/updates/removals for a cluster's bundles",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		clusterID, archivePaths := args[0], args[1:]
		manifests, err := loadManifests(cmd.Context(), archivePaths)
		if err != nil {
			return err
		}
		tracked, overrides, installed, err := buildPlanInputs(clusterID, manifests)
		if err != nil {
			return err
		}

		plan := bundle.Check(manifests, tracked, overrides, installed, func(hash string) (*packages.Record, bool) {
			rec, err := app.PkgStore.GetByHash(hash)
			if err != nil {
				return nil, false
			}
			return rec, true
		})

		if plan.Empty() {
			fmt.Println("no updates pending")
			return nil
		}
		t := newTable(table.Row{"Action", "Bundle", "Key"})
		for _, a := range plan.Additions {
			t.AppendRow(table.Row{"add", a.BundleName, a.File.Key()})
		}
		for _, u := range plan.Updates {
			t.AppendRow(table.Row{"update", u.BundleName, u.Key})
		}
		for _, r := range plan.Removals {
			t.AppendRow(table.Row{"remove", r.BundleName, r.Key})
		}
		t.Render()
		return nil
	},
}

var bundleApplyCmd = &cobra.Command{
	Use:   "apply <cluster-id> <bundle-archive...>",
	Short: "Apply pending bundle updates to a cluster",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		clusterID, archivePaths := args[0], args[1:]
		c, err := app.ClusterEngine.GetByID(clusterID)
		if err != nil {
			return err
		}
		manifests, err := loadManifests(cmd.Context(), archivePaths)
		if err != nil {
			return err
		}
		tracked, overrides, installed, err := buildPlanInputs(clusterID, manifests)
		if err != nil {
			return err
		}

		plan := bundle.Check(manifests, tracked, overrides, installed, func(hash string) (*packages.Record, bool) {
			rec, err := app.PkgStore.GetByHash(hash)
			if err != nil {
				return nil, false
			}
			return rec, true
		})
		if plan.Empty() {
			fmt.Println("no updates pending")
			return nil
		}

		clusterDir := app.Dirs.ClusterDir(c.FolderName)
		result, err := app.BundleRec.Apply(cmd.Context(), clusterID, clusterDir, plan, manifests)
		if err != nil {
			return err
		}
		for _, failure := range result.Failures() {
			fmt.Printf("failed %s %s/%s: %v\n", failure.Kind, failure.BundleName, failure.Key, failure.Err)
		}
		fmt.Printf("applied %d action(s)\n", len(result.Results)-len(result.Failures()))
		return nil
	},
}

func init() {
	bundleCmd.AddCommand(bundleCheckCmd)
	bundleCmd.AddCommand(bundleApplyCmd)
}
