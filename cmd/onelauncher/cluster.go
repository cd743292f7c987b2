package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Polyfrost/onelauncher-core/internal/cluster"
	"github.com/Polyfrost/onelauncher-core/internal/metadata"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Create, inspect, and manage Minecraft clusters",
}

var (
	createMCVersion    string
	createLoader       string
	createLoaderVer    string
	createIcon         string
	editName           string
	editJavaOverride   string
	editMemoryMin      int
	editMemoryMax      int
)

var clusterCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create and install a new cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := metadata.Loader(createLoader)
		if loader == "" {
			loader = metadata.LoaderVanilla
		}
		c, err := app.ClusterEngine.CreateCluster(cmd.Context(), args[0], createMCVersion, loader, createLoaderVer, createIcon)
		if err != nil {
			return err
		}
		fmt.Printf("created cluster %s (%s)\n", c.ID, c.Name)
		return nil
	},
}

var (
	listStage  string
	listLoader string
)

var clusterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clusters, optionally filtered by stage and/or loader",
	RunE: func(cmd *cobra.Command, args []string) error {
		var filters []func(*cluster.Cluster) bool
		if listStage != "" {
			filters = append(filters, cluster.FilterByStage(cluster.Stage(listStage)))
		}
		if listLoader != "" {
			filters = append(filters, cluster.FilterByLoader(metadata.Loader(listLoader)))
		}
		clusters := app.ClusterEngine.List(filters...)
		if len(clusters) == 0 {
			fmt.Println("no clusters yet")
			return nil
		}
		t := newTable(table.Row{"ID", "Name", "MC Version", "Loader", "Stage"})
		for _, c := range clusters {
			t.AppendRow(table.Row{c.ID, c.Name, c.MCVersion, c.Loader, c.Stage})
		}
		t.Render()
		return nil
	},
}

var clusterGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one cluster's details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := app.ClusterEngine.GetByID(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("id:             %s\n", c.ID)
		fmt.Printf("name:           %s\n", c.Name)
		fmt.Printf("folder:         %s\n", c.FolderName)
		fmt.Printf("mc version:     %s\n", c.MCVersion)
		fmt.Printf("loader:         %s %s\n", c.Loader, c.LoaderVersion)
		fmt.Printf("stage:          %s\n", c.Stage)
		fmt.Printf("java override:  %s\n", c.JavaOverride)
		fmt.Printf("memory:         %d-%dMB\n", c.MemoryMinMB, c.MemoryMaxMB)
		fmt.Printf("overall played: %ds\n", c.OverallPlayed)
		return nil
	},
}

var clusterEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a cluster's settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.ClusterEngine.Edit(args[0], func(c *cluster.Cluster) error {
			if cmd.Flags().Changed("name") {
				c.Name = editName
			}
			if cmd.Flags().Changed("java") {
				c.JavaOverride = editJavaOverride
			}
			if cmd.Flags().Changed("memory-min") {
				c.MemoryMinMB = editMemoryMin
			}
			if cmd.Flags().Changed("memory-max") {
				c.MemoryMaxMB = editMemoryMax
			}
			return nil
		})
	},
}

var clusterRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a cluster and its directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.ClusterEngine.Remove(args[0])
	},
}

var clusterRepairCmd = &cobra.Command{
	Use:   "repair <id>",
	Short: "Re-run installation for a cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.ClusterEngine.Repair(cmd.Context(), args[0])
	},
}

func init() {
	clusterCreateCmd.Flags().StringVar(&createMCVersion, "mc-version", "", "Minecraft version (required)")
	clusterCreateCmd.Flags().StringVar(&createLoader, "loader", "Vanilla", "mod loader (Vanilla, Forge, NeoForge, Fabric, Quilt, LegacyFabric)")
	clusterCreateCmd.Flags().StringVar(&createLoaderVer, "loader-version", "", "explicit loader version; newest stable if omitted")
	clusterCreateCmd.Flags().StringVar(&createIcon, "icon", "", "path to an icon image")
	clusterCreateCmd.MarkFlagRequired("mc-version")

	clusterEditCmd.Flags().StringVar(&editName, "name", "", "rename the cluster")
	clusterEditCmd.Flags().StringVar(&editJavaOverride, "java", "", "explicit Java binary path")
	clusterEditCmd.Flags().IntVar(&editMemoryMin, "memory-min", 0, "minimum heap, in MB")
	clusterEditCmd.Flags().IntVar(&editMemoryMax, "memory-max", 0, "maximum heap, in MB")

	clusterListCmd.Flags().StringVar(&listStage, "stage", "", "only list clusters in this stage (not_installed, installing, installed)")
	clusterListCmd.Flags().StringVar(&listLoader, "loader", "", "only list clusters using this loader")

	clusterCmd.AddCommand(clusterCreateCmd)
	clusterCmd.AddCommand(clusterListCmd)
	clusterCmd.AddCommand(clusterGetCmd)
	clusterCmd.AddCommand(clusterEditCmd)
	clusterCmd.AddCommand(clusterRemoveCmd)
	clusterCmd.AddCommand(clusterRepairCmd)
}
