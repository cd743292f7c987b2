package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var app *App

var rootCmd = &cobra.Command{
	Use:   "onelauncher",
	Short: "OneLauncher core CLI",
	Long: `onelauncher drives the launcher core directly from the command line:
create and launch Minecraft clusters, reconcile modpack bundles, manage
Microsoft accounts, and inspect running game processes.`,
	Version:          version,
	SilenceUsage:     true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := NewApp()
		if err != nil {
			return fmt.Errorf("initialize launcher core: %w", err)
		}
		a.Supervisor.Rescue()
		app = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			app.Close()
		}
	},
}

func init() {
	rootCmd.SetVersionTemplate(`{{printf "onelauncher %s\n" .Version}}`)
	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(psCmd)
	rootCmd.AddCommand(killCmd)
	rootCmd.AddCommand(bundleCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(authCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
