package main

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Polyfrost/onelauncher-core/internal/logtail"
	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "List and read a cluster's game logs",
}

func clusterLogDir(clusterID string) (string, error) {
	c, err := app.ClusterEngine.GetByID(clusterID)
	if err != nil {
		return "", err
	}
	return app.Dirs.ClusterLogs(c.FolderName), nil
}

var logsListCmd = &cobra.Command{
	Use:   "list <cluster-id>",
	Short: "List a cluster's log files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := clusterLogDir(args[0])
		if err != nil {
			return err
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Println("no logs yet")
				return nil
			}
			return onelauncher.Wrap(onelauncher.KindIO, err, dir)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

var logsReadCmd = &cobra.Command{
	Use:   "read <cluster-id> <log-name>",
	Short: "Print a full log file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := clusterLogDir(args[0])
		if err != nil {
			return err
		}
		result, err := logtail.Tail(filepath.Join(dir, args[1]), 0)
		if err != nil {
			return err
		}
		var creds []logtail.Credential
		for _, c := range app.AuthStore.List() {
			creds = append(creds, logtail.Credential{AccessToken: c.AccessToken, Username: c.Username, UUID: c.UUID})
		}
		osUsername, osRealName := "", ""
		if u, err := user.Current(); err == nil {
			osUsername, osRealName = u.Username, u.Name
		}
		fmt.Print(logtail.Censor(result.Content, creds, osUsername, osRealName))
		return nil
	},
}

var logsTailCmd = &cobra.Command{
	Use:   "tail <cluster-id> <log-name> [max-lines]",
	Short: "Print the last N lines of a log file, censored of account secrets",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := clusterLogDir(args[0])
		if err != nil {
			return err
		}
		maxLines := 200
		if len(args) == 3 {
			n, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("max-lines must be an integer: %w", err)
			}
			maxLines = n
		}
		result, err := logtail.Tail(filepath.Join(dir, args[1]), maxLines)
		if err != nil {
			return err
		}

		var creds []logtail.Credential
		for _, c := range app.AuthStore.List() {
			creds = append(creds, logtail.Credential{AccessToken: c.AccessToken, Username: c.Username, UUID: c.UUID})
		}
		osUsername, osRealName := "", ""
		if u, err := user.Current(); err == nil {
			osUsername, osRealName = u.Username, u.Name
		}
		fmt.Print(logtail.Censor(result.Content, creds, osUsername, osRealName))
		if result.Truncated {
			fmt.Fprintln(os.Stderr, "(truncated)")
		}
		return nil
	},
}

func init() {
	logsCmd.AddCommand(logsListCmd)
	logsCmd.AddCommand(logsReadCmd)
	logsCmd.AddCommand(logsTailCmd)
}
