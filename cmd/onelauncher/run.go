package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Polyfrost/onelauncher-core/internal/installer"
	"github.com/Polyfrost/onelauncher-core/internal/logtail"
	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
	"github.com/Polyfrost/onelauncher-core/internal/process"
)

const (
	defaultMinMemoryMB = 512
	defaultMaxMemoryMB = 2048
)

var (
	quickPlaySingleplayer string
	quickPlayMultiplayer  string
)

var runCmd = &cobra.Command{
	Use:   "run <cluster-id>",
	Short: "Launch a cluster's game client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := app.ClusterEngine.GetByID(args[0])
		if err != nil {
			return err
		}

		detail, err := app.InstallEngine.LoadedVersionDetail(c)
		if err != nil {
			return onelauncher.Wrap(onelauncher.KindNotFound, err, "cluster is not installed; run repair first")
		}

		java, err := app.InstallEngine.JavaManager().Select(ctx, c.JavaOverride, detail.JavaVersionMajor)
		if err != nil {
			return err
		}

		cred, err := app.AuthStore.DefaultUser()
		if err != nil {
			return onelauncher.Wrap(onelauncher.KindAuthStep, err, "no default account; run `onelauncher auth begin` first")
		}
		if cred.Expired() {
			cred, err = app.AuthFlow.DefaultUserRefreshed(ctx)
			if err != nil {
				return err
			}
		}

		dirs := app.Dirs
		var classPath []string
		for _, lib := range installer.FilterLibraries(detail.Libraries) {
			if lib.Artifact != nil {
				classPath = append(classPath, dirs.LibraryPath(lib.Artifact.Path))
			}
		}
		classPath = append(classPath, dirs.VersionJar(detail.ID))

		minMem, maxMem := c.MemoryMinMB, c.MemoryMaxMB
		if minMem == 0 {
			minMem = defaultMinMemoryMB
		}
		if maxMem == 0 {
			maxMem = defaultMaxMemoryMB
		}

		gameAssets := ""
		if detail.Assets == "legacy" {
			gameAssets = dirs.AssetVirtualLegacy()
		}

		quickPlay := installer.QuickPlay{}
		switch {
		case quickPlaySingleplayer != "":
			quickPlay = installer.QuickPlay{Mode: installer.QuickPlaySingleplayer, Target: quickPlaySingleplayer}
		case quickPlayMultiplayer != "":
			quickPlay = installer.QuickPlay{Mode: installer.QuickPlayMultiplayer, Target: quickPlayMultiplayer}
		}

		params := installer.LaunchParams{
			Detail: detail,
			Credentials: installer.Credentials{
				AccessToken: cred.AccessToken,
				PlayerName:  cred.Username,
				UUID:        cred.SimpleUUID(),
			},
			Resolution:      installer.Resolution{Width: c.WindowWidth, Height: c.WindowHeight},
			MemoryMinMB:     minMem,
			MemoryMaxMB:     maxMem,
			CustomJVMArgs:   strings.Fields(c.ExtraJVMArgs),
			NativesDir:      dirs.Natives(detail.ID),
			LibraryDir:      dirs.Libraries(),
			ClassPath:       classPath,
			LauncherName:    "OneLauncher",
			LauncherVersion: version,
			GameDirectory:   dirs.ClusterDir(c.FolderName),
			AssetsRoot:      dirs.Assets(),
			GameAssets:      gameAssets,
			ClientID:        app.Config.Auth.ClientID,
			QuickPlay:       quickPlay,
		}

		gameArgs := installer.ComposeGameArgs(params)
		jvmArgs := installer.ComposeJVMArgs(params)

		cmdArgs := append([]string{}, jvmArgs...)
		cmdArgs = append(cmdArgs, detail.MainClass)
		cmdArgs = append(cmdArgs, gameArgs...)

		spec := process.LaunchSpec{
			Cluster:    c,
			JavaPath:   java.Path,
			Args:       cmdArgs,
			WorkingDir: dirs.ClusterDir(c.FolderName),
			Credential: logtail.Credential{
				AccessToken: cred.AccessToken,
				Username:    cred.Username,
				UUID:        cred.UUID,
			},
		}

		rec, err := app.Supervisor.Launch(ctx, spec)
		if err != nil {
			return err
		}
		fmt.Printf("launched %s pid=%d uuid=%s\n", c.Name, rec.PID, rec.UUID)
		return nil
	},
}

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List running game processes",
	RunE: func(cmd *cobra.Command, args []string) error {
		running := app.Supervisor.Running()
		if len(running) == 0 {
			fmt.Println("no running processes")
			return nil
		}
		t := newTable(table.Row{"UUID", "PID", "Cluster", "Started"})
		for _, r := range running {
			t.AppendRow(table.Row{r.UUID, r.PID, r.ClusterID, r.StartTime.Format("2006-01-02 15:04:05")})
		}
		t.Render()
		return nil
	},
}

var killCmd = &cobra.Command{
	Use:   "kill <process-uuid>",
	Short: "Terminate a running game process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Supervisor.Kill(args[0])
	},
}

func init() {
	runCmd.Flags().StringVar(&quickPlaySingleplayer, "quick-play-singleplayer", "", "skip the title screen and load straight into this singleplayer world")
	runCmd.Flags().StringVar(&quickPlayMultiplayer, "quick-play-multiplayer", "", "skip the title screen and connect straight to this server (host:port)")
}
