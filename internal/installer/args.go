package installer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
)

func classpathSeparator() string {
	if runtime.GOOS == "windows" {
		return ";"
	}
	return ":"
}

// Credentials is the subset of an MSA credential launch arguments
// need; kept independent of internal/auth to avoid a package cycle.
type Credentials struct {
	AccessToken string
	PlayerName  string
	UUID        string // simple hex, no hyphens
	XUID        string // "" when unknown
}

// Resolution is the client window size, or zero-valued when the
// launcher should let the game pick its own default.
type Resolution struct {
	Width, Height int
}

// LaunchParams bundles everything argument composition needs, per
// spec §4.G's launch(cluster, credentials, resolution, memory, env).
type LaunchParams struct {
	Detail        *VersionDetail
	Credentials   Credentials
	Resolution    Resolution
	MemoryMinMB   int
	MemoryMaxMB   int
	CustomJVMArgs []string
	NativesDir    string
	LibraryDir    string
	ClassPath     []string
	LauncherName  string
	LauncherVersion string
	GameDirectory string
	AssetsRoot    string
	GameAssets    string // legacy virtual layout path; "" for modern
	ClientID      string
	QuickPlay     QuickPlay
}

// QuickPlayMode selects which quick-play argument, if any, is appended
// to the composed game arguments.
type QuickPlayMode int

const (
	QuickPlayNone QuickPlayMode = iota
	QuickPlaySingleplayer
	QuickPlayMultiplayer
)

// QuickPlay is an optional direct-join target passed straight to the
// game process: a singleplayer world name or a "host:port" server
// address, skipping the title screen.
type QuickPlay struct {
	Mode   QuickPlayMode
	Target string // world name for Singleplayer, "host:port" for Multiplayer
}

// ComposeJVMArgs substitutes the JVM-argument tokens of spec §4.G and
// appends memory flags and custom args.
func ComposeJVMArgs(p LaunchParams) []string {
	substitutions := map[string]string{
		"${natives_directory}":    p.NativesDir,
		"${library_directory}":    p.LibraryDir,
		"${classpath_separator}":  classpathSeparator(),
		"${launcher_name}":        p.LauncherName,
		"${launcher_version}":     p.LauncherVersion,
		"${version_name}":         p.Detail.ID,
		"${classpath}":            strings.Join(p.ClassPath, classpathSeparator()),
	}

	var out []string
	for _, entry := range p.Detail.JVMArguments {
		if !EvaluateRules(entry.Rules) {
			continue
		}
		for _, v := range entry.Values {
			out = append(out, substituteAll(v, substitutions))
		}
	}
	out = append(out,
		fmt.Sprintf("-Xmx%dM", p.MemoryMaxMB),
		fmt.Sprintf("-Xms%dM", p.MemoryMinMB),
	)
	out = append(out, p.CustomJVMArgs...)
	return out
}

// ComposeGameArgs substitutes the game-argument tokens of spec §4.G.
// Pre-1.13 versions carry a flat LegacyGameArgs string, split on
// spaces after substitution.
func ComposeGameArgs(p LaunchParams) []string {
	xuid := p.Credentials.XUID
	if xuid == "" {
		xuid = "0"
	}
	assetsRoot := p.AssetsRoot
	gameAssets := p.GameAssets
	if gameAssets == "" {
		gameAssets = assetsRoot
	}

	substitutions := map[string]string{
		"${auth_access_token}": p.Credentials.AccessToken,
		"${auth_player_name}":  p.Credentials.PlayerName,
		"${auth_uuid}":         p.Credentials.UUID,
		"${auth_xuid}":         xuid,
		"${user_type}":         "msa",
		"${clientid}":          p.ClientID,
		"${version_name}":      p.Detail.ID,
		"${assets_index_name}": p.Detail.AssetIndex.ID,
		"${game_directory}":    p.GameDirectory,
		"${assets_root}":       assetsRoot,
		"${game_assets}":       gameAssets,
		"${version_type}":      "release",
		"${resolution_width}":  strconv.Itoa(p.Resolution.Width),
		"${resolution_height}": strconv.Itoa(p.Resolution.Height),
	}

	if p.Detail.LegacyGameArgs != "" {
		substituted := substituteAll(p.Detail.LegacyGameArgs, substitutions)
		return strings.Fields(substituted)
	}

	var out []string
	for _, entry := range p.Detail.GameArguments {
		if !EvaluateRules(entry.Rules) {
			continue
		}
		for _, v := range entry.Values {
			out = append(out, substituteAll(v, substitutions))
		}
	}
	return append(out, quickPlayArgs(p.QuickPlay)...)
}

// quickPlayArgs renders the optional direct-join flag. It's appended
// rather than substituted since neither the modern nor legacy argument
// templates declare a quick-play token.
func quickPlayArgs(qp QuickPlay) []string {
	switch qp.Mode {
	case QuickPlaySingleplayer:
		if qp.Target == "" {
			return nil
		}
		return []string{"--quickPlaySingleplayer", qp.Target}
	case QuickPlayMultiplayer:
		if qp.Target == "" {
			return nil
		}
		return []string{"--quickPlayMultiplayer", qp.Target}
	default:
		return nil
	}
}

func substituteAll(s string, substitutions map[string]string) string {
	for k, v := range substitutions {
		s = strings.ReplaceAll(s, k, v)
	}
	return s
}

// PatchOptionsTxt replaces the matching "key:value" line for each
// caller-supplied pair, appending it if absent; it never removes
// other lines, per spec §4.G.
func PatchOptionsTxt(path string, updates map[string]string) error {
	pending := make(map[string]string, len(updates))
	for k, v := range updates {
		pending[k] = v
	}

	var lines []string
	if f, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			key, _, ok := strings.Cut(line, ":")
			if ok {
				if newValue, matched := pending[key]; matched {
					line = key + ":" + newValue
					delete(pending, key)
				}
			}
			lines = append(lines, line)
		}
		f.Close()
		if err := scanner.Err(); err != nil {
			return onelauncher.Wrap(onelauncher.KindIO, err, path)
		}
	} else if !os.IsNotExist(err) {
		return onelauncher.Wrap(onelauncher.KindIO, err, path)
	}

	for k, v := range pending {
		lines = append(lines, k+":"+v)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return onelauncher.Wrap(onelauncher.KindIO, err, path)
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}
