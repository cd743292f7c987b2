package installer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEvaluateRules(t *testing.T) {
	tests := []struct {
		name  string
		rules []Rule
		want  bool
	}{
		{"no rules", nil, true},
		{"single allow-all", []Rule{{Action: "allow"}}, true},
		{"disallow-all", []Rule{{Action: "disallow"}}, false},
		{"allow then unmatched os disallow", []Rule{
			{Action: "allow"},
			{Action: "disallow", OS: &OSRule{Name: "nonexistent-os"}},
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateRules(tt.rules); got != tt.want {
				t.Errorf("EvaluateRules(%v) = %v, want %v", tt.rules, got, tt.want)
			}
		})
	}
}

func TestComposeGameArgs_Substitution(t *testing.T) {
	detail := &VersionDetail{
		ID:         "1.20.1",
		AssetIndex: AssetIndexRef{ID: "7"},
		GameArguments: []ArgumentEntry{
			{Values: []string{"--username", "${auth_player_name}"}},
			{Values: []string{"--uuid", "${auth_uuid}"}},
		},
	}
	params := LaunchParams{
		Detail: detail,
		Credentials: Credentials{
			AccessToken: "tok",
			PlayerName:  "Steve",
			UUID:        "abcd1234",
		},
		GameDirectory: "/clusters/my-pack",
		AssetsRoot:    "/assets",
	}

	args := ComposeGameArgs(params)
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "Steve") {
		t.Fatalf("ComposeGameArgs() = %v, want it to contain the player name", args)
	}
	if !strings.Contains(joined, "abcd1234") {
		t.Fatalf("ComposeGameArgs() = %v, want it to contain the uuid", args)
	}
}

func TestComposeGameArgs_LegacyFlatString(t *testing.T) {
	detail := &VersionDetail{
		ID:             "1.7.10",
		LegacyGameArgs: "--username ${auth_player_name} --uuid ${auth_uuid}",
	}
	params := LaunchParams{
		Detail:      detail,
		Credentials: Credentials{PlayerName: "Alex", UUID: "ffff0000"},
	}
	args := ComposeGameArgs(params)
	if len(args) != 4 || args[1] != "Alex" || args[3] != "ffff0000" {
		t.Fatalf("ComposeGameArgs() legacy = %v", args)
	}
}

func TestPatchOptionsTxt_ReplacesAndAppendsWithoutRemoving(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "options.txt")
	initial := "fov:70\nrenderDistance:12\n"
	if err := os.WriteFile(path, []byte(initial), 0o644); err != nil {
		t.Fatalf("write initial options.txt: %v", err)
	}

	if err := PatchOptionsTxt(path, map[string]string{
		"fov":      "90",
		"newField": "true",
	}); err != nil {
		t.Fatalf("PatchOptionsTxt() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read patched options.txt: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "fov:90") {
		t.Fatalf("options.txt = %q, want fov replaced", content)
	}
	if !strings.Contains(content, "renderDistance:12") {
		t.Fatalf("options.txt = %q, want unrelated line preserved", content)
	}
	if !strings.Contains(content, "newField:true") {
		t.Fatalf("options.txt = %q, want new field appended", content)
	}
}

func TestResolveLibraryRef(t *testing.T) {
	got := resolveLibraryRef("net.minecraftforge:forge:1.20.1-47.2.0:installer", "/libs")
	want := filepath.Join("/libs", "net/minecraftforge", "forge", "1.20.1-47.2.0", "forge-1.20.1-47.2.0-installer.jar")
	if got != want {
		t.Errorf("resolveLibraryRef() = %q, want %q", got, want)
	}
}
