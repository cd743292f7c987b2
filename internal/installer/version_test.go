package installer

import (
	"encoding/json"
	"testing"
)

func TestParseArgumentEntries(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`"--demo"`),
		json.RawMessage(`{"rules":[{"action":"allow","os":{"name":"linux"}}],"value":"--fullscreen"}`),
		json.RawMessage(`{"rules":[{"action":"allow"}],"value":["--width","${resolution_width}"]}`),
	}
	entries := parseArgumentEntries(raw)
	if len(entries) != 3 {
		t.Fatalf("parseArgumentEntries() returned %d entries, want 3", len(entries))
	}
	if entries[0].Values[0] != "--demo" || len(entries[0].Rules) != 0 {
		t.Errorf("entries[0] = %+v, want bare string with no rules", entries[0])
	}
	if entries[1].Values[0] != "--fullscreen" || len(entries[1].Rules) != 1 {
		t.Errorf("entries[1] = %+v, want single-value rule-gated entry", entries[1])
	}
	if len(entries[2].Values) != 2 || entries[2].Values[1] != "${resolution_width}" {
		t.Errorf("entries[2] = %+v, want multi-value entry", entries[2])
	}
}

func TestMerge_ShallowUnion(t *testing.T) {
	vanilla := &VersionDetail{
		ID:            "1.20.1",
		MainClass:     "net.minecraft.client.main.Main",
		Libraries:     []Library{{Name: "vanilla-lib"}},
		GameArguments: []ArgumentEntry{{Values: []string{"--demo"}}},
	}
	loader := &VersionDetail{
		MainClass:  "net.fabricmc.loader.impl.launch.knot.KnotClient",
		Libraries:  []Library{{Name: "fabric-loader"}},
		Processors: []Processor{{Jar: "installer.jar"}},
	}

	merged := Merge(vanilla, loader)

	if merged.MainClass != loader.MainClass {
		t.Errorf("merged.MainClass = %q, want loader override %q", merged.MainClass, loader.MainClass)
	}
	if len(merged.Libraries) != 2 {
		t.Errorf("merged.Libraries = %v, want concatenation of both lists", merged.Libraries)
	}
	if len(merged.GameArguments) != 1 {
		t.Errorf("merged.GameArguments = %v, want vanilla's untouched list preserved", merged.GameArguments)
	}
	if len(merged.Processors) != 1 {
		t.Errorf("merged.Processors = %v, want loader's processors adopted", merged.Processors)
	}
	if merged.ID != vanilla.ID {
		t.Errorf("merged.ID = %q, want vanilla's ID preserved", merged.ID)
	}
}

func TestMerge_NilLoaderReturnsVanillaUnchanged(t *testing.T) {
	vanilla := &VersionDetail{ID: "1.20.1"}
	merged := Merge(vanilla, nil)
	if merged != vanilla {
		t.Errorf("Merge(vanilla, nil) = %p, want the same pointer as vanilla", merged)
	}
}
