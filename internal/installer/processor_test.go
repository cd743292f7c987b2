package installer

import "testing"

func TestSubstituteProcessorArg(t *testing.T) {
	tokens := processorTokens{
		Side:             "client",
		MinecraftJar:     "/root/versions/1.20.1/1.20.1.jar",
		LibraryDir:       "/root/libraries",
		Root:             "/root/clusters/my-pack",
		MinecraftVersion: "1.20.1",
	}
	data := map[string]DataEntry{
		"MAPPINGS": {Client: "client-mappings.txt", Server: "server-mappings.txt"},
	}

	got := substituteProcessorArg("{MINECRAFT_JAR}", data, tokens, "/root/libraries")
	if got != tokens.MinecraftJar {
		t.Errorf("substituteProcessorArg(token) = %q, want %q", got, tokens.MinecraftJar)
	}

	got = substituteProcessorArg("{MAPPINGS}", data, tokens, "/root/libraries")
	if got != "client-mappings.txt" {
		t.Errorf("substituteProcessorArg(data key, client side) = %q, want client variant", got)
	}

	got = substituteProcessorArg("[net.minecraftforge:forge:1.20.1-47.2.0]", data, tokens, "/root/libraries")
	want := resolveLibraryRef("net.minecraftforge:forge:1.20.1-47.2.0", "/root/libraries")
	if got != want {
		t.Errorf("substituteProcessorArg(bracketed ref) = %q, want %q", got, want)
	}
}

func TestSubstituteProcessorArg_ServerSide(t *testing.T) {
	tokens := processorTokens{Side: "server"}
	data := map[string]DataEntry{"MAPPINGS": {Client: "client.txt", Server: "server.txt"}}
	got := substituteProcessorArg("{MAPPINGS}", data, tokens, "/libs")
	if got != "server.txt" {
		t.Errorf("substituteProcessorArg(server side) = %q, want server variant", got)
	}
}

func TestProcessorAppliesToSide(t *testing.T) {
	if !processorAppliesToSide(Processor{}, "client") {
		t.Error("processor with no Sides restriction should apply to every side")
	}
	if !processorAppliesToSide(Processor{Sides: []string{"client", "server"}}, "client") {
		t.Error("processor listing client should apply to client")
	}
	if processorAppliesToSide(Processor{Sides: []string{"server"}}, "client") {
		t.Error("processor listing only server should not apply to client")
	}
}
