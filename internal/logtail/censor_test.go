package logtail

import (
	"strings"
	"testing"
)

func TestCensorRedactsAllCredentialForms(t *testing.T) {
	cred := Credential{
		AccessToken: "eyJhbGciOiJIUzI1NiJ9.secret",
		Username:    "Notch",
		UUID:        "069a79f4-44e9-4726-a5be-fca90e38aaf5",
	}
	text := "player Notch (069a79f444e94726a5befca90e38aaf5) logged in with token eyJhbGciOiJIUzI1NiJ9.secret"

	got := Censor(text, []Credential{cred}, "alice", "Alice Example")

	for _, leaked := range []string{cred.AccessToken, cred.Username, "069a79f4-44e9-4726-a5be-fca90e38aaf5", "069a79f444e94726a5befca90e38aaf5"} {
		if strings.Contains(got, leaked) {
			t.Errorf("Censor output still contains %q: %q", leaked, got)
		}
	}
	if !strings.Contains(got, "{MC_ACCESS_TOKEN}") || !strings.Contains(got, "{MC_USERNAME}") || !strings.Contains(got, "{MC_UUID}") {
		t.Errorf("Censor output missing placeholders: %q", got)
	}
}

func TestCensorRedactsOSIdentity(t *testing.T) {
	got := Censor("home dir for alice (Alice Example)", nil, "alice", "Alice Example")
	if strings.Contains(got, "alice") || strings.Contains(got, "Alice Example") {
		t.Errorf("Censor left OS identity in output: %q", got)
	}
}

func TestUUIDFormsRoundTrip(t *testing.T) {
	hyphenated, simple := uuidForms("069a79f4-44e9-4726-a5be-fca90e38aaf5")
	if hyphenated != "069a79f4-44e9-4726-a5be-fca90e38aaf5" || simple != "069a79f444e94726a5befca90e38aaf5" {
		t.Errorf("uuidForms(hyphenated) = (%q, %q)", hyphenated, simple)
	}

	hyphenated, simple = uuidForms("069a79f444e94726a5befca90e38aaf5")
	if hyphenated != "069a79f4-44e9-4726-a5be-fca90e38aaf5" || simple != "069a79f444e94726a5befca90e38aaf5" {
		t.Errorf("uuidForms(simple) = (%q, %q)", hyphenated, simple)
	}
}
