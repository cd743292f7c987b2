package logtail

import "strings"

// Credential is the subset of an MSA credential the censor needs to
// redact from log output, per spec §4.K. Kept independent of
// internal/auth to avoid a package cycle (mirrors internal/installer's
// Credentials shim for the same reason).
type Credential struct {
	AccessToken string
	Username    string
	UUID        string // either spelling; both forms are censored
}

// Censor substitutes every occurrence of each credential's access
// token, username, and uuid (both hyphenated and simple-hex forms),
// plus the OS username/real name, with stable placeholders, per spec
// §4.K. It runs before any log bytes reach a caller.
func Censor(text string, creds []Credential, osUsername, osRealName string) string {
	replacer := buildReplacer(creds, osUsername, osRealName)
	return replacer.Replace(text)
}

func buildReplacer(creds []Credential, osUsername, osRealName string) *strings.Replacer {
	var pairs []string
	add := func(secret, placeholder string) {
		if secret != "" {
			pairs = append(pairs, secret, placeholder)
		}
	}

	for _, c := range creds {
		add(c.AccessToken, "{MC_ACCESS_TOKEN}")
		add(c.Username, "{MC_USERNAME}")
		hyphenated, simple := uuidForms(c.UUID)
		add(hyphenated, "{MC_UUID}")
		add(simple, "{MC_UUID}")
	}
	add(osUsername, "{ENV_USERNAME}")
	add(osRealName, "{ENV_REALNAME}")

	return strings.NewReplacer(pairs...)
}

// uuidForms returns both the hyphenated and simple-hex spellings of a
// uuid, regardless of which form was supplied.
func uuidForms(uuid string) (hyphenated, simple string) {
	if uuid == "" {
		return "", ""
	}
	if strings.Contains(uuid, "-") {
		return uuid, strings.ReplaceAll(uuid, "-", "")
	}
	if len(uuid) != 32 {
		return uuid, uuid
	}
	return uuid[0:8] + "-" + uuid[8:12] + "-" + uuid[12:16] + "-" + uuid[16:20] + "-" + uuid[20:32], uuid
}
