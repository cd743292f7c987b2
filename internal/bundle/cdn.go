package bundle

import "strings"

// modrinthCDNPrefix is the well-known layout of a Modrinth-hosted
// download URL: .../data/<project_id>/versions/<version_id>/<filename>.
const modrinthCDNPrefix = "https://cdn.modrinth.com/data/"

// parseModrinthCDNURL extracts the project/version ids a plain mrpack
// manifest doesn't carry directly, mirroring the convention
// original_source's polymrpack.rs relies on to recover managed
// identity from a bare download URL.
func parseModrinthCDNURL(url string) (projectID, versionID string, ok bool) {
	if !strings.HasPrefix(url, modrinthCDNPrefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(url, modrinthCDNPrefix)
	parts := strings.Split(rest, "/")
	if len(parts) < 4 || parts[1] != "versions" {
		return "", "", false
	}
	return parts[0], parts[2], true
}
