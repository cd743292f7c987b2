package installer

import (
	"regexp"
	"runtime"
)

// currentOSName maps runtime.GOOS onto the vanilla launcher's "osx"/
// "linux"/"windows" vocabulary.
func currentOSName() string {
	switch runtime.GOOS {
	case "darwin":
		return "osx"
	case "windows":
		return "windows"
	default:
		return "linux"
	}
}

func currentArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "arm64"
	case "386":
		return "x86"
	default:
		return runtime.GOARCH
	}
}

// osMatches evaluates one rule's OS clause by name, version regex,
// and arch, per spec §4.G.
func osMatches(r *OSRule) bool {
	if r == nil {
		return true
	}
	if r.Name != "" && r.Name != currentOSName() {
		return false
	}
	if r.Arch != "" && r.Arch != currentArch() {
		return false
	}
	if r.Version != "" {
		matched, err := regexp.MatchString(r.Version, runtime.GOOS)
		if err != nil || !matched {
			return false
		}
	}
	return true
}

// EvaluateRules applies spec §4.G's rule-set semantics: passes iff no
// rule evaluates to Disallow AND at least one evaluates to Allow (or
// every rule is an unmet Disallow, which passes by convention for
// natives with no matching platform clause).
func EvaluateRules(rules []Rule) bool {
	if len(rules) == 0 {
		return true
	}
	sawAllow := false
	sawDisallow := false
	for _, rule := range rules {
		applies := osMatches(rule.OS)
		switch rule.Action {
		case "allow":
			if applies {
				sawAllow = true
			}
		case "disallow":
			if applies {
				sawDisallow = true
			}
		}
	}
	if sawDisallow {
		return false
	}
	if sawAllow {
		return true
	}
	// All rules were Disallow-with-unmet-conditions: pass by
	// convention.
	return true
}

// FilterLibraries drops libraries whose rules don't pass on this OS
// and architecture, per spec §4.G step 3.
func FilterLibraries(libs []Library) []Library {
	out := make([]Library, 0, len(libs))
	for _, lib := range libs {
		if EvaluateRules(lib.Rules) {
			out = append(out, lib)
		}
	}
	return out
}

// NativesFor returns the native classifier artifact for lib on this
// OS, if any.
func NativesFor(lib Library) (Artifact, bool) {
	classifier, ok := lib.Natives[currentOSName()]
	if !ok {
		return Artifact{}, false
	}
	art, ok := lib.Classifiers[classifier]
	return art, ok
}
