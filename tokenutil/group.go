package tokenutil

import (
	"regexp"
	"strings"
)

const UnknownGroup = "Unknown"

var groupPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Group[:\s]+([^,\n\r]+)`),
	regexp.MustCompile(`(?i)(?:from|by)\s+(?:Group\s+)?([A-Z][a-zA-Z0-9\s]+?)(?:\s+group)?(?:\n|\r|,|$)`),
	regexp.MustCompile(`(?i)\b(Zeus|Apollo|Hermes|Ares|Athena|Poseidon|Artemis|Dionysus|Aphrodite|Hera|Demeter|Hephaestus|Hades|Persephone|Hestia|Nike|Hecate|Tyche|Nemesis|Iris|Pan|Morpheus|Hypnos|Thanatos|Nyx|Erebus|Gaia|Ouranos|Kronos|Rhea|Atlas|Prometheus|Epimetheus|Pandora|Helios|Selene|Eos|Boreas|Zephyrus|Notus|Eurus|Alpha|Beta|Gamma|Delta|Epsilon|Zeta|Eta|Theta|Iota|Kappa|Lambda|Mu|Nu|Xi|Omicron|Pi|Rho|Sigma|Tau|Upsilon|Phi|Chi|Psi|Omega)\b`),
	regexp.MustCompile(`(?i)\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\s+(?:call|signal|alert)`),
}

var (
	groupPrefix = regexp.MustCompile(`(?i)^Group\s+`)
	groupSuffix = regexp.MustCompile(`(?i)\s+group$`)
)

// GroupFromText guesses the calling group from unstructured raw data. The
// first matching pattern decides; a match that cleans to nothing yields
// UnknownGroup. When no pattern matches, a non-default source is used,
// otherwise UnknownGroup.
func GroupFromText(raw, source string) string {
	for _, re := range groupPatterns {
		m := re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		g := strings.Trim(m[1], " \t\"'{}[]\\")
		g = groupPrefix.ReplaceAllString(g, "")
		if g = strings.TrimSpace(groupSuffix.ReplaceAllString(g, "")); g == "" {
			return UnknownGroup
		}
		return g
	}
	if source != "" && source != "krom" {
		return source
	}
	return UnknownGroup
}

// GroupFor prefers the structured group name and falls back to pattern matching.
func GroupFor(rawJSON []byte, source string) string {
	if g := ParseRaw(rawJSON).GroupName(); g != "" {
		return g
	}
	return GroupFromText(string(rawJSON), source)
}
