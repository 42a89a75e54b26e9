package services

import (
	"strings"
	"unicode"
)

// Feature namespaces. Namespacing keeps prefix, suffix, and component
// tokens from colliding inside pattern memory.
const (
	featurePrefix    = "prefix:"
	featureSuffix    = "suffix:"
	featureComponent = "component:"
)

var knownPrefixes = []string{
	"is", "has", "can", "should", "billing", "shipping",
	"primary", "secondary", "created", "modified", "last", "first",
}

var knownSuffixes = []string{
	"id", "name", "date", "time", "at", "on", "by", "url",
	"email", "phone", "address", "code", "type", "status",
}

// ExtractFeatures tokenizes a field name into namespaced features:
// prefix:<p> and suffix:<s> for the closed prefix/suffix vocabularies,
// and component:<c> for each run of three or more characters produced by
// splitting on underscores, whitespace, and capital-letter boundaries.
// parentAccountId yields parent, account, id; address1_line1 yields
// address1, line1.
func ExtractFeatures(name string) map[string]struct{} {
	features := make(map[string]struct{})
	if name == "" {
		return features
	}
	lower := strings.ToLower(name)

	for _, p := range knownPrefixes {
		if strings.HasPrefix(lower, p) {
			features[featurePrefix+p] = struct{}{}
		}
	}
	for _, s := range knownSuffixes {
		if strings.HasSuffix(lower, s) {
			features[featureSuffix+s] = struct{}{}
		}
	}
	for _, c := range splitComponents(name) {
		if len(c) >= 3 {
			features[featureComponent+strings.ToLower(c)] = struct{}{}
		}
	}
	return features
}

// splitComponents breaks a field name on underscores, whitespace, and
// lower-to-upper case boundaries.
func splitComponents(name string) []string {
	var components []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			components = append(components, current.String())
			current.Reset()
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || unicode.IsSpace(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && !unicode.IsUpper(runes[i-1]):
			flush()
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return components
}
