// Package langtag normalises language tags: a fixed lookup table mapping
// an ISO-639-1 primary tag to every string that should be treated as
// equivalent when scanning a filesystem or a media container for a
// language match.
package langtag

import "strings"

// equivalents maps an ISO-639-1 primary tag to every string (two- and
// three-letter ISO codes, plus the English language name) that should be
// treated as the same language when matching filenames or stream tags.
var equivalents = map[string]map[string]struct{}{
	"en": set("en", "eng", "english"),
	"de": set("de", "deu", "ger", "german"),
	"pt": set("pt", "por", "portuguese", "pt-br", "pob"),
	"es": set("es", "spa", "spanish"),
	"fr": set("fr", "fre", "fra", "french"),
	"it": set("it", "ita", "italian"),
	"ja": set("ja", "jpn", "japanese"),
	"ru": set("ru", "rus", "russian"),
	"zh": set("zh", "chi", "zho", "chinese"),
	"ko": set("ko", "kor", "korean"),
	"nl": set("nl", "dut", "nld", "dutch"),
	"sv": set("sv", "swe", "swedish"),
	"pl": set("pl", "pol", "polish"),
	"tr": set("tr", "tur", "turkish"),
	"ar": set("ar", "ara", "arabic"),
}

func set(tags ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		m[t] = struct{}{}
	}
	return m
}

// Equivalents returns the full equivalence set for primary, e.g. "de" ->
// {de, deu, ger, german}. Unknown primaries return a singleton set
// containing only the lower-cased primary itself, so an uncatalogued
// language code still round-trips through Matches.
func Equivalents(primary string) map[string]struct{} {
	primary = strings.ToLower(primary)
	if eq, ok := equivalents[primary]; ok {
		return eq
	}
	return set(primary)
}

// Matches reports whether candidate (any casing) is a member of primary's
// equivalence set.
func Matches(primary, candidate string) bool {
	_, ok := Equivalents(primary)[strings.ToLower(candidate)]
	return ok
}

// Normalize returns the canonical ISO-639-1 primary tag for any member of
// a known equivalence set, or the lower-cased input unchanged if it
// matches no known set.
func Normalize(tag string) string {
	tag = strings.ToLower(tag)
	for primary, eq := range equivalents {
		if _, ok := eq[tag]; ok {
			return primary
		}
	}
	return tag
}
