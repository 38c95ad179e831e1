package provider

import (
	"path"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/sublarr/sublarr/internal/model"
)

// releaseGroupMaxDistance is the maximum case-insensitive edit distance
// tolerated between the query's known release group and the group token
// parsed out of a result's free-text release name before the match is
// asserted. Providers format scene tags inconsistently (hyphens vs dots,
// stray bracket noise), so an exact compare would miss groups an operator
// would recognise as the same one.
const releaseGroupMaxDistance = 2

// annotateReleaseGroupMatch sets model.MatchReleaseGroup on result when its
// free-text release name (ReleaseInfo, falling back to Filename) carries a
// trailing group tag within releaseGroupMaxDistance edits of
// query.ReleaseGroup. A no-op when the query names no release group or the
// result carries no parseable tag.
func annotateReleaseGroupMatch(result *model.SubtitleResult, query model.VideoQuery) {
	if query.ReleaseGroup == "" {
		return
	}
	name := result.ReleaseInfo
	if name == "" {
		name = result.Filename
	}
	group := extractReleaseGroup(name)
	if group == "" {
		return
	}

	distance := levenshtein.ComputeDistance(strings.ToLower(group), strings.ToLower(query.ReleaseGroup))
	if distance > releaseGroupMaxDistance {
		return
	}

	if result.Matches == nil {
		result.Matches = map[model.MatchKind]struct{}{}
	}
	result.Matches[model.MatchReleaseGroup] = struct{}{}
}

// extractReleaseGroup pulls the trailing scene-release group tag off a
// free-text release name, e.g. "Show.S01E01.1080p.WEB-DL-GROUP.mkv" ->
// "GROUP". A name with no hyphenated trailing tag (a bare episode title, a
// provider's own display name) yields "".
func extractReleaseGroup(name string) string {
	name = strings.TrimSuffix(name, path.Ext(name))
	idx := strings.LastIndex(name, "-")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.TrimSpace(name[idx+1:])
}
