package provider

import (
	"testing"

	"github.com/sublarr/sublarr/internal/model"
)

func TestExtractReleaseGroup(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Show.S01E02.1080p.WEB-DL-GROUP.mkv", "GROUP"},
		{"Show.S01E02.1080p.WEB-DL-GROUP.srt", "GROUP"},
		{"a bare episode title", ""},
		{"trailing-hyphen-", ""},
	}
	for _, c := range cases {
		if got := extractReleaseGroup(c.name); got != c.want {
			t.Errorf("extractReleaseGroup(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestAnnotateReleaseGroupMatch(t *testing.T) {
	query := model.VideoQuery{ReleaseGroup: "GROUP"}

	exact := model.SubtitleResult{ReleaseInfo: "Show.S01E02.1080p.WEB-DL-GROUP.mkv"}
	annotateReleaseGroupMatch(&exact, query)
	if !exact.HasMatch(model.MatchReleaseGroup) {
		t.Fatal("expected an exact release group to match")
	}

	nearMiss := model.SubtitleResult{ReleaseInfo: "Show.S01E02.1080p.WEB-DL-GR0UP.mkv"}
	annotateReleaseGroupMatch(&nearMiss, query)
	if !nearMiss.HasMatch(model.MatchReleaseGroup) {
		t.Fatal("expected a one-edit release group typo to still match")
	}

	noMatch := model.SubtitleResult{ReleaseInfo: "Show.S01E02.1080p.WEB-DL-OTHERCREW.mkv"}
	annotateReleaseGroupMatch(&noMatch, query)
	if noMatch.HasMatch(model.MatchReleaseGroup) {
		t.Fatal("expected an unrelated release group not to match")
	}

	noGroupInQuery := model.SubtitleResult{ReleaseInfo: "Show.S01E02.1080p.WEB-DL-GROUP.mkv"}
	annotateReleaseGroupMatch(&noGroupInQuery, model.VideoQuery{})
	if noGroupInQuery.HasMatch(model.MatchReleaseGroup) {
		t.Fatal("expected no match when the query names no release group")
	}
}
