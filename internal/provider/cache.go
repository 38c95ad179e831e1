package provider

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/sublarr/sublarr/internal/model"
)

// Cache is the (provider name, query+format-filter hash) -> result-list
// store. internal/store implements this against the embedded database;
// tests use an in-memory stub.
type Cache interface {
	Get(providerName, key string) ([]model.SubtitleResult, bool)
	Set(providerName, key string, results []model.SubtitleResult)
}

// Blacklist tracks (provider, subtitle_id) pairs that must never be reused.
type Blacklist interface {
	IsBlacklisted(providerName, subtitleID string) bool
	Add(entry model.BlacklistEntry)
}

// StatsRecorder records per-provider attempt outcomes, feeding both the
// daily/provider stat tables and auto-prioritise ordering.
type StatsRecorder interface {
	RecordAttempt(providerName string, success bool)
	SuccessRate(providerName string) float64
}

// CacheKey hashes a query's canonical form together with the format
// filter into a stable SHA256 lookup key.
func CacheKey(q model.VideoQuery, format model.FormatFilter) string {
	canonical := fmt.Sprintf(
		"%s|%d|%s|%d|%d|%d|%s|%s|%s|%s|%s|%v|%s",
		q.Title, q.Year, q.SeriesTitle, q.Season, q.Episode, q.AbsEpisode,
		q.IMDbID, q.TMDbID, q.TVDBID, q.AniDBID, q.ReleaseGroup,
		q.Languages, format,
	)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
