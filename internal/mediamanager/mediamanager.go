// Package mediamanager implements HTTP clients for the two external
// catalog systems that own the library — Sonarr for series, Radarr for
// movies — which the wanted scanner queries to enumerate files and pull
// rich metadata for VideoQuery construction.
//
// Both clients share the v3 REST API shape Sonarr and Radarr have in
// common: an X-Api-Key header, an /api/v3 prefix, and a /command
// endpoint for rescans.
package mediamanager

import "context"

// Episode is one series episode with a subtitle-relevant file on disk,
// enough to build a model.VideoQuery and a WantedItem row.
type Episode struct {
	SeriesID     int
	SeriesTitle  string
	Year         int
	TVDBID       string
	IMDbID       string
	Season       int
	EpisodeNum   int
	EpisodeTitle string
	FilePath     string
	AnimeSeries  bool // carries the scanner's anime-tag detection, gating AniDB absolute-order lookups
}

// Movie is one movie with a file on disk.
type Movie struct {
	MovieID  int
	Title    string
	Year     int
	IMDbID   string
	TMDbID   string
	FilePath string
}

// SeriesClient is media-manager A's contract: enumerate episodes that have
// a video file, and trigger a post-write library rescan.
type SeriesClient interface {
	ListEpisodes(ctx context.Context) ([]Episode, error)
	RescanSeries(ctx context.Context, seriesID int) error
}

// MovieClient is media-manager B's contract.
type MovieClient interface {
	ListMovies(ctx context.Context) ([]Movie, error)
	RescanMovie(ctx context.Context, movieID int) error
}
