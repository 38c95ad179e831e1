// Package scanner implements the wanted scanner, which periodically
// enumerates the library through the external media-manager clients and
// materialises missing-subtitle work rows, and the search loop that
// drives those rows through the translator engine.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/sublarr/sublarr/internal/config"
	"github.com/sublarr/sublarr/internal/langtag"
	"github.com/sublarr/sublarr/internal/mediamanager"
	"github.com/sublarr/sublarr/internal/model"
	"github.com/sublarr/sublarr/internal/store"
)

// Emitter is the narrow event-bus slice this package needs, matching the
// local-interface idiom the other managers already use.
type Emitter interface {
	Emit(name string, payload map[string]any)
}

type nopEmitter struct{}

func (nopEmitter) Emit(string, map[string]any) {}

// Scanner enumerates the library via the configured media-manager
// clients and upserts a WantedItem per (file, language profile) gap.
type Scanner struct {
	cfg     *config.Config
	series  mediamanager.SeriesClient
	movies  mediamanager.MovieClient
	store   *store.Store
	emitter Emitter
	log     zerolog.Logger

	running int32 // atomic flag: at most one scan runs at a time
}

// New builds a Scanner. series/movies may be nil when that media-manager
// kind is not configured; the scan simply skips the missing half.
func New(cfg *config.Config, series mediamanager.SeriesClient, movies mediamanager.MovieClient, st *store.Store, emitter Emitter, log zerolog.Logger) *Scanner {
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &Scanner{
		cfg: cfg, series: series, movies: movies, store: st, emitter: emitter,
		log: log.With().Str("component", "scanner").Logger(),
	}
}

// Scan runs one enumeration pass. Returns immediately with an error if
// a scan is already in flight, rather than queueing or blocking.
func (s *Scanner) Scan(ctx context.Context) (inserted, updated int, err error) {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return 0, 0, fmt.Errorf("scanner: a scan is already running")
	}
	defer atomic.StoreInt32(&s.running, 0)

	s.emitter.Emit("wanted_scan_started", map[string]any{})

	if s.series != nil {
		ins, upd, serr := s.scanSeries(ctx)
		inserted += ins
		updated += upd
		if serr != nil {
			err = serr
		}
	}
	if s.movies != nil {
		ins, upd, merr := s.scanMovies(ctx)
		inserted += ins
		updated += upd
		if merr != nil && err == nil {
			err = merr
		}
	}

	s.emitter.Emit("wanted_scan_finished", map[string]any{"inserted": inserted, "updated": updated})
	return inserted, updated, err
}

func (s *Scanner) scanSeries(ctx context.Context) (inserted, updated int, err error) {
	episodes, err := s.series.ListEpisodes(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("scanner: list episodes: %w", err)
	}

	for _, ep := range episodes {
		for _, profile := range s.cfg.LanguageProfiles {
			if _, statErr := os.Stat(ep.FilePath); statErr != nil {
				continue // media file vanished between listing and stat; skip rather than fail the whole scan
			}
			if hasSubtitle(ep.FilePath, profile.TargetLanguage) {
				continue
			}

			// SeriesID stores the TVDB id, not the media-manager's internal
			// series id: the search loop needs the TVDB id to look up an
			// AniDB absolute-episode mapping, and nothing else in this
			// engine needs the internal id once the scan has run.
			w := model.WantedItem{
				Type:             model.ItemEpisode,
				SeriesID:         ep.TVDBID,
				EpisodeID:        fmt.Sprintf("%d-s%02de%02d", ep.SeriesID, ep.Season, ep.EpisodeNum),
				Title:            ep.SeriesTitle,
				SeasonEpisode:    fmt.Sprintf("S%02dE%02d", ep.Season, ep.EpisodeNum),
				FilePath:         ep.FilePath,
				MissingLanguages: []string{profile.TargetLanguage},
				Status:           model.WantedPending,
				TargetLanguage:   profile.TargetLanguage,
				SubtitleType:     model.SubtitleFull,
			}
			if _, upsertErr := s.store.UpsertWanted(w); upsertErr != nil {
				return inserted, updated, fmt.Errorf("scanner: upsert wanted (series): %w", upsertErr)
			}
			inserted++
		}
	}
	return inserted, updated, nil
}

func (s *Scanner) scanMovies(ctx context.Context) (inserted, updated int, err error) {
	movies, err := s.movies.ListMovies(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("scanner: list movies: %w", err)
	}

	for _, m := range movies {
		for _, profile := range s.cfg.LanguageProfiles {
			if _, statErr := os.Stat(m.FilePath); statErr != nil {
				continue
			}
			if hasSubtitle(m.FilePath, profile.TargetLanguage) {
				continue
			}

			w := model.WantedItem{
				Type:             model.ItemMovie,
				MovieID:          fmt.Sprint(m.MovieID),
				Title:            m.Title,
				FilePath:         m.FilePath,
				MissingLanguages: []string{profile.TargetLanguage},
				Status:           model.WantedPending,
				TargetLanguage:   profile.TargetLanguage,
				SubtitleType:     model.SubtitleFull,
			}
			if _, upsertErr := s.store.UpsertWanted(w); upsertErr != nil {
				return inserted, updated, fmt.Errorf("scanner: upsert wanted (movie): %w", upsertErr)
			}
			inserted++
		}
	}
	return inserted, updated, nil
}

// hasSubtitle checks for an on-disk subtitle in any known extension, in
// targetLang or one of its equivalents, next to videoPath.
func hasSubtitle(videoPath, targetLang string) bool {
	dir := filepath.Dir(videoPath)
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	for _, ext := range []string{"ass", "ssa", "srt", "vtt"} {
		for tag := range langtag.Equivalents(targetLang) {
			candidate := filepath.Join(dir, fmt.Sprintf("%s.%s.%s", base, tag, ext))
			if _, err := os.Stat(candidate); err == nil {
				return true
			}
		}
	}
	return false
}
