// Package anidb implements the AniDB absolute-episode-order sync: it
// downloads the community-maintained anime-lists XML mapping file and
// upserts (tvdb_id, season, episode) -> absolute episode rows into the
// store, the same table internal/scanner's search loop consults when a
// language profile has AniDBAbsoluteOrder set.
//
// Mapping tokens are "anidb_ep-tvdb_ep" pairs, semicolon separated, with
// season-0 specials skipped; a single-flight flag guards against
// overlapping runs.
package anidb

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/sublarr/sublarr/internal/httpclient"
)

// SourceURL is the anime-lists mapping file the sync downloads.
const SourceURL = "https://raw.githubusercontent.com/Anime-Lists/anime-lists/master/anime-list.xml"

// Mapper is the narrow store slice the syncer needs, defined locally per
// the pack's local-interface idiom.
type Mapper interface {
	UpsertAniDBMapping(tvdbID string, season, tvdbEpisode, absoluteEpisode int) error
}

// Result summarises one sync pass.
type Result struct {
	SeriesProcessed  int
	MappingsUpserted int
	Skipped          int
}

// Syncer fetches and applies the anime-lists mapping file.
type Syncer struct {
	store   Mapper
	client  *http.Client
	log     zerolog.Logger
	running int32 // atomic, same single-flight guard as internal/scanner.Scanner
}

// New builds a Syncer. The source URL is passed to Sync, which falls back
// to SourceURL when it is empty, so tests can point it at an
// httptest.Server.
func New(store Mapper, log zerolog.Logger) *Syncer {
	return &Syncer{
		store:  store,
		client: httpclient.New(httpclient.DefaultOptions()).StandardClient(),
		log:    log.With().Str("component", "anidb_sync").Logger(),
	}
}

// Sync downloads the mapping file from sourceURL (SourceURL if empty) and
// upserts every well-formed mapping it finds. Refuses to run if a sync is
// already in flight, matching the original's "Sync already running" guard.
func (s *Syncer) Sync(ctx context.Context, sourceURL string) (Result, error) {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return Result{}, fmt.Errorf("anidb: a sync is already running")
	}
	defer atomic.StoreInt32(&s.running, 0)

	if sourceURL == "" {
		sourceURL = SourceURL
	}

	body, err := s.fetch(ctx, sourceURL)
	if err != nil {
		return Result{}, fmt.Errorf("anidb: fetch: %w", err)
	}

	result, err := s.apply(body)
	if err != nil {
		return Result{}, fmt.Errorf("anidb: parse: %w", err)
	}

	s.log.Info().
		Int("series_processed", result.SeriesProcessed).
		Int("mappings_upserted", result.MappingsUpserted).
		Int("skipped", result.Skipped).
		Msg("anidb sync complete")
	return result, nil
}

func (s *Syncer) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// animeListXML mirrors the anime-lists document shape: a flat list of
// <anime tvdbid="..."> elements, each with a <mapping-list> of per-season
// token strings.
type animeListXML struct {
	Anime []animeEntry `xml:"anime"`
}

type animeEntry struct {
	TVDBID      string        `xml:"tvdbid,attr"`
	MappingList []mappingList `xml:"mapping-list>mapping"`
}

type mappingList struct {
	TVDBSeason string `xml:"tvdbseason,attr"`
	Tokens     string `xml:",chardata"`
}

func (s *Syncer) apply(body []byte) (Result, error) {
	var doc animeListXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		return Result{}, fmt.Errorf("xml parse: %w", err)
	}

	var result Result
	for _, anime := range doc.Anime {
		tvdbID := strings.TrimSpace(anime.TVDBID)
		if tvdbID == "" {
			result.Skipped++
			continue
		}
		result.SeriesProcessed++

		for _, m := range anime.MappingList {
			season, err := strconv.Atoi(strings.TrimSpace(m.TVDBSeason))
			if err != nil || season <= 0 {
				continue // malformed or season-0 specials, same skip as the original
			}
			for _, token := range strings.Split(m.Tokens, ";") {
				anidbEp, tvdbEp, ok := parseToken(token)
				if !ok {
					continue
				}
				if err := s.store.UpsertAniDBMapping(tvdbID, season, tvdbEp, anidbEp); err != nil {
					s.log.Debug().Err(err).Str("tvdb_id", tvdbID).Int("season", season).
						Int("episode", tvdbEp).Msg("failed to upsert anidb mapping")
					continue
				}
				result.MappingsUpserted++
			}
		}
	}
	return result, nil
}

// parseToken parses a single "anidb_ep-tvdb_ep" mapping token.
func parseToken(token string) (anidbEp, tvdbEp int, ok bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, 0, false
	}
	parts := strings.Split(token, "-")
	if len(parts) != 2 {
		return 0, 0, false
	}
	a, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	t, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || a <= 0 || t <= 0 {
		return 0, 0, false
	}
	return a, t, true
}
