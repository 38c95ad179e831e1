package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sublarr/sublarr/internal/config"
	"github.com/sublarr/sublarr/internal/mediamanager"
	"github.com/sublarr/sublarr/internal/model"
	"github.com/sublarr/sublarr/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.OpenForTest(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.LanguageProfiles = map[string]config.LanguageProfile{
		"default": {Name: "default", SourceLanguage: "en", TargetLanguage: "de"},
	}
	return cfg
}

type stubSeriesClient struct {
	episodes []mediamanager.Episode
}

func (c *stubSeriesClient) ListEpisodes(ctx context.Context) ([]mediamanager.Episode, error) {
	return c.episodes, nil
}
func (c *stubSeriesClient) RescanSeries(ctx context.Context, seriesID int) error { return nil }

type stubMovieClient struct {
	movies []mediamanager.Movie
}

func (c *stubMovieClient) ListMovies(ctx context.Context) ([]mediamanager.Movie, error) {
	return c.movies, nil
}
func (c *stubMovieClient) RescanMovie(ctx context.Context, movieID int) error { return nil }

func TestScanSeriesInsertsWantedItemForMissingSubtitle(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "s01e01.mkv")
	if err := os.WriteFile(videoPath, []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture video: %v", err)
	}

	st := newTestStore(t)
	series := &stubSeriesClient{episodes: []mediamanager.Episode{
		{SeriesID: 1, SeriesTitle: "Show", TVDBID: "555", Season: 1, EpisodeNum: 1, FilePath: videoPath},
	}}

	s := New(testConfig(), series, nil, st, nil, zerolog.Nop())
	inserted, _, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("expected 1 inserted wanted item, got %d", inserted)
	}

	items, err := st.WantedByStatus(model.WantedPending, 10)
	if err != nil {
		t.Fatalf("list wanted: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 pending wanted item, got %d", len(items))
	}
	if items[0].SeriesID != "555" {
		t.Errorf("expected SeriesID to carry the TVDB id, got %q", items[0].SeriesID)
	}
}

func TestScanSeriesSkipsWhenSubtitleAlreadyPresent(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "s01e01.mkv")
	os.WriteFile(videoPath, []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dir, "s01e01.de.srt"), []byte("sub"), 0o644)

	st := newTestStore(t)
	series := &stubSeriesClient{episodes: []mediamanager.Episode{
		{SeriesID: 1, SeriesTitle: "Show", TVDBID: "555", Season: 1, EpisodeNum: 1, FilePath: videoPath},
	}}

	s := New(testConfig(), series, nil, st, nil, zerolog.Nop())
	inserted, _, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("expected 0 inserted wanted items when a subtitle already exists, got %d", inserted)
	}
}

func TestScanRefusesConcurrentScans(t *testing.T) {
	st := newTestStore(t)
	s := New(testConfig(), &stubSeriesClient{}, &stubMovieClient{}, st, nil, zerolog.Nop())

	s.running = 1
	defer func() { s.running = 0 }()

	if _, _, err := s.Scan(context.Background()); err == nil {
		t.Fatal("expected Scan to refuse a second concurrent scan")
	}
}
