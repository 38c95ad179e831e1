package mediamanager

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRadarrListMoviesSkipsMoviesWithoutFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "key1" {
			t.Error("expected X-Api-Key header")
		}
		switch r.URL.Path {
		case "/api/v3/movie":
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": 1, "title": "Has File", "year": 2020, "imdbId": "tt1", "tmdbId": 100, "hasFile": true,
					"path": "/movies/has-file", "movieFile": map[string]any{"relativePath": "has-file.mkv"}},
				{"id": 2, "title": "No File", "year": 2021, "hasFile": false},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewRadarrClient(srv.URL, "key1")
	movies, err := client.ListMovies(context.Background())
	if err != nil {
		t.Fatalf("list movies: %v", err)
	}
	if len(movies) != 1 {
		t.Fatalf("expected 1 movie with a file, got %d", len(movies))
	}
	if movies[0].FilePath != "/movies/has-file/has-file.mkv" {
		t.Errorf("unexpected file path %q", movies[0].FilePath)
	}
}

func TestRadarrRescanMovieSendsCommand(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewRadarrClient(srv.URL, "key1")
	if err := client.RescanMovie(context.Background(), 42); err != nil {
		t.Fatalf("rescan movie: %v", err)
	}
	if gotBody["name"] != "RescanMovie" || gotBody["movieId"] != float64(42) {
		t.Errorf("unexpected command body: %v", gotBody)
	}
}

func TestSonarrListEpisodesJoinsFilesAndDetectsAnime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/series":
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": 1, "title": "Some Anime", "year": 2019, "tvdbId": 555, "tags": []int{9}},
			})
		case "/api/v3/tag":
			json.NewEncoder(w).Encode([]map[string]any{{"id": 9, "label": "anime"}})
		case "/api/v3/episode":
			if r.URL.Query().Get("seriesId") != "1" {
				t.Errorf("unexpected seriesId %q", r.URL.Query().Get("seriesId"))
			}
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": 10, "seriesId": 1, "seasonNumber": 1, "episodeNumber": 1, "title": "Pilot", "hasFile": true, "episodeFileId": 100},
				{"id": 11, "seriesId": 1, "seasonNumber": 1, "episodeNumber": 2, "hasFile": false},
			})
		case "/api/v3/episodefile":
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": 100, "path": "/tv/some-anime/s01e01.mkv"},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewSonarrClient(srv.URL, "key1", "anime")
	episodes, err := client.ListEpisodes(context.Background())
	if err != nil {
		t.Fatalf("list episodes: %v", err)
	}
	if len(episodes) != 1 {
		t.Fatalf("expected 1 episode with a file, got %d", len(episodes))
	}
	ep := episodes[0]
	if ep.FilePath != "/tv/some-anime/s01e01.mkv" {
		t.Errorf("unexpected file path %q", ep.FilePath)
	}
	if !ep.AnimeSeries {
		t.Error("expected series tagged anime to be flagged AnimeSeries")
	}
}
