package mediamanager

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sublarr/sublarr/internal/httpclient"
)

// SonarrClient is media-manager A, sharing RadarrClient's v3 API shape
// (same auth header, same /command rescan pattern) but walking
// series -> episode -> episodefile instead of a flat /movie list, since
// Sonarr has no single endpoint returning a series' episodes with their
// file paths inline.
type SonarrClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	animeTag string
}

// NewSonarrClient builds a Sonarr client. animeTag names the Sonarr tag
// (or genre) this deployment uses to flag anime series, mirroring the
// original's get_anime_movies tag-or-genre heuristic; pass "" to treat
// every series the same (AniDB absolute-order lookups simply never
// trigger).
func NewSonarrClient(baseURL, apiKey, animeTag string) *SonarrClient {
	opts := httpclient.DefaultOptions()
	opts.Timeout = 15 * time.Second
	opts.MaxRetries = 3
	return &SonarrClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiKey:   apiKey,
		client:   httpclient.New(opts).StandardClient(),
		animeTag: animeTag,
	}
}

type sonarrSeries struct {
	ID     int      `json:"id"`
	Title  string   `json:"title"`
	Year   int      `json:"year"`
	TvdbID int      `json:"tvdbId"`
	ImdbID string   `json:"imdbId"`
	Tags   []int    `json:"tags"`
	Genres []string `json:"genres"`
}

type sonarrTag struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

type sonarrEpisode struct {
	ID            int    `json:"id"`
	SeriesID      int    `json:"seriesId"`
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
	Title         string `json:"title"`
	HasFile       bool   `json:"hasFile"`
	EpisodeFileID int    `json:"episodeFileId"`
}

type sonarrEpisodeFile struct {
	ID   int    `json:"id"`
	Path string `json:"path"`
}

// ListEpisodes enumerates every series, then every episode-with-a-file
// per series, joining in the episode file's on-disk path.
func (c *SonarrClient) ListEpisodes(ctx context.Context) ([]Episode, error) {
	var series []sonarrSeries
	if err := c.get(ctx, "/series", &series); err != nil {
		return nil, fmt.Errorf("mediamanager: sonarr list series: %w", err)
	}

	animeSeriesIDs, err := c.animeSeriesIDs(ctx, series)
	if err != nil {
		return nil, err
	}

	var out []Episode
	for _, s := range series {
		var episodes []sonarrEpisode
		if err := c.get(ctx, fmt.Sprintf("/episode?seriesId=%d", s.ID), &episodes); err != nil {
			return nil, fmt.Errorf("mediamanager: sonarr list episodes for series %d: %w", s.ID, err)
		}

		var files []sonarrEpisodeFile
		if err := c.get(ctx, fmt.Sprintf("/episodefile?seriesId=%d", s.ID), &files); err != nil {
			return nil, fmt.Errorf("mediamanager: sonarr list episode files for series %d: %w", s.ID, err)
		}
		pathByFileID := make(map[int]string, len(files))
		for _, f := range files {
			pathByFileID[f.ID] = f.Path
		}

		for _, e := range episodes {
			if !e.HasFile {
				continue
			}
			path, ok := pathByFileID[e.EpisodeFileID]
			if !ok || path == "" {
				continue
			}
			out = append(out, Episode{
				SeriesID:     s.ID,
				SeriesTitle:  s.Title,
				Year:         s.Year,
				TVDBID:       fmt.Sprint(s.TvdbID),
				IMDbID:       s.ImdbID,
				Season:       e.SeasonNumber,
				EpisodeNum:   e.EpisodeNumber,
				EpisodeTitle: e.Title,
				FilePath:     path,
				AnimeSeries:  animeSeriesIDs[s.ID],
			})
		}
	}
	return out, nil
}

// animeSeriesIDs mirrors get_anime_movies' tag-or-genre detection,
// applied to series instead of movies.
func (c *SonarrClient) animeSeriesIDs(ctx context.Context, series []sonarrSeries) (map[int]bool, error) {
	result := make(map[int]bool)
	if c.animeTag == "" {
		return result, nil
	}

	var tags []sonarrTag
	if err := c.get(ctx, "/tag", &tags); err != nil {
		return nil, fmt.Errorf("mediamanager: sonarr list tags: %w", err)
	}
	animeTagIDs := make(map[int]bool)
	for _, t := range tags {
		if strings.EqualFold(t.Label, c.animeTag) {
			animeTagIDs[t.ID] = true
		}
	}

	for _, s := range series {
		hasTag := false
		for _, id := range s.Tags {
			if animeTagIDs[id] {
				hasTag = true
				break
			}
		}
		hasGenre := false
		for _, g := range s.Genres {
			if strings.EqualFold(g, "anime") {
				hasGenre = true
				break
			}
		}
		result[s.ID] = hasTag || hasGenre
	}
	return result, nil
}

// RescanSeries triggers a Sonarr RescanSeries command.
func (c *SonarrClient) RescanSeries(ctx context.Context, seriesID int) error {
	return c.post(ctx, "/command", map[string]any{"name": "RescanSeries", "seriesId": seriesID})
}

func (c *SonarrClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v3"+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *SonarrClient) post(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v3"+path, strings.NewReader(string(data)))
	if err != nil {
		return err
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
