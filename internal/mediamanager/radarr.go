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

// RadarrClient is the movie-catalog client: an X-Api-Key-authenticated
// v3 REST client over /movie and /command.
type RadarrClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRadarrClient builds a Radarr client on the shared retry session.
func NewRadarrClient(baseURL, apiKey string) *RadarrClient {
	opts := httpclient.DefaultOptions()
	opts.Timeout = 15 * time.Second
	opts.MaxRetries = 3
	return &RadarrClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  httpclient.New(opts).StandardClient(),
	}
}

type radarrMovie struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Year    int    `json:"year"`
	ImdbID  string `json:"imdbId"`
	TmdbID  int    `json:"tmdbId"`
	HasFile bool   `json:"hasFile"`
	Path    string `json:"path"`
	MovieFile *struct {
		RelativePath string `json:"relativePath"`
	} `json:"movieFile"`
}

// ListMovies implements MovieClient, mirroring get_movies + the
// has_file/path join the original's get_library_info performs inline.
func (c *RadarrClient) ListMovies(ctx context.Context) ([]Movie, error) {
	var movies []radarrMovie
	if err := c.get(ctx, "/movie", &movies); err != nil {
		return nil, fmt.Errorf("mediamanager: radarr list movies: %w", err)
	}

	out := make([]Movie, 0, len(movies))
	for _, m := range movies {
		if !m.HasFile || m.MovieFile == nil {
			continue
		}
		out = append(out, Movie{
			MovieID:  m.ID,
			Title:    m.Title,
			Year:     m.Year,
			IMDbID:   m.ImdbID,
			TMDbID:   fmt.Sprint(m.TmdbID),
			FilePath: joinPath(m.Path, m.MovieFile.RelativePath),
		})
	}
	return out, nil
}

// RescanMovie triggers a Radarr RescanMovie command, mirroring
// rescan_movie.
func (c *RadarrClient) RescanMovie(ctx context.Context, movieID int) error {
	return c.post(ctx, "/command", map[string]any{"name": "RescanMovie", "movieId": movieID}, nil)
}

func (c *RadarrClient) get(ctx context.Context, path string, out any) error {
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

func (c *RadarrClient) post(ctx context.Context, path string, body any, out any) error {
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
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func joinPath(dir, relative string) string {
	if dir == "" {
		return relative
	}
	if relative == "" {
		return dir
	}
	return strings.TrimSuffix(dir, "/") + "/" + strings.TrimPrefix(relative, "/")
}
