package mediaserver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/sublarr/sublarr/internal/httpclient"
)

// Plex talks to a Plex Media Server, authenticating via the
// "X-Plex-Token" query parameter. Plex has no "refresh by path" endpoint
// analogous to Jellyfin's, so RefreshItem always performs a section-scan,
// effectively always taking the library-wide fallback.
type Plex struct {
	name    string
	baseURL string
	token   string
	client  *retryablehttp.Client
}

func NewPlex(name, baseURL, token string) *Plex {
	opts := httpclient.DefaultOptions()
	opts.Timeout = 15 * time.Second
	opts.MaxRetries = 3
	return &Plex{name: name, baseURL: baseURL, token: token, client: httpclient.New(opts)}
}

func (p *Plex) Name() string { return p.name }

func (p *Plex) request(ctx context.Context, method, path string, query url.Values) (*http.Response, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("X-Plex-Token", p.token)
	u := p.baseURL + path + "?" + query.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}
	return p.client.Do(req)
}

func (p *Plex) HealthCheck(ctx context.Context) (bool, string) {
	resp, err := p.request(ctx, http.MethodGet, "/identity", nil)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return true, "OK"
}

// RefreshItem always falls back to RefreshLibrary: Plex's "scan this path"
// endpoint operates per library section, not per file, so there is no
// narrower per-item call to attempt first.
func (p *Plex) RefreshItem(ctx context.Context, filePath string, itemType ItemType) error {
	return p.RefreshLibrary(ctx)
}

func (p *Plex) RefreshLibrary(ctx context.Context) error {
	resp, err := p.request(ctx, http.MethodGet, "/library/sections/all/refresh", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("plex: refresh library: HTTP %d", resp.StatusCode)
	}
	return nil
}
