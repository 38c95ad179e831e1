package mediaserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/sublarr/sublarr/internal/httpclient"
)

// Jellyfin talks to a Jellyfin/Emby server over its REST API,
// authenticating via the "X-Emby-Token" header.
type Jellyfin struct {
	name    string
	baseURL string
	token   string
	client  *retryablehttp.Client
}

// NewJellyfin builds a Jellyfin backend from its configured base URL and
// API token.
func NewJellyfin(name, baseURL, token string) *Jellyfin {
	opts := httpclient.DefaultOptions()
	opts.Timeout = 15 * time.Second
	opts.MaxRetries = 3
	return &Jellyfin{name: name, baseURL: baseURL, token: token, client: httpclient.New(opts)}
}

func (j *Jellyfin) Name() string { return j.name }

func (j *Jellyfin) request(ctx context.Context, method, path string, query url.Values) (*http.Response, error) {
	u := j.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Emby-Token", j.token)
	return j.client.Do(req)
}

func (j *Jellyfin) HealthCheck(ctx context.Context) (bool, string) {
	resp, err := j.request(ctx, http.MethodGet, "/System/Ping", nil)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return true, "OK"
}

type jellyfinSearchResult struct {
	Items []struct {
		ID string `json:"Id"`
	} `json:"Items"`
}

// RefreshItem looks the item up by path via Jellyfin's "Items" query
// endpoint, then triggers a metadata refresh on the matched id, falling
// back to a library-wide refresh when the path matches nothing.
func (j *Jellyfin) RefreshItem(ctx context.Context, filePath string, itemType ItemType) error {
	resp, err := j.request(ctx, http.MethodGet, "/Items", url.Values{"path": {filePath}, "recursive": {"true"}})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var parsed jellyfinSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil || len(parsed.Items) == 0 {
		return j.RefreshLibrary(ctx)
	}

	refresh, err := j.request(ctx, http.MethodPost, "/Items/"+parsed.Items[0].ID+"/Refresh", url.Values{"Recursive": {"false"}})
	if err != nil {
		return err
	}
	defer refresh.Body.Close()
	if refresh.StatusCode >= 300 {
		return fmt.Errorf("jellyfin: refresh item: HTTP %d", refresh.StatusCode)
	}
	return nil
}

func (j *Jellyfin) RefreshLibrary(ctx context.Context) error {
	resp, err := j.request(ctx, http.MethodPost, "/Library/Refresh", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("jellyfin: refresh library: HTTP %d", resp.StatusCode)
	}
	return nil
}
