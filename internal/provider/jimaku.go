package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/sublarr/sublarr/internal/httpclient"
	"github.com/sublarr/sublarr/internal/model"
)

const jimakuAPIBase = "https://jimaku.cc/api"

// Jimaku is the anime-focused subtitle provider: it looks an anime up
// by AniList id (falling back to a name search), lists that entry's
// files, and filters to Japanese/English subtitle files, unpacking a
// ZIP/RAR bundle on download.
type Jimaku struct {
	APIKey string
	client *retryablehttp.Client
}

func NewJimaku(fields map[string]string) *Jimaku {
	return &Jimaku{APIKey: fields["api_key"]}
}

func (p *Jimaku) Metadata() Metadata {
	return Metadata{
		Name:               "jimaku",
		SupportedLanguages: map[string]struct{}{"ja": {}, "en": {}},
		ConfigFields: []ConfigField{
			{Key: "api_key", Label: "API key", Type: FieldPassword, Required: true},
		},
		RateLimit:  RateLimit{MaxRequests: 60, Window: time.Minute},
		Timeout:    20 * time.Second,
		MaxRetries: 2,
	}
}

func (p *Jimaku) Initialize(ctx context.Context) error {
	if p.APIKey == "" {
		return nil
	}
	opts := httpclient.DefaultOptions()
	opts.MaxRetries = 2
	opts.Timeout = 20 * time.Second
	p.client = httpclient.New(opts)
	return nil
}

func (p *Jimaku) Terminate(ctx context.Context) error { return nil }

func (p *Jimaku) do(ctx context.Context, method, endpoint string, query url.Values) ([]byte, int, error) {
	u := jimakuAPIBase + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func (p *Jimaku) HealthCheck(ctx context.Context) (bool, string) {
	if p.APIKey == "" {
		return false, "API key not configured"
	}
	if p.client == nil {
		return false, "not initialized"
	}
	_, status, err := p.do(ctx, http.MethodGet, "/entries/search", url.Values{"query": {"test"}})
	if err != nil {
		return false, err.Error()
	}
	switch status {
	case http.StatusOK:
		return true, "OK"
	case http.StatusUnauthorized:
		return false, "invalid API key"
	default:
		return false, fmt.Sprintf("HTTP %d", status)
	}
}

type jimakuEntry struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	AniListID int    `json:"anilist_id"`
}

type jimakuFile struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Search returns unsorted results, restricted to the query's language
// set, each tagged with the match kinds Jimaku can confirm.
func (p *Jimaku) Search(ctx context.Context, query model.VideoQuery) ([]model.SubtitleResult, error) {
	if p.APIKey == "" || p.client == nil {
		return nil, nil
	}

	var entries []jimakuEntry
	if query.AniListID != "" {
		body, status, err := p.do(ctx, http.MethodGet, "/entries/search", url.Values{"anilist_id": {query.AniListID}})
		if err != nil {
			return nil, &Error{Provider: "jimaku", Message: err.Error()}
		}
		if status == http.StatusOK {
			json.Unmarshal(body, &entries)
		}
	}
	if len(entries) == 0 {
		searchName := query.SeriesTitle
		if searchName == "" {
			searchName = query.Title
		}
		if searchName == "" {
			return nil, nil
		}
		body, status, err := p.do(ctx, http.MethodGet, "/entries/search", url.Values{"query": {searchName}})
		if err != nil {
			return nil, &Error{Provider: "jimaku", Message: err.Error()}
		}
		if status != http.StatusOK {
			return nil, nil
		}
		json.Unmarshal(body, &entries)
	}

	if len(entries) > 5 {
		entries = entries[:5]
	}

	var results []model.SubtitleResult
	for _, entry := range entries {
		body, status, err := p.do(ctx, http.MethodGet, fmt.Sprintf("/entries/%d/files", entry.ID), nil)
		if err != nil || status != http.StatusOK {
			continue
		}
		var files []jimakuFile
		json.Unmarshal(body, &files)

		for _, f := range files {
			ext := strings.ToLower(path.Ext(f.Name))
			format := extToFormat(ext)
			if format == model.FormatUnknown && !IsArchive(f.Name) {
				continue
			}

			lang := jimakuDetectLanguage(f.Name)
			if !query.HasLanguage(lang) {
				continue
			}

			matches := map[model.MatchKind]struct{}{}
			if query.SeriesTitle != "" && strings.Contains(strings.ToLower(entry.Name), strings.ToLower(query.SeriesTitle)) {
				matches[model.MatchSeries] = struct{}{}
			}
			if query.AniListID != "" && strconv.Itoa(entry.AniListID) == query.AniListID {
				matches[model.MatchSeries] = struct{}{}
			}

			results = append(results, model.SubtitleResult{
				ProviderName: "jimaku",
				SubtitleID:   fmt.Sprintf("%d:%s", entry.ID, f.Name),
				Language:     lang,
				Format:       format,
				Filename:     f.Name,
				DownloadURL:  f.URL,
				ReleaseInfo:  entry.Name,
				Matches:      matches,
			})
		}
	}
	return results, nil
}

// jimakuDetectLanguage guesses a file's language from its name, since
// Jimaku's file listing carries no explicit language tag — only a Japanese
// default with an "[EN]"-style marker for the rarer English track.
func jimakuDetectLanguage(filename string) string {
	lower := strings.ToLower(filename)
	if strings.Contains(lower, "[en]") || strings.Contains(lower, ".en.") || strings.Contains(lower, "_en_") {
		return "en"
	}
	return "ja"
}

func (p *Jimaku) Download(ctx context.Context, result *model.SubtitleResult) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, result.DownloadURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if IsArchive(result.Filename) {
		content, filename, format, err := ExtractArchive(body, result.Filename)
		if err != nil {
			return nil, err
		}
		result.Filename = filename
		result.Format = format
		return content, nil
	}
	return body, nil
}
