package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sublarr/sublarr/internal/breaker"
	"github.com/sublarr/sublarr/internal/model"
)

type stubProvider struct {
	name    string
	results []model.SubtitleResult
	err     error
	downloaded []byte
	downloadErr error
}

func (s *stubProvider) Metadata() Metadata {
	return Metadata{
		Name:               s.name,
		SupportedLanguages: map[string]struct{}{"en": {}, "de": {}},
		Timeout:            time.Second,
	}
}
func (s *stubProvider) Initialize(ctx context.Context) error { return nil }
func (s *stubProvider) Terminate(ctx context.Context) error  { return nil }
func (s *stubProvider) Search(ctx context.Context, q model.VideoQuery) ([]model.SubtitleResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}
func (s *stubProvider) Download(ctx context.Context, r *model.SubtitleResult) ([]byte, error) {
	return s.downloaded, s.downloadErr
}
func (s *stubProvider) HealthCheck(ctx context.Context) (bool, string) { return true, "" }

type memCache struct {
	data map[string][]model.SubtitleResult
}

func newMemCache() *memCache { return &memCache{data: map[string][]model.SubtitleResult{}} }
func (c *memCache) Get(provider, key string) ([]model.SubtitleResult, bool) {
	v, ok := c.data[provider+"|"+key]
	return v, ok
}
func (c *memCache) Set(provider, key string, results []model.SubtitleResult) {
	c.data[provider+"|"+key] = results
}

type memBlacklist struct {
	entries map[string]bool
}

func newMemBlacklist() *memBlacklist { return &memBlacklist{entries: map[string]bool{}} }
func (b *memBlacklist) IsBlacklisted(provider, id string) bool {
	return b.entries[provider+"|"+id]
}
func (b *memBlacklist) Add(e model.BlacklistEntry) {
	b.entries[e.ProviderName+"|"+e.SubtitleID] = true
}

type memStats struct {
	attempts map[string][2]int // [successes, total]
}

func newMemStats() *memStats { return &memStats{attempts: map[string][2]int{}} }
func (s *memStats) RecordAttempt(name string, success bool) {
	v := s.attempts[name]
	v[1]++
	if success {
		v[0]++
	}
	s.attempts[name] = v
}
func (s *memStats) SuccessRate(name string) float64 {
	v := s.attempts[name]
	if v[1] == 0 {
		return 0
	}
	return float64(v[0]) / float64(v[1])
}

func testQuery() model.VideoQuery {
	return model.VideoQuery{
		Title:    "Example Movie",
		Year:     2020,
		Languages: []string{"en"},
	}
}

func newTestManager(t *testing.T, providers ...*stubProvider) (*Manager, *memBlacklist) {
	t.Helper()
	reg := NewRegistry()
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		if err := reg.Register(p); err != nil {
			t.Fatalf("register: %v", err)
		}
		names = append(names, p.name)
	}

	bl := newMemBlacklist()
	mgr := NewManager(
		reg,
		breaker.NewRegistry(3, 100*time.Millisecond, zerolog.Nop()),
		newMemCache(),
		bl,
		newMemStats(),
		NewScoringCache(nil, time.Minute),
		Config{Enabled: names, Priority: names},
		zerolog.Nop(),
	)
	return mgr, bl
}

func TestSearchSortsByScoreDescending(t *testing.T) {
	low := &stubProvider{name: "low", results: []model.SubtitleResult{
		{ProviderName: "low", SubtitleID: "1", Language: "en", Format: model.FormatSRT,
			Matches: map[model.MatchKind]struct{}{model.MatchYear: {}}},
	}}
	high := &stubProvider{name: "high", results: []model.SubtitleResult{
		{ProviderName: "high", SubtitleID: "1", Language: "en", Format: model.FormatASS,
			Matches: map[model.MatchKind]struct{}{model.MatchHash: {}, model.MatchTitle: {}}},
	}}

	mgr, _ := newTestManager(t, low, high)
	results := mgr.Search(context.Background(), testQuery(), model.FormatFilterNone)

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ProviderName != "high" {
		t.Fatalf("got top result from %q, want %q", results[0].ProviderName, "high")
	}
}

func TestSearchFiltersByLanguage(t *testing.T) {
	p := &stubProvider{name: "p", results: []model.SubtitleResult{
		{ProviderName: "p", SubtitleID: "1", Language: "de", Format: model.FormatSRT},
	}}
	mgr, _ := newTestManager(t, p)
	results := mgr.Search(context.Background(), testQuery(), model.FormatFilterNone)
	if len(results) != 0 {
		t.Fatalf("expected language-mismatched result to be filtered out, got %d", len(results))
	}
}

func TestSearchSkipsBlacklistedResults(t *testing.T) {
	p := &stubProvider{name: "p", results: []model.SubtitleResult{
		{ProviderName: "p", SubtitleID: "1", Language: "en", Format: model.FormatSRT},
	}}
	mgr, bl := newTestManager(t, p)
	bl.Add(model.BlacklistEntry{ProviderName: "p", SubtitleID: "1"})

	results := mgr.Search(context.Background(), testQuery(), model.FormatFilterNone)
	if len(results) != 0 {
		t.Fatalf("expected blacklisted result to be filtered, got %d", len(results))
	}
}

func TestSearchSkipsProviderWithOpenCircuit(t *testing.T) {
	failing := &stubProvider{name: "failing", err: errors.New("boom")}
	ok := &stubProvider{name: "ok", results: []model.SubtitleResult{
		{ProviderName: "ok", SubtitleID: "1", Language: "en", Format: model.FormatSRT},
	}}

	reg := NewRegistry()
	reg.Register(failing)
	reg.Register(ok)

	breakers := breaker.NewRegistry(1, time.Hour, zerolog.Nop())
	mgr := NewManager(reg, breakers, newMemCache(), newMemBlacklist(), newMemStats(),
		NewScoringCache(nil, time.Minute),
		Config{Enabled: []string{"failing", "ok"}, Priority: []string{"failing", "ok"}},
		zerolog.Nop())

	// first call trips the breaker for "failing"
	mgr.Search(context.Background(), testQuery(), model.FormatFilterNone)
	if breakers.Get("failing").Status().State != breaker.StateOpen {
		t.Fatal("expected failing provider's breaker to be open after one failure (threshold 1)")
	}

	// second call must not call Search on "failing" again (the breaker gate answers false)
	results := mgr.Search(context.Background(), testQuery(), model.FormatFilterNone)
	if len(results) != 1 || results[0].ProviderName != "ok" {
		t.Fatalf("expected only ok's result, got %+v", results)
	}
}

func TestSearchIgnoresWarmCacheWhenCircuitOpen(t *testing.T) {
	p := &stubProvider{name: "p", results: []model.SubtitleResult{
		{ProviderName: "p", SubtitleID: "1", Language: "en", Format: model.FormatSRT},
	}}
	mgr, _ := newTestManager(t, p)

	// Warm the cache with a successful search.
	if got := mgr.Search(context.Background(), testQuery(), model.FormatFilterNone); len(got) != 1 {
		t.Fatalf("expected 1 result on the warming search, got %d", len(got))
	}

	// Open the breaker out of band: download failures share it with search.
	br := mgr.breakers.Get("p")
	for i := 0; i < 3; i++ {
		br.AllowRequest()
		br.RecordFailure()
	}
	if br.Status().State != breaker.StateOpen {
		t.Fatal("expected breaker open after threshold failures")
	}

	// An open breaker silences the provider even though its cache entry
	// is still fresh.
	if got := mgr.Search(context.Background(), testQuery(), model.FormatFilterNone); len(got) != 0 {
		t.Fatalf("open breaker must suppress cached results, got %d", len(got))
	}
}

func TestDownloadBestBlacklistsOnFailureAndContinues(t *testing.T) {
	bad := &stubProvider{name: "bad", results: []model.SubtitleResult{
		{ProviderName: "bad", SubtitleID: "1", Language: "en", Format: model.FormatASS,
			Matches: map[model.MatchKind]struct{}{model.MatchHash: {}}},
	}, downloadErr: errors.New("404")}
	good := &stubProvider{name: "good", results: []model.SubtitleResult{
		{ProviderName: "good", SubtitleID: "2", Language: "en", Format: model.FormatSRT},
	}, downloaded: []byte("subtitle content")}

	mgr, bl := newTestManager(t, bad, good)
	mgr.cfg.Priority = []string{"bad", "good"}

	result, content, err := mgr.DownloadBest(context.Background(), testQuery(), model.FormatFilterNone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || result.ProviderName != "good" {
		t.Fatalf("expected fallback to good provider, got %+v", result)
	}
	if string(content) != "subtitle content" {
		t.Fatalf("got content %q", content)
	}
	if !bl.IsBlacklisted("bad", "1") {
		t.Fatal("expected bad/1 to be blacklisted after a download error")
	}
}
