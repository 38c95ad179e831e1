// Package provider implements the provider registry and the provider
// manager: ordering, search fan-out, scoring, caching, blacklisting, and
// circuit-breaking of subtitle providers.
package provider

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/sublarr/sublarr/internal/breaker"
	"github.com/sublarr/sublarr/internal/model"
)

// Config is the manager's runtime configuration, sourced from the engine's
// config layer.
type Config struct {
	Enabled        []string
	Priority       []string
	AutoPrioritise bool
	CacheTTL       time.Duration
}

// Manager enumerates, orders, invokes, scores, caches, and blacklists
// providers.
type Manager struct {
	registry  *Registry
	breakers  *breaker.Registry
	cache     Cache
	blacklist Blacklist
	stats     StatsRecorder
	scoring   *ScoringCache
	limiters  *RateLimiters
	cfg       Config
	log       zerolog.Logger
}

// NewManager wires the manager's collaborators.
func NewManager(reg *Registry, breakers *breaker.Registry, cache Cache, blacklist Blacklist, stats StatsRecorder, scoring *ScoringCache, cfg Config, log zerolog.Logger) *Manager {
	return &Manager{
		registry:  reg,
		breakers:  breakers,
		cache:     cache,
		blacklist: blacklist,
		stats:     stats,
		scoring:   scoring,
		limiters:  NewRateLimiters(),
		cfg:       cfg,
		log:       log.With().Str("component", "provider_manager").Logger(),
	}
}

// order returns the providers to consult, in call order: enabled-only,
// static priority unless auto-prioritise is set, in which case the
// manager ranks by recent success rate (tie-break: configured order,
// then name).
func (m *Manager) order() []Provider {
	enabled := make(map[string]struct{}, len(m.cfg.Enabled))
	for _, name := range m.cfg.Enabled {
		enabled[name] = struct{}{}
	}

	var candidates []Provider
	for _, name := range m.cfg.Priority {
		if _, ok := enabled[name]; !ok {
			continue
		}
		if p, ok := m.registry.Get(name); ok {
			candidates = append(candidates, p)
		}
	}
	// any enabled provider missing from the priority list is appended in
	// registry (name) order, so nothing enabled is ever silently skipped.
	seen := make(map[string]struct{}, len(candidates))
	for _, p := range candidates {
		seen[p.Metadata().Name] = struct{}{}
	}
	for _, p := range m.registry.All() {
		name := p.Metadata().Name
		if _, ok := enabled[name]; !ok {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		candidates = append(candidates, p)
		seen[name] = struct{}{}
	}

	if !m.cfg.AutoPrioritise || m.stats == nil {
		return candidates
	}

	priorityRank := make(map[string]int, len(m.cfg.Priority))
	for i, name := range m.cfg.Priority {
		priorityRank[name] = i
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		ni, nj := candidates[i].Metadata().Name, candidates[j].Metadata().Name
		si, sj := m.stats.SuccessRate(ni), m.stats.SuccessRate(nj)
		if si != sj {
			return si > sj
		}
		ri, rj := priorityRank[ni], priorityRank[nj]
		if ri != rj {
			return ri < rj
		}
		return ni < nj
	})
	return candidates
}

// Search fans the query out across the ordered providers and returns
// results sorted by score descending, ties broken by provider priority
// then format rank. It returns no error: when nothing is found, or every
// provider fails or is skipped, the list is empty.
func (m *Manager) Search(ctx context.Context, query model.VideoQuery, format model.FormatFilter) []model.SubtitleResult {
	cacheKey := CacheKey(query, format)
	providers := m.order()
	priorityRank := make(map[string]int, len(providers))
	for i, p := range providers {
		priorityRank[p.Metadata().Name] = i
	}

	var kept []model.SubtitleResult
	category := query.Category()

	for _, p := range providers {
		name := p.Metadata().Name
		br := m.breakers.Get(name)

		// Breaker first, cache second: an open breaker silences a
		// provider entirely, warm cache entry or not.
		if !br.Allows() {
			m.log.Debug().Str("provider", name).Msg("circuit open, skipping provider")
			continue
		}

		var results []model.SubtitleResult
		if cached, ok := m.cache.Get(name, cacheKey); ok {
			results = cached
		} else {
			if err := m.limiters.Wait(ctx, name, p.Metadata().RateLimit); err != nil {
				continue
			}

			// Reserve the probe slot only once the call is definitely
			// happening, so every AllowRequest gets its paired record.
			if !br.AllowRequest() {
				continue
			}

			callCtx, cancel := context.WithTimeout(ctx, p.Metadata().Timeout)
			var searchErr error
			results, searchErr = m.safeSearch(callCtx, p, query)
			cancel()

			if searchErr != nil {
				br.RecordFailure()
				if m.stats != nil {
					m.stats.RecordAttempt(name, false)
				}
				m.log.Warn().Str("provider", name).Err(searchErr).Msg("provider search failed")
				m.cache.Set(name, cacheKey, nil)
				continue
			}
			br.RecordSuccess()
			if m.stats != nil {
				m.stats.RecordAttempt(name, true)
			}

			for i := range results {
				annotateReleaseGroupMatch(&results[i], query)
				results[i].Score = m.scoring.Score(results[i], category)
			}
			results = m.filterResults(results, query, format)
			m.cache.Set(name, cacheKey, results)
		}

		for _, r := range results {
			if m.blacklist != nil && m.blacklist.IsBlacklisted(r.ProviderName, r.SubtitleID) {
				continue
			}
			kept = append(kept, r)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		ri, rj := priorityRank[kept[i].ProviderName], priorityRank[kept[j].ProviderName]
		if ri != rj {
			return ri < rj
		}
		return model.FormatRank(kept[i].Format) > model.FormatRank(kept[j].Format)
	})
	return kept
}

// EstimateScore exposes the manager's configured scoring cache to
// collaborators outside this package (the translator engine's
// upgrade-delta comparison needs to score a synthetic result for a
// subtitle that already exists on disk using the same weight overrides
// live provider results are scored with).
func (m *Manager) EstimateScore(result model.SubtitleResult, category model.ItemType) int {
	return m.scoring.Score(result, category)
}

// safeSearch isolates a provider's Search call so a panic in third-party
// or plugin code cannot take down the overall search.
func (m *Manager) safeSearch(ctx context.Context, p Provider, query model.VideoQuery) (results []model.SubtitleResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Provider: p.Metadata().Name, Message: "panic during search"}
		}
	}()
	return p.Search(ctx, query)
}

func (m *Manager) filterResults(results []model.SubtitleResult, query model.VideoQuery, format model.FormatFilter) []model.SubtitleResult {
	out := results[:0:0]
	for _, r := range results {
		if !query.HasLanguage(r.Language) {
			continue
		}
		switch format {
		case model.FormatFilterASS:
			if !r.IsASS() {
				continue
			}
		case model.FormatFilterSRT:
			if r.Format != model.FormatSRT {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// DownloadBest searches, then walks results in score order downloading
// the first one that succeeds, blacklisting any that error out.
func (m *Manager) DownloadBest(ctx context.Context, query model.VideoQuery, format model.FormatFilter) (*model.SubtitleResult, []byte, error) {
	results := m.Search(ctx, query, format)

	for _, r := range results {
		if m.blacklist != nil && m.blacklist.IsBlacklisted(r.ProviderName, r.SubtitleID) {
			continue
		}
		p, ok := m.registry.Get(r.ProviderName)
		if !ok {
			continue
		}

		if err := m.limiters.Wait(ctx, r.ProviderName, p.Metadata().RateLimit); err != nil {
			continue
		}
		br := m.breakers.Get(r.ProviderName)
		if !br.AllowRequest() {
			continue
		}

		content, err := p.Download(ctx, &r)
		if err != nil {
			br.RecordFailure()
			if m.blacklist != nil {
				m.blacklist.Add(model.BlacklistEntry{
					ProviderName: r.ProviderName,
					SubtitleID:   r.SubtitleID,
					Reason:       err.Error(),
					CreatedAt:    time.Now(),
				})
			}
			continue
		}
		br.RecordSuccess()

		r.Content = content
		return &r, content, nil
	}
	return nil, nil, nil
}
