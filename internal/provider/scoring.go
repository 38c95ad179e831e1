package provider

import (
	"sync"
	"time"

	"github.com/sublarr/sublarr/internal/model"
)

// ScoringOverrides supplies DB-stored overrides merged over the defaults
// from model.DefaultWeights/DefaultFormatBonus, and the per-provider
// additive score modifier. internal/store backs this against the
// scoring_overrides / provider_modifiers tables.
type ScoringOverrides interface {
	WeightOverrides() model.ScoringWeights
	FormatBonusOverrides() model.FormatBonusTable
	ProviderModifiers() map[string]int
}

// ScoringCache refreshes its merged weight table every 60s and on any
// config-update event, rather than re-merging on every single result.
type ScoringCache struct {
	mu          sync.Mutex
	overrides   ScoringOverrides
	ttl         time.Duration
	lastRefresh time.Time

	weights    model.ScoringWeights
	formatBonus model.FormatBonusTable
	modifiers  map[string]int
}

// NewScoringCache builds a cache that asks overrides for fresh data at
// most once per ttl (default 60s).
func NewScoringCache(overrides ScoringOverrides, ttl time.Duration) *ScoringCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	c := &ScoringCache{overrides: overrides, ttl: ttl}
	c.refresh()
	return c
}

// Invalidate forces the next Score call to refresh immediately; the
// config-update subscriber calls this.
func (c *ScoringCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRefresh = time.Time{}
}

func (c *ScoringCache) refresh() {
	weights := model.DefaultWeights()
	bonus := model.DefaultFormatBonus()
	modifiers := map[string]int{}

	if c.overrides != nil {
		for cat, overrideTable := range c.overrides.WeightOverrides() {
			if weights[cat] == nil {
				weights[cat] = map[model.MatchKind]int{}
			}
			for kind, w := range overrideTable {
				weights[cat][kind] = w
			}
		}
		for cat, v := range c.overrides.FormatBonusOverrides() {
			bonus[cat] = v
		}
		for name, mod := range c.overrides.ProviderModifiers() {
			modifiers[name] = mod
		}
	}

	c.weights = weights
	c.formatBonus = bonus
	c.modifiers = modifiers
	c.lastRefresh = time.Now()
}

func (c *ScoringCache) snapshot() (model.ScoringWeights, model.FormatBonusTable, map[string]int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastRefresh) >= c.ttl {
		c.refresh()
	}
	return c.weights, c.formatBonus, c.modifiers
}

// Score computes a result's final score for the given category: sum of
// matched-kind weights, plus the ASS/SSA format bonus, plus the
// provider's additive modifier, plus the result's own pre-filled
// uploader-trust bonus.
func (c *ScoringCache) Score(result model.SubtitleResult, category model.ItemType) int {
	weights, bonus, modifiers := c.snapshot()

	total := 0
	for kind := range result.Matches {
		total += weights[category][kind]
	}
	if result.IsASS() {
		total += bonus[category]
	}
	total += modifiers[result.ProviderName]
	total += result.UploaderBonus

	return total
}
