package store

import "github.com/sublarr/sublarr/internal/model"

// WeightOverrides implements provider.ScoringOverrides, reading the DB
// override table that is merged over model.DefaultWeights.
func (s *Store) WeightOverrides() model.ScoringWeights {
	out := model.ScoringWeights{}
	rows, err := s.db.Query(`SELECT category, match_kind, weight FROM scoring_overrides`)
	if err != nil {
		return out
	}
	defer rows.Close()

	for rows.Next() {
		var category, kind string
		var weight int
		if err := rows.Scan(&category, &kind, &weight); err != nil {
			continue
		}
		cat := model.ItemType(category)
		if out[cat] == nil {
			out[cat] = map[model.MatchKind]int{}
		}
		out[cat][model.MatchKind(kind)] = weight
	}
	return out
}

// FormatBonusOverrides implements provider.ScoringOverrides.
func (s *Store) FormatBonusOverrides() model.FormatBonusTable {
	out := model.FormatBonusTable{}
	rows, err := s.db.Query(`SELECT category, bonus FROM format_bonus_overrides`)
	if err != nil {
		return out
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var bonus int
		if err := rows.Scan(&category, &bonus); err != nil {
			continue
		}
		out[model.ItemType(category)] = bonus
	}
	return out
}

// ProviderModifiers implements provider.ScoringOverrides.
func (s *Store) ProviderModifiers() map[string]int {
	out := map[string]int{}
	rows, err := s.db.Query(`SELECT provider_name, modifier FROM provider_modifiers`)
	if err != nil {
		return out
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var mod int
		if err := rows.Scan(&name, &mod); err != nil {
			continue
		}
		out[name] = mod
	}
	return out
}

// SetWeightOverride upserts one (category, match_kind) -> weight row,
// used by the admin surface.
func (s *Store) SetWeightOverride(category model.ItemType, kind model.MatchKind, weight int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db.Exec(
		`INSERT INTO scoring_overrides (category, match_kind, weight) VALUES (?, ?, ?)
		 ON CONFLICT(category, match_kind) DO UPDATE SET weight = excluded.weight`,
		string(category), string(kind), weight,
	)
}

// SetProviderModifier upserts a provider's additive score modifier.
func (s *Store) SetProviderModifier(providerName string, modifier int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db.Exec(
		`INSERT INTO provider_modifiers (provider_name, modifier) VALUES (?, ?)
		 ON CONFLICT(provider_name) DO UPDATE SET modifier = excluded.modifier`,
		providerName, modifier,
	)
}
