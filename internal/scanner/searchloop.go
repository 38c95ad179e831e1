package scanner

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sublarr/sublarr/internal/config"
	"github.com/sublarr/sublarr/internal/model"
	"github.com/sublarr/sublarr/internal/store"
)

// Processor is the narrow slice of internal/translator.Engine the search
// loop needs, defined locally to avoid a direct package dependency (the
// same local-interface idiom the other managers already use).
type Processor interface {
	ProcessFile(ctx context.Context, filePath string, force bool, query model.VideoQuery, sourceLang, targetLang string) (outputPath string, stats map[string]any, err error)
}

// SearchLoop drains pending WantedItems strictly one at a time, driving
// each through the translator engine.
type SearchLoop struct {
	cfg       *config.Config
	store     *store.Store
	processor Processor
	emitter   Emitter
	log       zerolog.Logger
}

// NewSearchLoop builds a SearchLoop.
func NewSearchLoop(cfg *config.Config, st *store.Store, processor Processor, emitter Emitter, log zerolog.Logger) *SearchLoop {
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &SearchLoop{
		cfg: cfg, store: st, processor: processor, emitter: emitter,
		log: log.With().Str("component", "search_loop").Logger(),
	}
}

// RunBatch processes up to maxItems pending WantedItems, returning the
// count it attempted.
func (l *SearchLoop) RunBatch(ctx context.Context, maxItems int) (int, error) {
	items, err := l.store.WantedByStatus(model.WantedPending, maxItems)
	if err != nil {
		return 0, fmt.Errorf("scanner: search loop: list wanted: %w", err)
	}

	for _, item := range items {
		l.processOne(ctx, item)
	}
	return len(items), nil
}

func (l *SearchLoop) processOne(ctx context.Context, item model.WantedItem) {
	l.emitter.Emit("wanted_item_progress", map[string]any{"wanted_id": item.ID, "file_path": item.FilePath, "status": "searching"})

	query := l.buildQuery(item)
	profile := l.profileFor(item.TargetLanguage)

	_, _, err := l.processor.ProcessFile(ctx, item.FilePath, false, query, profile.SourceLanguage, item.TargetLanguage)
	if err != nil {
		l.handleFailure(item, err)
		return
	}

	if recErr := l.store.RecordWantedAttempt(item.ID, model.WantedCompleted, ""); recErr != nil {
		l.log.Error().Err(recErr).Int64("wanted_id", item.ID).Msg("failed to record wanted completion")
	}
	l.emitter.Emit("wanted_item_progress", map[string]any{"wanted_id": item.ID, "file_path": item.FilePath, "status": "completed"})
}

func (l *SearchLoop) handleFailure(item model.WantedItem, procErr error) {
	status := model.WantedPending
	if item.AttemptCount+1 >= l.cfg.Scheduler.MaxSearchAttempts {
		status = model.WantedFailed
	}
	if err := l.store.RecordWantedAttempt(item.ID, status, procErr.Error()); err != nil {
		l.log.Error().Err(err).Int64("wanted_id", item.ID).Msg("failed to record wanted attempt")
	}
	l.emitter.Emit("wanted_item_progress", map[string]any{"wanted_id": item.ID, "file_path": item.FilePath, "status": string(status)})
}

// buildQuery assembles a VideoQuery from a WantedItem's stored fields,
// rewriting the episode number to its AniDB absolute order when the
// item's language profile requests it and a mapping row exists
// WantedItem.SeriesID holds the TVDB id (see scanner.go).
func (l *SearchLoop) buildQuery(item model.WantedItem) model.VideoQuery {
	q := model.VideoQuery{
		FilePath:   item.FilePath,
		Languages:  []string{item.TargetLanguage},
		TVDBID:     item.SeriesID,
		IMDbID:     item.MovieID,
	}

	if item.Type == model.ItemMovie {
		q.Title = item.Title
		return q
	}

	q.SeriesTitle = item.Title
	season, episode := parseSeasonEpisode(item.SeasonEpisode)
	q.Season = season
	q.Episode = episode

	profile := l.profileFor(item.TargetLanguage)
	if profile.AniDBAbsoluteOrder && item.SeriesID != "" {
		if abs, ok := l.store.AniDBAbsoluteEpisode(item.SeriesID, season, episode); ok {
			q.AbsEpisode = abs
		}
	}
	return q
}

func (l *SearchLoop) profileFor(targetLang string) config.LanguageProfile {
	for _, p := range l.cfg.LanguageProfiles {
		if p.TargetLanguage == targetLang {
			return p
		}
	}
	return l.cfg.LanguageProfileFor("")
}

func parseSeasonEpisode(se string) (season, episode int) {
	fmt.Sscanf(se, "S%02dE%02d", &season, &episode)
	return
}
