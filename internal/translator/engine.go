// Package translator implements the per-file translation engine: given
// a media file path and a target language, it walks a fixed decision
// tree (skip / upgrade / translate / extract) to land on exactly one
// outcome, always updating daily statistics before returning regardless
// of success, skip, or failure.
//
// The style-classification and override-tag handling live in this
// package's collaborator, internal/subfile.
package translator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sublarr/sublarr/internal/config"
	"github.com/sublarr/sublarr/internal/langtag"
	"github.com/sublarr/sublarr/internal/mediaserver"
	"github.com/sublarr/sublarr/internal/model"
	"github.com/sublarr/sublarr/internal/provider"
	"github.com/sublarr/sublarr/internal/store"
	"github.com/sublarr/sublarr/internal/translate"
)

// Emitter is the narrow slice of the event bus the engine needs, defined
// locally (matching internal/jobqueue's Emitter) to keep the engine
// decoupled from internal/events.
type Emitter interface {
	Emit(name string, payload map[string]any)
}

type nopEmitter struct{}

func (nopEmitter) Emit(string, map[string]any) {}

// Transcriber is the whisper transcription queue's contract, kept
// minimal so the engine compiles and degrades gracefully (Case C4 is
// simply unavailable, falling through to C5) when no transcription
// queue is configured.
type Transcriber interface {
	TranscribeAudio(ctx context.Context, audioPath, languageHint string) (srtPath string, err error)
}

// Engine runs the translator decision tree for one file at a time.
type Engine struct {
	cfg          *config.Config
	providers    *provider.Manager
	translate    *translate.Manager
	mediaservers *mediaserver.Manager
	store        *store.Store
	transcriber  Transcriber
	emitter      Emitter
	log          zerolog.Logger
}

// New builds an Engine. transcriber may be nil when transcription is
// disabled.
func New(cfg *config.Config, providers *provider.Manager, translateMgr *translate.Manager, mediaservers *mediaserver.Manager, st *store.Store, transcriber Transcriber, emitter Emitter, log zerolog.Logger) *Engine {
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &Engine{
		cfg:          cfg,
		providers:    providers,
		translate:    translateMgr,
		mediaservers: mediaservers,
		store:        st,
		transcriber:  transcriber,
		emitter:      emitter,
		log:          log.With().Str("component", "translator_engine").Logger(),
	}
}

// exts tried when looking for an already-present subtitle, highest ranked
// (ASS) first.
var assExts = []string{"ass", "ssa"}

// ProcessFile runs the full decision tree for one file, always
// recording a daily-stats row before returning (success, skip, or
// failure).
func (e *Engine) ProcessFile(ctx context.Context, filePath string, force bool, query model.VideoQuery, sourceLang, targetLang string) (outputPath string, stats map[string]any, err error) {
	stats = map[string]any{}
	defer func() {
		e.recordOutcome(stats, err)
	}()

	if _, statErr := os.Stat(filePath); statErr != nil {
		return "", nil, fmt.Errorf("translator: media file not found: %w", statErr)
	}

	dir := filepath.Dir(filePath)
	base := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))

	// Case A: target-language ASS/SSA already present.
	if assPath, ok := findSubtitle(dir, base, targetLang, assExts); ok && !force {
		stats["skipped"] = true
		stats["reason"] = "target-ass-present"
		e.emitter.Emit("pipeline_skipped", map[string]any{"file_path": filePath, "reason": "target-ass-present"})
		return assPath, stats, nil
	}

	// Case B: target-language SRT present.
	if srtPath, ok := findSubtitle(dir, base, targetLang, []string{"srt"}); ok && !force {
		return e.handleUpgrade(ctx, filePath, srtPath, query, targetLang, stats)
	}

	return e.handleNoTargetSubtitle(ctx, filePath, dir, base, query, sourceLang, targetLang, stats)
}

// handleUpgrade implements Case B: B1 searches for a higher-scoring ASS
// replacement when upgrades are enabled; B2 is a no-op skip otherwise.
func (e *Engine) handleUpgrade(ctx context.Context, filePath, existingSRT string, query model.VideoQuery, targetLang string, stats map[string]any) (string, map[string]any, error) {
	if !e.cfg.General.UpgradesEnabled {
		stats["skipped"] = true
		stats["reason"] = "upgrade-disabled"
		e.emitter.Emit("pipeline_skipped", map[string]any{"file_path": filePath, "reason": "upgrade-disabled"})
		return existingSRT, stats, nil
	}

	q := query
	q.Languages = []string{targetLang}
	best, content, err := e.providers.DownloadBest(ctx, q, model.FormatFilterASS)
	if err != nil || best == nil {
		stats["skipped"] = true
		stats["reason"] = "no-upgrade-available"
		return existingSRT, stats, nil
	}

	// The existing on-disk SRT was never scored by a live search, so its
	// estimated current score uses a conservative match set: series and
	// episode identity only, no format bonus since it is SRT.
	currentEstimate := e.providers.EstimateScore(model.SubtitleResult{
		Format:  model.FormatSRT,
		Matches: map[model.MatchKind]struct{}{model.MatchSeries: {}, model.MatchEpisode: {}},
	}, query.Category())

	delta := e.cfg.General.UpgradeScoreDelta
	if best.Score-currentEstimate < delta {
		stats["skipped"] = true
		stats["reason"] = "upgrade-below-delta"
		return existingSRT, stats, nil
	}

	upgradePath := subtitlePath(filepath.Dir(filePath), strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath)), targetLang, string(best.Format))
	if err := atomicWrite(upgradePath, content); err != nil {
		return "", stats, fmt.Errorf("translator: write upgrade: %w", err)
	}

	e.recordDownload(best, upgradePath, "upgrade")
	stats["upgraded"] = true
	stats["format"] = string(best.Format)
	stats["source"] = "upgrade"
	e.emitter.Emit("upgrade_complete", map[string]any{"file_path": filePath, "output_path": upgradePath, "score": best.Score})
	e.refreshMediaServers(ctx, filePath, query)
	return upgradePath, stats, nil
}

// handleNoTargetSubtitle implements Case C's five sub-cases in order.
func (e *Engine) handleNoTargetSubtitle(ctx context.Context, filePath, dir, base string, query model.VideoQuery, sourceLang, targetLang string, stats map[string]any) (string, map[string]any, error) {
	// C1: embedded subtitle stream in the source language.
	if e.cfg.General.UseEmbeddedSubs {
		if out, ok, err := e.tryEmbeddedExtraction(ctx, filePath, dir, base, query, sourceLang, targetLang, stats); ok {
			return out, stats, err
		}
	}

	// C2: provider search for T, format unrestricted.
	if out, ok, err := e.tryDirectDownload(ctx, filePath, dir, base, query, targetLang, stats); ok {
		return out, stats, err
	}

	// C3: provider search for S, translate S -> T.
	if out, ok, err := e.tryTranslateFromProviderSource(ctx, filePath, dir, base, query, sourceLang, targetLang, stats); ok {
		return out, stats, err
	}

	// C4: whisper transcription fallback.
	if e.transcriber != nil {
		if out, ok, err := e.tryTranscription(ctx, filePath, dir, base, query, sourceLang, targetLang, stats); ok {
			return out, stats, err
		}
	}

	// C5: exhausted every source.
	stats["success"] = false
	stats["reason"] = "no-source-available"
	return "", stats, fmt.Errorf("translator: no-source-available")
}

func (e *Engine) recordDownload(r *model.SubtitleResult, path, source string) {
	if e.store == nil {
		return
	}
	_ = e.store.RecordDownload(store.SubtitleDownload{
		ProviderName: r.ProviderName,
		SubtitleID:   r.SubtitleID,
		FilePath:     path,
		Language:     r.Language,
		Format:       string(r.Format),
		Score:        r.Score,
		Source:       source,
		DownloadedAt: time.Now().UTC(),
	})
}

func (e *Engine) refreshMediaServers(ctx context.Context, filePath string, query model.VideoQuery) {
	if e.mediaservers == nil {
		return
	}
	itemType := mediaserver.ItemEpisode
	if query.IsMovie() {
		itemType = mediaserver.ItemMovie
	}
	e.mediaservers.RefreshAll(ctx, filePath, itemType)
}

func (e *Engine) recordOutcome(stats map[string]any, err error) {
	if e.store == nil {
		return
	}
	metric := "translated"
	switch {
	case err != nil:
		metric = "failed"
	case stats["skipped"] == true:
		metric = "skipped"
	case stats["upgraded"] == true:
		metric = "upgraded"
	}
	date := time.Now().UTC().Format("2006-01-02")
	_ = e.store.IncrDailyStat(date, metric, 1)
}

// findSubtitle looks for <dir>/<base>.<langTag>.<ext> across every member
// of targetLang's equivalence set and every extension in exts, returning
// the first match.
func findSubtitle(dir, base, targetLang string, exts []string) (string, bool) {
	for _, ext := range exts {
		for tag := range langtag.Equivalents(targetLang) {
			candidate := filepath.Join(dir, fmt.Sprintf("%s.%s.%s", base, tag, ext))
			if _, err := os.Stat(candidate); err == nil {
				return candidate, true
			}
		}
	}
	return "", false
}

func subtitlePath(dir, base, lang, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%s.%s", base, lang, ext))
}

// atomicWrite writes data to a sibling temp file in the target's
// directory, then renames it into place. The temp file is removed on
// any failure.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*"+filepath.Ext(path))
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
