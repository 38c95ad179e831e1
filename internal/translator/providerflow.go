package translator

import (
	"context"
	"fmt"

	"github.com/sublarr/sublarr/internal/langtag"
	"github.com/sublarr/sublarr/internal/model"
)

// tryDirectDownload implements Case C2: search for T directly. An
// ASS/SSA hit is written as-is; an SRT hit is written as-is unless
// upgrade_prefer_ass steers the engine to keep looking (falling through
// to C3).
func (e *Engine) tryDirectDownload(ctx context.Context, filePath, dir, base string, query model.VideoQuery, targetLang string, stats map[string]any) (string, bool, error) {
	q := query
	q.Languages = []string{targetLang}

	best, content, err := e.providers.DownloadBest(ctx, q, model.FormatFilterNone)
	if err != nil || best == nil {
		return "", false, nil
	}

	if !accept(*best, targetLang, content) {
		return "", false, nil
	}

	if best.Format == model.FormatSRT && e.cfg.General.UpgradePreferASS {
		return "", false, nil // keep looking: C3 may still find a translate-to-ASS path
	}

	out := subtitlePath(dir, base, targetLang, string(best.Format))
	if err := atomicWrite(out, content); err != nil {
		return "", true, fmt.Errorf("translator: write download: %w", err)
	}
	e.recordDownload(best, out, "provider")
	stats["downloaded"] = true
	stats["format"] = string(best.Format)
	stats["source"] = "provider"
	e.emitter.Emit("download_complete", map[string]any{"file_path": filePath, "output_path": out, "score": best.Score})
	e.refreshMediaServers(ctx, filePath, query)
	return out, true, nil
}

// tryTranslateFromProviderSource implements Case C3: search for S, then
// translate S -> T and write.
func (e *Engine) tryTranslateFromProviderSource(ctx context.Context, filePath, dir, base string, query model.VideoQuery, sourceLang, targetLang string, stats map[string]any) (string, bool, error) {
	q := query
	q.Languages = []string{sourceLang}

	best, content, err := e.providers.DownloadBest(ctx, q, model.FormatFilterNone)
	if err != nil || best == nil {
		return "", false, nil
	}

	ext := "." + string(best.Format)
	tmp, err := writeTempSource(content, ext)
	if err != nil {
		return "", true, fmt.Errorf("translator: stage source for translation: %w", err)
	}
	defer removeTemp(tmp)

	profile := e.cfg.LanguageProfileFor(query.SeriesTitle)
	rendered, format, degraded, err := e.translateFile(ctx, tmp, sourceLang, targetLang, profile.Glossary)
	if err != nil {
		return "", true, fmt.Errorf("translator: translate provider source: %w", err)
	}

	out := subtitlePath(dir, base, targetLang, string(format))
	if err := atomicWrite(out, []byte(rendered)); err != nil {
		return "", true, fmt.Errorf("translator: write translated file: %w", err)
	}

	e.recordDownload(best, out, "provider-translated")
	stats["translated"] = true
	stats["format"] = string(format)
	stats["source"] = "provider-translated"
	stats["degraded"] = degraded
	e.emitter.Emit("translation_complete", map[string]any{"file_path": filePath, "output_path": out, "degraded": degraded})
	e.refreshMediaServers(ctx, filePath, query)
	return out, true, nil
}

// accept is the acceptance oracle for a downloaded subtitle: it
// must parse (non-empty content), match the requested language, and be
// one of the four known formats.
func accept(result model.SubtitleResult, targetLang string, content []byte) bool {
	if len(content) == 0 {
		return false
	}
	switch result.Format {
	case model.FormatASS, model.FormatSSA, model.FormatSRT, model.FormatVTT:
	default:
		return false
	}
	return result.Language == "" || langtag.Matches(targetLang, result.Language)
}
