package translator

import (
	"context"
	"fmt"

	"github.com/sublarr/sublarr/internal/langtag"
	"github.com/sublarr/sublarr/internal/model"
	"github.com/sublarr/sublarr/internal/transcoder"
)

// tryEmbeddedExtraction implements Case C1: probe the container for an
// embedded subtitle stream in the source language, extract it, translate
// it, and write the result next to the media file with the extracted
// format's extension.
func (e *Engine) tryEmbeddedExtraction(ctx context.Context, filePath, dir, base string, query model.VideoQuery, sourceLang, targetLang string, stats map[string]any) (string, bool, error) {
	streams, err := transcoder.Probe(ctx, filePath)
	if err != nil || len(streams) == 0 {
		return "", false, nil
	}

	var match transcoder.Stream
	found := false
	for _, s := range streams {
		if s.Language != "" && langtag.Matches(sourceLang, s.Language) {
			match = s
			found = true
			break
		}
	}
	if !found {
		return "", false, nil
	}

	ext := "." + match.Format
	tmp, err := writeTempPath(ext)
	if err != nil {
		return "", true, fmt.Errorf("translator: stage extraction target: %w", err)
	}
	defer removeTemp(tmp)

	if err := transcoder.Extract(ctx, filePath, match, tmp); err != nil {
		return "", true, fmt.Errorf("translator: extract embedded stream: %w", err)
	}

	profile := e.cfg.LanguageProfileFor("")
	rendered, format, degraded, err := e.translateFile(ctx, tmp, sourceLang, targetLang, profile.Glossary)
	if err != nil {
		return "", true, fmt.Errorf("translator: translate embedded stream: %w", err)
	}

	out := subtitlePath(dir, base, targetLang, string(format))
	if err := atomicWrite(out, []byte(rendered)); err != nil {
		return "", true, fmt.Errorf("translator: write embedded translation: %w", err)
	}

	stats["translated"] = true
	stats["format"] = string(format)
	stats["source"] = "embedded"
	stats["degraded"] = degraded
	e.emitter.Emit("translation_complete", map[string]any{"file_path": filePath, "output_path": out, "degraded": degraded, "source": "embedded"})
	e.refreshMediaServers(ctx, filePath, query)
	return out, true, nil
}

// tryTranscription implements Case C4: extract the source-language audio
// track and hand it to the whisper queue, then translate the resulting
// SRT. Only reachable when a Transcriber has been wired in.
func (e *Engine) tryTranscription(ctx context.Context, filePath, dir, base string, query model.VideoQuery, sourceLang, targetLang string, stats map[string]any) (string, bool, error) {
	wavPath, err := writeTempPath(".wav")
	if err != nil {
		return "", true, fmt.Errorf("translator: stage audio extraction: %w", err)
	}
	defer removeTemp(wavPath)

	if err := transcoder.ExtractAudio(ctx, filePath, sourceLang, wavPath); err != nil {
		return "", false, nil // no usable audio track: fall through to C5
	}

	srtPath, err := e.transcriber.TranscribeAudio(ctx, wavPath, sourceLang)
	if err != nil || srtPath == "" {
		return "", false, nil
	}
	defer removeTemp(srtPath)

	profile := e.cfg.LanguageProfileFor("")
	rendered, format, degraded, err := e.translateFile(ctx, srtPath, sourceLang, targetLang, profile.Glossary)
	if err != nil {
		return "", true, fmt.Errorf("translator: translate transcription: %w", err)
	}

	out := subtitlePath(dir, base, targetLang, string(format))
	if err := atomicWrite(out, []byte(rendered)); err != nil {
		return "", true, fmt.Errorf("translator: write transcribed translation: %w", err)
	}

	stats["translated"] = true
	stats["format"] = string(format)
	stats["source"] = "whisper"
	stats["degraded"] = degraded
	e.emitter.Emit("translation_complete", map[string]any{"file_path": filePath, "output_path": out, "degraded": degraded, "source": "whisper"})
	e.refreshMediaServers(ctx, filePath, query)
	return out, true, nil
}

func writeTempPath(ext string) (string, error) {
	return writeTempSource(nil, ext)
}
