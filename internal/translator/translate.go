package translator

import (
	"context"
	"fmt"
	"strings"

	"github.com/sublarr/sublarr/internal/model"
	"github.com/sublarr/sublarr/internal/subfile"
	"github.com/sublarr/sublarr/internal/translate"
)

// glossaryFor parses a language profile's "SRC=TGT" pairs into the
// translate package's entry type, capped at 15.
func glossaryFor(profile []string) []translate.GlossaryEntry {
	var out []translate.GlossaryEntry
	for _, raw := range profile {
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			continue
		}
		out = append(out, translate.GlossaryEntry{SourceTerm: strings.TrimSpace(parts[0]), TargetTerm: strings.TrimSpace(parts[1])})
		if len(out) == 15 {
			break
		}
	}
	return out
}

// translateFile reads a subtitle file, classifies its styles, translates
// every dialog line (signs/songs pass through untouched), reinserts
// override tags, and returns the rendered document ready to write.
func (e *Engine) translateFile(ctx context.Context, path, sourceLang, targetLang string, glossary []string) (string, model.SubtitleFormat, bool, error) {
	sf, err := subfile.Parse(path)
	if err != nil {
		return "", "", false, err
	}

	classes := subfile.ClassifyStyles(sf.Lines)

	type pending struct {
		lineIdx  int
		clean    string
		tags     []subfile.Tag
		cleanLen int
	}
	var toTranslate []pending
	var plainLines []string

	for i, l := range sf.Lines {
		if l.Comment || classes[l.Style] == subfile.ClassSigns {
			continue
		}
		clean, tags, cleanLen := subfile.ExtractTags(l.Text)
		toTranslate = append(toTranslate, pending{lineIdx: i, clean: clean, tags: tags, cleanLen: cleanLen})
		plainLines = append(plainLines, clean)
	}

	degraded := false
	if len(plainLines) > 0 {
		result, err := e.translate.Translate(ctx, plainLines, sourceLang, targetLang, glossaryFor(glossary))
		if err != nil {
			return "", "", false, err
		}
		if !result.Success {
			return "", "", false, fmt.Errorf("translator: backend reported failure: %s", result.Error)
		}
		degraded = result.Degraded

		// \N is an ASS/SSA-only escape; an SRT cue keeps its real
		// newlines, which ReassembleSRT writes back as screen lines.
		isASS := sf.Format == model.FormatASS || sf.Format == model.FormatSSA
		for i, p := range toTranslate {
			translated := result.Lines[i]
			translated = subfile.RestoreTags(translated, p.tags, p.cleanLen)
			if isASS {
				translated = subfile.FixLineBreaks(translated)
			}
			sf.Lines[p.lineIdx].Text = translated
		}
	}

	var rendered string
	switch sf.Format {
	case model.FormatSRT:
		rendered = subfile.ReassembleSRT(sf.Lines)
	default:
		rendered = subfile.ReassembleASS(sf.Header, sf.Lines)
	}

	return rendered, sf.Format, degraded, nil
}
