package translate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// BuildPrompt assembles the translation prompt: an optional glossary
// preamble (capped at 15 entries), then the source lines numbered 1..N
// so the model's response can be parsed back into order.
func BuildPrompt(lines []string, sourceLang, targetLang string, glossary []GlossaryEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate the following %d lines of subtitle dialogue from %s to %s. ", len(lines), sourceLang, targetLang)
	sb.WriteString("Preserve meaning and tone; keep each numbered line as a single output line in the same order, numbered the same way.\n")

	if len(glossary) > 0 {
		capped := glossary
		if len(capped) > 15 {
			capped = capped[:15]
		}
		sb.WriteString("glossary: ")
		parts := make([]string, 0, len(capped))
		for _, g := range capped {
			parts = append(parts, fmt.Sprintf("%s → %s", g.SourceTerm, g.TargetTerm))
		}
		sb.WriteString(strings.Join(parts, ", "))
		sb.WriteString("\n")
	}

	for i, line := range lines {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, line)
	}

	return sb.String()
}

var numberedLineRe = regexp.MustCompile(`^\s*(\d+)[:.]\s*(.*)$`)

// ParseResponse extracts expected numbered lines from a model response.
// Lines may be prefixed "N:" or "N.". Every non-numbered, non-blank line
// is appended to the preceding numbered entry (handling a model that
// wrapped a translation across multiple physical lines); the parse fails
// unless exactly expected entries result.
func ParseResponse(response string, expected int) ([]string, bool) {
	rawLines := strings.Split(strings.TrimSpace(response), "\n")

	type entry struct {
		num  int
		text string
	}
	var entries []entry

	for _, line := range rawLines {
		trimmed := strings.TrimRight(line, "\r")
		if m := numberedLineRe.FindStringSubmatch(trimmed); m != nil {
			num, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			entries = append(entries, entry{num: num, text: m[2]})
			continue
		}
		if strings.TrimSpace(trimmed) == "" {
			continue
		}
		if len(entries) > 0 {
			entries[len(entries)-1].text += "\n" + trimmed
		}
	}

	if len(entries) != expected {
		return nil, false
	}

	out := make([]string, expected)
	for _, e := range entries {
		idx := e.num - 1
		if idx < 0 || idx >= expected {
			return nil, false
		}
		out[idx] = strings.TrimSpace(e.text)
	}
	return out, true
}

// HasCJKHallucination reports whether text contains CJK ideographs,
// hiragana, katakana, or hangul — a sign the model answered in the wrong
// script when the requested target language isn't itself CJK.
func HasCJKHallucination(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}

// IsCJKTarget reports whether targetLang is itself a CJK language, in
// which case HasCJKHallucination's signal is expected, not an error.
func IsCJKTarget(targetLang string) bool {
	switch strings.ToLower(targetLang) {
	case "zh", "ja", "ko":
		return true
	default:
		return false
	}
}
