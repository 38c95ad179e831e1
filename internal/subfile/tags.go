package subfile

import (
	"regexp"
	"strings"
)

var overrideTagRe = regexp.MustCompile(`\{[^}]*\}`)

// Tag is one ASS override-tag block together with the byte offset (into
// the clean, tag-stripped text) it was found at.
type Tag struct {
	Pos  int
	Text string
}

// ExtractTags pulls every {...} override block out of text, returning the
// clean text a translation backend should see plus enough positional
// information to reinsert every tag afterwards.
func ExtractTags(text string) (clean string, tags []Tag, cleanLen int) {
	if !overrideTagRe.MatchString(text) {
		return text, nil, len(text)
	}

	matches := overrideTagRe.FindAllStringIndex(text, -1)
	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(text[last:m[0]])
		tags = append(tags, Tag{Pos: sb.Len(), Text: text[m[0]:m[1]]})
		last = m[1]
	}
	sb.WriteString(text[last:])

	clean = sb.String()
	return clean, tags, len(clean)
}

// RestoreTags reinserts tags into translated (tag-free) text. A tag
// recorded at clean-text position 0 is pinned to the front; every other
// tag is placed proportionally to its original position scaled by
// translated/original length, then snapped to the nearest word boundary
// within ±3 characters so a tag never lands mid-word. Insertion points
// are monotonic: no tag is ever placed before the previous one.
func RestoreTags(translated string, tags []Tag, originalCleanLen int) string {
	if len(tags) == 0 {
		return translated
	}

	sorted := make([]Tag, len(tags))
	copy(sorted, tags)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].Pos > sorted[j].Pos; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}

	transLen := len(translated)
	origLen := originalCleanLen
	if origLen == 0 {
		origLen = transLen
	}

	var sb strings.Builder
	textPos := 0

	for _, tag := range sorted {
		var insertPos int
		switch {
		case tag.Pos == 0:
			insertPos = 0
		case origLen > 0:
			ratio := float64(tag.Pos) / float64(origLen)
			insertPos = int(ratio * float64(transLen))
			insertPos = snapToWordBoundary(translated, insertPos, transLen)
		default:
			insertPos = minInt(tag.Pos, transLen)
		}

		if insertPos < textPos {
			insertPos = textPos
		}
		if insertPos > transLen {
			insertPos = transLen
		}

		if insertPos > textPos {
			sb.WriteString(translated[textPos:insertPos])
			textPos = insertPos
		}
		sb.WriteString(tag.Text)
	}

	if textPos < transLen {
		sb.WriteString(translated[textPos:])
	}

	return sb.String()
}

func snapToWordBoundary(text string, pos, maxLen int) int {
	for d := 0; d <= 3; d++ {
		for _, check := range []int{pos - d, pos + d} {
			if check < 0 || check > maxLen {
				continue
			}
			if check == maxLen || text[check] == ' ' || text[check] == '\\' {
				return check
			}
		}
	}
	return pos
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

var whitespaceRunRe = regexp.MustCompile(`  +`)

// FixLineBreaks normalises line breaks a translation backend may have
// mangled back to the ASS hard-break \N, then collapses whitespace runs.
//
// The original Python implementation applies two passes: an unconditional
// literal-newline -> \N replacement, then a negative-lookbehind regex
// `(?<!\\)\\n` to catch a literal "\n" the model emitted as plain text
// without also clobbering a "\\N" it emitted correctly. Go's RE2 engine
// cannot express that lookbehind, so the second pass is done with a manual
// scan: a "\n" two-character sequence is rewritten to "\N" only when it is
// not already preceded by a backslash (i.e. not already part of "\\n").
func FixLineBreaks(text string) string {
	text = strings.ReplaceAll(text, "\n", `\N`)
	text = fixBackslashN(text)
	text = whitespaceRunRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func fixBackslashN(text string) string {
	var sb strings.Builder
	for i := 0; i < len(text); i++ {
		if text[i] == '\\' && i+1 < len(text) && text[i+1] == 'n' {
			precededByBackslash := i > 0 && text[i-1] == '\\'
			if !precededByBackslash {
				sb.WriteString(`\N`)
				i++
				continue
			}
		}
		sb.WriteByte(text[i])
	}
	return sb.String()
}
