// Package subfile parses, classifies, and reassembles ASS/SSA/SRT
// subtitle files for the translator engine. ASS dialogue lines split with
// SplitN(text, ",", 10) so commas inside the text field survive; SRT uses
// a small state machine over index/timing/text blocks.
package subfile

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/sublarr/sublarr/internal/model"
)

// Line is one subtitle event: a comment or a dialogue line, carrying the
// ASS-specific fields (Layer/Margin*/Effect) that ReassembleASS writes
// back, and ignored for SRT. The ASS Name field is not kept (it is written
// back empty), and margins are written back zero-padded to four digits.
type Line struct {
	Index      int
	StartTime  string
	EndTime    string
	Text       string
	Style      string
	OriginalID int
	Layer      int
	MarginL    int
	MarginR    int
	MarginV    int
	Effect     string
	Comment    bool
}

// File is a parsed subtitle document.
type File struct {
	Format       model.SubtitleFormat
	Header       string
	EventsHeader string
	Lines        []Line
}

// Parse dispatches on file extension.
func Parse(path string) (*File, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".srt"):
		return parseSRT(path)
	case strings.HasSuffix(lower, ".ssa"):
		sf, err := parseASS(path)
		if sf != nil {
			sf.Format = model.FormatSSA
		}
		return sf, err
	default:
		return parseASS(path)
	}
}

func parseASS(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("subfile: open %s: %w", path, err)
	}
	defer f.Close()

	sf := &File{Format: model.FormatASS}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var header strings.Builder
	var inEvents bool
	lineIndex := 0

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "[Events]") {
			inEvents = true
			header.WriteString(line + "\n")
			continue
		} else if strings.HasPrefix(line, "[") && inEvents {
			inEvents = false
		}

		if !inEvents {
			header.WriteString(line + "\n")
			continue
		}

		switch {
		case strings.HasPrefix(line, "Format:"):
			sf.EventsHeader = line
			header.WriteString(line + "\n")
		case strings.HasPrefix(line, "Dialogue:"), strings.HasPrefix(line, "Comment:"):
			body := line[strings.Index(line, ":")+1:]
			parts := strings.SplitN(body, ",", 10)
			if len(parts) < 10 {
				continue
			}
			l := Line{
				Index:      lineIndex,
				OriginalID: lineIndex,
				Comment:    strings.HasPrefix(line, "Comment:"),
				StartTime:  strings.TrimSpace(parts[1]),
				EndTime:    strings.TrimSpace(parts[2]),
				Style:      strings.TrimSpace(parts[3]),
				Text:       strings.TrimSpace(parts[9]),
			}
			if v, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
				l.Layer = v
			}
			if v, err := strconv.Atoi(strings.TrimSpace(parts[5])); err == nil {
				l.MarginL = v
			}
			if v, err := strconv.Atoi(strings.TrimSpace(parts[6])); err == nil {
				l.MarginR = v
			}
			if v, err := strconv.Atoi(strings.TrimSpace(parts[7])); err == nil {
				l.MarginV = v
			}
			l.Effect = strings.TrimSpace(parts[8])
			sf.Lines = append(sf.Lines, l)
			lineIndex++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("subfile: read %s: %w", path, err)
	}

	sf.Header = header.String()
	return sf, nil
}

var srtTimeRe = regexp.MustCompile(`(\d{2}:\d{2}:\d{2}[,.]\d{3})\s*-->\s*(\d{2}:\d{2}:\d{2}[,.]\d{3})`)

func parseSRT(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("subfile: open %s: %w", path, err)
	}
	defer f.Close()

	sf := &File{Format: model.FormatSRT}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var cur Line
	var text strings.Builder
	state := 0 // 0=index, 1=timing, 2=text

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch state {
		case 0:
			if line == "" {
				continue
			}
			if idx, err := strconv.Atoi(line); err == nil {
				cur = Line{Index: idx, OriginalID: idx}
				state = 1
			}
		case 1:
			if m := srtTimeRe.FindStringSubmatch(line); len(m) >= 3 {
				cur.StartTime, cur.EndTime = m[1], m[2]
				text.Reset()
				state = 2
			}
		case 2:
			if line == "" {
				cur.Text = strings.TrimSpace(text.String())
				if cur.Text != "" {
					sf.Lines = append(sf.Lines, cur)
				}
				state = 0
				continue
			}
			if text.Len() > 0 {
				text.WriteString("\n")
			}
			text.WriteString(line)
		}
	}
	if state == 2 && text.Len() > 0 {
		cur.Text = strings.TrimSpace(text.String())
		sf.Lines = append(sf.Lines, cur)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("subfile: read %s: %w", path, err)
	}

	return sf, nil
}

var (
	bracketRe    = regexp.MustCompile(`\[.*?\]`)
	parenRe      = regexp.MustCompile(`\(.*?\)`)
	speakerRe    = regexp.MustCompile(`(?m)^-?\s*[A-Z][A-Za-z.\s]*:\s*`)
	allCapsRe    = regexp.MustCompile(`[A-Z]{2,}[A-Z\s]*:\s*`)
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
)

// RemoveHearingImpairedTags strips bracketed/parenthetical annotations,
// music symbols, and speaker labels from a hearing-impaired subtitle
// line.
func RemoveHearingImpairedTags(text string) string {
	text = bracketRe.ReplaceAllString(text, "")
	text = parenRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "♪", "")
	text = strings.ReplaceAll(text, "♫", "")
	text = speakerRe.ReplaceAllString(text, "")
	text = allCapsRe.ReplaceAllString(text, "")
	text = multiSpaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// BatchLines chunks lines into groups of at most size, for the
// translation-backend manager's max-batch-size splitting.
func BatchLines(lines []Line, size int) [][]Line {
	if size <= 0 {
		size = len(lines)
	}
	var batches [][]Line
	for i := 0; i < len(lines); i += size {
		end := i + size
		if end > len(lines) {
			end = len(lines)
		}
		batches = append(batches, lines[i:end])
	}
	return batches
}

// ReassembleASS reconstructs an ASS/SSA document from the parsed header and
// the (possibly translated) line set, writing comment lines back with
// their parsed fields and text unchanged.
func ReassembleASS(header string, lines []Line) string {
	var sb strings.Builder
	sb.WriteString(header)
	for _, l := range lines {
		kind := "Dialogue"
		if l.Comment {
			kind = "Comment"
		}
		fmt.Fprintf(&sb, "%s: %d,%s,%s,%s,,%04d,%04d,%04d,%s,%s\n",
			kind, l.Layer, l.StartTime, l.EndTime, l.Style, l.MarginL, l.MarginR, l.MarginV, l.Effect, l.Text)
	}
	return sb.String()
}

// ReassembleSRT renders a flat line list back into numbered SRT blocks.
func ReassembleSRT(lines []Line) string {
	var sb strings.Builder
	for i, l := range lines {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n", i+1, l.StartTime, l.EndTime, l.Text)
	}
	return sb.String()
}
