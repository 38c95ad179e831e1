// Package transcoder wraps ffprobe/ffmpeg to probe and extract embedded
// subtitle streams from a video container, and to pick the best stream
// when more than one candidate exists.
package transcoder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sublarr/sublarr/internal/langtag"
)

// BinPath is the directory to look for ffprobe/ffmpeg binaries in before
// falling back to the system PATH.
var BinPath = "./bin"

// SetBinPath overrides BinPath, normally read from config.General.BinPath.
func SetBinPath(path string) {
	BinPath = path
}

func binaryPath(name string) string {
	candidate := filepath.Join(BinPath, name)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	return name
}

// Stream describes one subtitle stream reported by ffprobe.
type Stream struct {
	SubIndex    int    // index among subtitle streams only, for ffmpeg's 0:s:N map
	StreamIndex int    // absolute ffprobe stream index
	Format      string // "ass" or "srt"
	Language    string
	Title       string
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	Index     int               `json:"index"`
	CodecType string            `json:"codec_type"`
	CodecName string            `json:"codec_name"`
	Tags      map[string]string `json:"tags"`
}

// Probe runs ffprobe against a media container and returns every ASS/SSA
// or SubRip subtitle stream it reports, in container order; streams in
// other subtitle codecs are left out but still count toward SubIndex.
func Probe(ctx context.Context, path string) ([]Stream, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, binaryPath("ffprobe"),
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "s",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("transcoder: ffprobe failed: %s", string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("transcoder: ffprobe: %w", err)
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("transcoder: ffprobe returned invalid JSON: %w", err)
	}

	var streams []Stream
	subIndex := 0
	for _, s := range parsed.Streams {
		if s.CodecType != "subtitle" {
			continue
		}
		codec := strings.ToLower(s.CodecName)
		var format string
		switch codec {
		case "ass", "ssa":
			format = "ass"
		case "subrip", "srt":
			format = "srt"
		default:
			subIndex++
			continue
		}
		streams = append(streams, Stream{
			SubIndex:    subIndex,
			StreamIndex: s.Index,
			Format:      format,
			Language:    strings.ToLower(s.Tags["language"]),
			Title:       strings.ToLower(s.Tags["title"]),
		})
		subIndex++
	}
	return streams, nil
}

// SelectBest applies the seven-tier preference order for picking a
// subtitle stream to translate from, preferring a clean ASS "Full" track
// over a signs-only one, a stream in targetOriginLang over other
// languages, any non-German stream over a German one, and ASS over SRT.
// Returns false when there is no ASS stream and every SRT stream (if any)
// is German.
func SelectBest(streams []Stream, targetOriginLang string) (Stream, bool) {
	var ass, srt []Stream
	for _, s := range streams {
		switch s.Format {
		case "ass":
			ass = append(ass, s)
		case "srt":
			srt = append(srt, s)
		}
	}

	isSignsTitle := func(title string) bool {
		return strings.Contains(title, "sign") || strings.Contains(title, "song")
	}

	if len(ass) > 0 {
		for _, s := range ass {
			if strings.Contains(s.Title, "full") && !isSignsTitle(s.Title) {
				return s, true
			}
		}

		var origLang []Stream
		for _, s := range ass {
			if s.Language != "" && langtag.Matches(targetOriginLang, s.Language) {
				origLang = append(origLang, s)
			}
		}
		for _, s := range origLang {
			if !isSignsTitle(s.Title) {
				return s, true
			}
		}
		if len(origLang) > 0 {
			return origLang[0], true
		}

		for _, s := range ass {
			if !langtag.Matches("de", s.Language) && !isSignsTitle(s.Title) {
				return s, true
			}
		}
	}

	if len(srt) > 0 {
		for _, s := range srt {
			if s.Language != "" && langtag.Matches(targetOriginLang, s.Language) {
				return s, true
			}
		}
		for _, s := range srt {
			if !langtag.Matches("de", s.Language) {
				return s, true
			}
		}
	}

	if len(ass) > 0 {
		return ass[0], true
	}

	return Stream{}, false
}

// ExtractAudio pulls streamLang's audio track (or the first audio track if
// streamLang is empty) out of a container as 16-kHz mono WAV, the format
// the whisper transcription queue requires.
func ExtractAudio(ctx context.Context, inputPath, streamLang, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	args := []string{"-y", "-i", inputPath}
	if streamLang != "" {
		args = append(args, "-map", fmt.Sprintf("0:a:m:language:%s", streamLang))
	} else {
		args = append(args, "-map", "0:a:0")
	}
	args = append(args, "-ac", "1", "-ar", "16000", "-vn", outputPath)

	cmd := exec.CommandContext(ctx, binaryPath("ffmpeg"), args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("transcoder: audio extraction failed: %s", string(out))
	}
	return nil
}

// Extract pulls one subtitle stream out of a container into outputPath via
// ffmpeg stream copy (no re-encode).
func Extract(ctx context.Context, inputPath string, stream Stream, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, binaryPath("ffmpeg"),
		"-y",
		"-i", inputPath,
		"-map", fmt.Sprintf("0:s:%d", stream.SubIndex),
		"-c:s", "copy",
		outputPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("transcoder: ffmpeg extraction failed: %s", string(out))
	}
	return nil
}
