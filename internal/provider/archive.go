package provider

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mholt/archiver/v3"

	"github.com/sublarr/sublarr/internal/model"
)

// subtitleExtRank orders candidate files inside a downloaded archive by
// the same format preference applied to results overall: ASS > SSA > SRT
// > VTT. A download that unpacks to several files (a release bundling
// multiple episodes or a "full"/"signs" pair) keeps the highest-ranked
// one.
var subtitleExtRank = map[string]int{
	".ass": 4,
	".ssa": 3,
	".srt": 2,
	".vtt": 1,
}

func extToFormat(ext string) model.SubtitleFormat {
	switch ext {
	case ".ass":
		return model.FormatASS
	case ".ssa":
		return model.FormatSSA
	case ".srt":
		return model.FormatSRT
	case ".vtt":
		return model.FormatVTT
	default:
		return model.FormatUnknown
	}
}

// ExtractArchive unpacks a downloaded ZIP/RAR/XZ/TAR archive and returns
// the best-ranked subtitle file's bytes, filename, and format.
func ExtractArchive(raw []byte, sourceName string) (content []byte, filename string, format model.SubtitleFormat, err error) {
	tempDir, err := os.MkdirTemp("", "sublarr-extract-*")
	if err != nil {
		return nil, "", "", fmt.Errorf("provider: create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	ext := filepath.Ext(sourceName)
	if ext == "" {
		ext = ".zip"
	}
	archivePath := filepath.Join(tempDir, "download"+ext)
	if err := os.WriteFile(archivePath, raw, 0o644); err != nil {
		return nil, "", "", fmt.Errorf("provider: write archive: %w", err)
	}

	destDir := filepath.Join(tempDir, "out")
	if err := archiver.Unarchive(archivePath, destDir); err != nil {
		return nil, "", "", fmt.Errorf("provider: unarchive %s: %w", sourceName, err)
	}

	type candidate struct {
		path string
		rank int
	}
	var candidates []candidate
	filepath.Walk(destDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil || info == nil || info.IsDir() {
			return nil
		}
		rank, ok := subtitleExtRank[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil
		}
		candidates = append(candidates, candidate{path: path, rank: rank})
		return nil
	})

	if len(candidates) == 0 {
		return nil, "", "", fmt.Errorf("provider: archive %s contains no subtitle file", sourceName)
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].rank > candidates[j].rank })
	best := candidates[0]

	data, err := os.ReadFile(best.path)
	if err != nil {
		return nil, "", "", fmt.Errorf("provider: read extracted file: %w", err)
	}

	return data, filepath.Base(best.path), extToFormat(strings.ToLower(filepath.Ext(best.path))), nil
}

// IsArchive reports whether filename names a container format a download
// may need to unpack (by extension, not content — providers set this on
// the result they emit).
func IsArchive(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".zip") || strings.HasSuffix(lower, ".rar") ||
		strings.HasSuffix(lower, ".xz") || strings.HasSuffix(lower, ".tar.xz") ||
		strings.HasSuffix(lower, ".7z")
}
