package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sublarr/sublarr/internal/model"
)

type stubProcessor struct {
	err       error
	lastQuery model.VideoQuery
}

func (p *stubProcessor) ProcessFile(ctx context.Context, filePath string, force bool, query model.VideoQuery, sourceLang, targetLang string) (string, map[string]any, error) {
	p.lastQuery = query
	if p.err != nil {
		return "", nil, p.err
	}
	return filePath + ".de.srt", map[string]any{}, nil
}

func TestRunBatchMarksItemCompletedOnSuccess(t *testing.T) {
	st := newTestStore(t)
	cfg := testConfig()

	w := model.WantedItem{
		Type: model.ItemEpisode, SeriesID: "555", Title: "Show", SeasonEpisode: "S01E02",
		FilePath: "/tv/show/s01e02.mkv", Status: model.WantedPending,
		TargetLanguage: "de", SubtitleType: model.SubtitleFull,
	}
	if _, err := st.UpsertWanted(w); err != nil {
		t.Fatalf("seed wanted item: %v", err)
	}

	proc := &stubProcessor{}
	loop := NewSearchLoop(cfg, st, proc, nil, zerolog.Nop())

	n, err := loop.RunBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 item processed, got %d", n)
	}

	items, err := st.WantedByStatus(model.WantedCompleted, 10)
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 completed wanted item, got %d", len(items))
	}

	if proc.lastQuery.Season != 1 || proc.lastQuery.Episode != 2 {
		t.Errorf("expected season/episode parsed from SeasonEpisode, got %+v", proc.lastQuery)
	}
	if proc.lastQuery.TVDBID != "555" {
		t.Errorf("expected TVDBID to carry through, got %q", proc.lastQuery.TVDBID)
	}
}

func TestRunBatchMarksFailedAfterMaxAttempts(t *testing.T) {
	st := newTestStore(t)
	cfg := testConfig()
	cfg.Scheduler.MaxSearchAttempts = 1

	w := model.WantedItem{
		Type: model.ItemMovie, MovieID: "tt1", Title: "A Movie", FilePath: "/movies/a.mkv",
		Status: model.WantedPending, TargetLanguage: "de", SubtitleType: model.SubtitleFull,
		LastSearch: time.Time{},
	}
	if _, err := st.UpsertWanted(w); err != nil {
		t.Fatalf("seed wanted item: %v", err)
	}

	proc := &stubProcessor{err: errors.New("no-source-available")}
	loop := NewSearchLoop(cfg, st, proc, nil, zerolog.Nop())

	if _, err := loop.RunBatch(context.Background(), 10); err != nil {
		t.Fatalf("run batch: %v", err)
	}

	items, err := st.WantedByStatus(model.WantedFailed, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected the item to transition to failed after exceeding max attempts, got %d failed items", len(items))
	}
}
