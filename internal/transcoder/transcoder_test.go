package transcoder

import "testing"

func TestSelectBestPrefersFullASS(t *testing.T) {
	streams := []Stream{
		{SubIndex: 0, Format: "ass", Title: "signs & songs", Language: "eng"},
		{SubIndex: 1, Format: "ass", Title: "full subtitles", Language: "eng"},
		{SubIndex: 2, Format: "srt", Title: "", Language: "eng"},
	}
	got, ok := SelectBest(streams, "en")
	if !ok || got.SubIndex != 1 {
		t.Fatalf("expected the Full ASS track (index 1), got %+v (ok=%v)", got, ok)
	}
}

func TestSelectBestFallsBackToEnglishNonSigns(t *testing.T) {
	streams := []Stream{
		{SubIndex: 0, Format: "ass", Title: "signs", Language: "eng"},
		{SubIndex: 1, Format: "ass", Title: "dialogue", Language: "eng"},
	}
	got, ok := SelectBest(streams, "en")
	if !ok || got.SubIndex != 1 {
		t.Fatalf("expected the non-signs English ASS track, got %+v (ok=%v)", got, ok)
	}
}

func TestSelectBestFallsBackToSRT(t *testing.T) {
	streams := []Stream{
		{SubIndex: 0, Format: "srt", Title: "", Language: "eng"},
	}
	got, ok := SelectBest(streams, "en")
	if !ok || got.Format != "srt" {
		t.Fatalf("expected SRT fallback, got %+v (ok=%v)", got, ok)
	}
}

func TestSelectBestNoStreams(t *testing.T) {
	if _, ok := SelectBest(nil, "en"); ok {
		t.Fatal("expected no match for an empty stream list")
	}
}

func TestSelectBestLastResortAnyASS(t *testing.T) {
	streams := []Stream{
		{SubIndex: 0, Format: "ass", Title: "signs", Language: "jpn"},
	}
	got, ok := SelectBest(streams, "en")
	if !ok || got.SubIndex != 0 {
		t.Fatalf("expected last-resort ASS stream, got %+v (ok=%v)", got, ok)
	}
}
