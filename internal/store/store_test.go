package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sublarr/sublarr/internal/model"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	st, err := OpenForTest(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestUpsertWantedIsIdempotent(t *testing.T) {
	st := testStore(t)

	item := model.WantedItem{
		Type:             model.ItemEpisode,
		SeriesID:         "121361",
		Title:            "Some Show",
		SeasonEpisode:    "S01E01",
		FilePath:         "/library/Some Show/S01E01.mkv",
		MissingLanguages: []string{"de"},
		Status:           model.WantedPending,
		TargetLanguage:   "de",
		SubtitleType:     model.SubtitleFull,
	}

	id1, err := st.UpsertWanted(item)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	item.Title = "Some Show (retitled)"
	id2, err := st.UpsertWanted(item)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id1 != id2 {
		t.Errorf("upsert created a second row: id %d then %d", id1, id2)
	}

	items, err := st.WantedByStatus(model.WantedPending, 10)
	if err != nil {
		t.Fatalf("query wanted: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 wanted item, got %d", len(items))
	}
	if items[0].Title != "Some Show (retitled)" {
		t.Errorf("upsert did not refresh title: %q", items[0].Title)
	}
}

func TestUpsertWantedPreservesCompletedStatus(t *testing.T) {
	st := testStore(t)

	item := model.WantedItem{
		Type:           model.ItemEpisode,
		FilePath:       "/library/show/S01E02.mkv",
		Status:         model.WantedPending,
		TargetLanguage: "de",
		SubtitleType:   model.SubtitleFull,
	}
	id, err := st.UpsertWanted(item)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.RecordWantedAttempt(id, model.WantedCompleted, ""); err != nil {
		t.Fatalf("record attempt: %v", err)
	}

	// A rescan re-upserting the same row must not revive a completed item.
	if _, err := st.UpsertWanted(item); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	items, err := st.WantedByStatus(model.WantedCompleted, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("completed item was demoted back to wanted")
	}
	if items[0].AttemptCount != 1 {
		t.Errorf("attempt count = %d, want 1", items[0].AttemptCount)
	}
}

func TestProviderCacheRoundTripAndExpiry(t *testing.T) {
	st := testStore(t)

	results := []model.SubtitleResult{{
		ProviderName: "jimaku",
		SubtitleID:   "42",
		Language:     "de",
		Format:       model.FormatASS,
		Score:        240,
	}}
	st.Set("jimaku", "key-1", results)

	got, ok := st.Get("jimaku", "key-1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 1 || got[0].SubtitleID != "42" || got[0].Score != 240 {
		t.Errorf("cache round trip mangled results: %+v", got)
	}

	if _, ok := st.Get("jimaku", "other-key"); ok {
		t.Error("unexpected hit for unknown key")
	}

	// An empty list is a valid cached value, distinct from a miss.
	st.Set("jimaku", "empty", nil)
	got, ok = st.Get("jimaku", "empty")
	if !ok || len(got) != 0 {
		t.Errorf("empty result list should cache as a hit: ok=%v len=%d", ok, len(got))
	}

	old := CacheTTL
	CacheTTL = -time.Second
	defer func() { CacheTTL = old }()
	st.Set("jimaku", "expired", results)
	if _, ok := st.Get("jimaku", "expired"); ok {
		t.Error("expired entry should be a miss")
	}
}

func TestBlacklistFiltersResults(t *testing.T) {
	st := testStore(t)

	st.Add(model.BlacklistEntry{ProviderName: "jimaku", SubtitleID: "99", Reason: "corrupt archive"})
	if !st.IsBlacklisted("jimaku", "99") {
		t.Error("expected (jimaku, 99) blacklisted")
	}
	if st.IsBlacklisted("jimaku", "100") {
		t.Error("unexpected blacklist hit for (jimaku, 100)")
	}
	// Re-adding the same pair must not error or duplicate.
	st.Add(model.BlacklistEntry{ProviderName: "jimaku", SubtitleID: "99", Reason: "again"})
	if !st.IsBlacklisted("jimaku", "99") {
		t.Error("blacklist entry lost on duplicate add")
	}
}

func TestConfigEntryTypedParsers(t *testing.T) {
	cases := []struct {
		name  string
		entry ConfigEntry
		check func(t *testing.T, e ConfigEntry)
	}{
		{"int", ConfigEntry{Value: "42"}, func(t *testing.T, e ConfigEntry) {
			if got := e.AsInt(7); got != 42 {
				t.Errorf("AsInt = %d, want 42", got)
			}
		}},
		{"malformed int falls back", ConfigEntry{Value: "forty-two"}, func(t *testing.T, e ConfigEntry) {
			if got := e.AsInt(7); got != 7 {
				t.Errorf("AsInt = %d, want default 7", got)
			}
		}},
		{"bool", ConfigEntry{Value: "true"}, func(t *testing.T, e ConfigEntry) {
			if !e.AsBool(false) {
				t.Error("AsBool = false, want true")
			}
		}},
		{"malformed bool falls back", ConfigEntry{Value: "yep"}, func(t *testing.T, e ConfigEntry) {
			if e.AsBool(false) {
				t.Error("AsBool = true, want default false")
			}
		}},
		{"empty string falls back", ConfigEntry{Value: ""}, func(t *testing.T, e ConfigEntry) {
			if got := e.AsString("def"); got != "def" {
				t.Errorf("AsString = %q, want default", got)
			}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) { tc.check(t, tc.entry) })
	}
}

func TestConfigEntryUpsert(t *testing.T) {
	st := testStore(t)

	if err := st.SetConfigEntry("translation_backend", "openai", "string"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := st.SetConfigEntry("translation_backend", "local", "string"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	entries, err := st.ConfigEntries()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if got := entries["translation_backend"].AsString(""); got != "local" {
		t.Errorf("entry = %q, want %q", got, "local")
	}
}

func TestBackupAndRotateHonoursRetention(t *testing.T) {
	dir := t.TempDir()
	st, err := OpenForTest(filepath.Join(dir, "live.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	limit := RetentionLimits[BackupDaily]
	base := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	backups := filepath.Join(dir, "backups")
	for i := 0; i < limit+3; i++ {
		if _, err := st.Backup(backups, BackupDaily, base.AddDate(0, 0, i)); err != nil {
			t.Fatalf("backup %d: %v", i, err)
		}
	}

	deleted, err := Rotate(backups, BackupDaily)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}

	entries, err := os.ReadDir(backups)
	if err != nil {
		t.Fatalf("read backup dir: %v", err)
	}
	if len(entries) != limit {
		t.Errorf("backups remaining = %d, want %d", len(entries), limit)
	}
	// Oldest files go first: the earliest surviving backup is day 3.
	want := "sublarr-daily-" + base.AddDate(0, 0, 3).Format("20060102T150405Z") + ".db"
	found := false
	for _, e := range entries {
		if e.Name() == want {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s to survive rotation", want)
	}
}

func TestAniDBMappingRoundTrip(t *testing.T) {
	st := testStore(t)

	if err := st.UpsertAniDBMapping("121361", 2, 5, 15); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	abs, ok := st.AniDBAbsoluteEpisode("121361", 2, 5)
	if !ok || abs != 15 {
		t.Errorf("lookup = (%d, %v), want (15, true)", abs, ok)
	}
	if _, ok := st.AniDBAbsoluteEpisode("121361", 2, 6); ok {
		t.Error("unexpected hit for unmapped episode")
	}

	// An upsert for the same triple replaces the absolute number.
	if err := st.UpsertAniDBMapping("121361", 2, 5, 16); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if abs, _ := st.AniDBAbsoluteEpisode("121361", 2, 5); abs != 16 {
		t.Errorf("re-upsert kept stale value %d", abs)
	}
}
