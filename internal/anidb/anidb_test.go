package anidb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

type stubMapper struct {
	mappings map[string]int
}

func (m *stubMapper) UpsertAniDBMapping(tvdbID string, season, tvdbEpisode, absoluteEpisode int) error {
	if m.mappings == nil {
		m.mappings = map[string]int{}
	}
	m.mappings[key(tvdbID, season, tvdbEpisode)] = absoluteEpisode
	return nil
}

func key(tvdbID string, season, episode int) string {
	return tvdbID + ":" + itoa(season) + ":" + itoa(episode)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

const fixtureXML = `<?xml version="1.0" encoding="UTF-8"?>
<anime-list>
  <anime tvdbid="555">
    <mapping-list>
      <mapping tvdbseason="1">1-1;2-2;3-3</mapping>
      <mapping tvdbseason="0">100-1</mapping>
    </mapping-list>
  </anime>
  <anime tvdbid="">
    <mapping-list></mapping-list>
  </anime>
</anime-list>`

func TestSyncParsesAndUpsertsMappings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fixtureXML))
	}))
	defer srv.Close()

	mapper := &stubMapper{}
	s := New(mapper, zerolog.Nop())

	result, err := s.Sync(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.SeriesProcessed != 1 {
		t.Errorf("expected 1 series processed (empty tvdbid skipped), got %d", result.SeriesProcessed)
	}
	if result.Skipped != 1 {
		t.Errorf("expected 1 skipped series, got %d", result.Skipped)
	}
	if result.MappingsUpserted != 3 {
		t.Errorf("expected 3 mappings upserted (season-0 specials skipped), got %d", result.MappingsUpserted)
	}
	if mapper.mappings[key("555", 1, 2)] != 2 {
		t.Errorf("expected season 1 episode 2 to map to absolute 2, got %v", mapper.mappings)
	}
	if _, ok := mapper.mappings[key("555", 0, 1)]; ok {
		t.Error("expected season-0 special mapping to be skipped")
	}
}

func TestSyncRefusesConcurrentRuns(t *testing.T) {
	mapper := &stubMapper{}
	s := New(mapper, zerolog.Nop())
	s.running = 1
	defer func() { s.running = 0 }()

	if _, err := s.Sync(context.Background(), "http://unused"); err == nil {
		t.Fatal("expected Sync to refuse a concurrent run")
	}
}

func TestParseTokenRejectsMalformedInput(t *testing.T) {
	cases := []string{"", "1", "1-2-3", "a-1", "1-b", "0-1", "1-0"}
	for _, c := range cases {
		if _, _, ok := parseToken(c); ok {
			t.Errorf("expected token %q to be rejected", c)
		}
	}
	if a, b, ok := parseToken(" 5 - 6 "); !ok || a != 5 || b != 6 {
		t.Errorf("expected whitespace-padded token to parse, got %d %d %v", a, b, ok)
	}
}
