package startup

import (
	"errors"
	"testing"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping() error { return p.err }

type stubProviders struct {
	names []string
}

func (p stubProviders) Names() []string { return p.names }

func TestCheckCompatReportsStoreAndProviders(t *testing.T) {
	results := CheckCompat(stubPinger{}, stubProviders{names: []string{"opensubtitles"}})

	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Name] = r
	}
	if !byName["database"].Passed {
		t.Errorf("expected database check to pass, got %+v", byName["database"])
	}
	if !byName["provider_registry"].Passed {
		t.Errorf("expected provider registry check to pass, got %+v", byName["provider_registry"])
	}
}

func TestCheckCompatFailsOnEmptyProviderRegistry(t *testing.T) {
	results := CheckCompat(stubPinger{}, stubProviders{})
	for _, r := range results {
		if r.Name == "provider_registry" && r.Passed {
			t.Error("expected an empty provider registry to fail the check")
		}
	}
}

func TestCheckCompatFailsOnDatabaseError(t *testing.T) {
	results := CheckCompat(stubPinger{err: errors.New("disk full")}, stubProviders{names: []string{"x"}})
	for _, r := range results {
		if r.Name == "database" && r.Passed {
			t.Error("expected a ping error to fail the database check")
		}
	}
}

func TestAllPassed(t *testing.T) {
	if !AllPassed(nil) {
		t.Error("expected AllPassed(nil) to be vacuously true")
	}
	if AllPassed([]Result{{Name: "x", Passed: false}}) {
		t.Error("expected a failing result to make AllPassed false")
	}
}
