// Package startup implements a preflight compatibility check run once
// before the scheduler set starts: every external collaborator the engine
// depends on is probed and logged, so a misconfigured deployment fails
// loudly at boot instead of silently degrading the first time a job runs.
//
// Each collaborator yields one named Result rather than a fatal error, so
// the daemon can log the full report before deciding whether to continue.
package startup

import (
	"os/exec"
	"runtime"
)

// Result is one collaborator's compatibility outcome.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Pinger is the narrow store slice this package needs.
type Pinger interface {
	Ping() error
}

// ProviderLister is the narrow provider registry slice this package needs.
type ProviderLister interface {
	Names() []string
}

// RequiredBinaries are the external tools the engine shells out to:
// ffmpeg for audio and subtitle extraction, ffprobe for media inspection.
var RequiredBinaries = []string{"ffmpeg", "ffprobe"}

// CheckCompat probes the database, the provider registry, and every
// required binary, returning one Result per collaborator. It never
// returns an error itself — each Result records its own pass/fail so the
// caller can log every line rather than stopping at the first failure.
func CheckCompat(store Pinger, providers ProviderLister) []Result {
	results := make([]Result, 0, 2+len(RequiredBinaries))

	results = append(results, checkStore(store))
	results = append(results, checkProviders(providers))
	for _, bin := range RequiredBinaries {
		results = append(results, checkBinary(bin))
	}
	return results
}

func checkStore(store Pinger) Result {
	if store == nil {
		return Result{Name: "database", Detail: "not configured"}
	}
	if err := store.Ping(); err != nil {
		return Result{Name: "database", Detail: err.Error()}
	}
	return Result{Name: "database", Passed: true, Detail: "reachable"}
}

func checkProviders(providers ProviderLister) Result {
	if providers == nil {
		return Result{Name: "provider_registry", Detail: "not configured"}
	}
	names := providers.Names()
	if len(names) == 0 {
		return Result{Name: "provider_registry", Detail: "no providers registered"}
	}
	return Result{Name: "provider_registry", Passed: true, Detail: joinNames(names)}
}

func checkBinary(name string) Result {
	if path, err := exec.LookPath(name); err == nil {
		return Result{Name: name, Passed: true, Detail: path}
	}
	detail := "not found on PATH"
	if runtime.GOOS == "windows" {
		detail += " (expected " + name + ".exe)"
	}
	return Result{Name: name, Detail: detail}
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
