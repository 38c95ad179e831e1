// Package provider defines the subtitle provider contract: declarative
// metadata plus the initialize/terminate/search/download/health-check
// operations every provider implements.
package provider

import (
	"context"
	"time"

	"github.com/sublarr/sublarr/internal/model"
)

// FieldType is the input widget a config-field descriptor renders as.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldPassword FieldType = "password"
	FieldNumber   FieldType = "number"
)

// ConfigField describes one provider-specific configuration knob, so a
// settings UI (or a config-file schema) can be generated without the
// provider author writing UI code.
type ConfigField struct {
	Key      string
	Label    string
	Type     FieldType
	Required bool
	Default  string
	Help     string
}

// RateLimit is a (max requests, window) pair. Zero,zero means unlimited.
type RateLimit struct {
	MaxRequests int
	Window      time.Duration
}

// Unlimited is the zero-value RateLimit.
var Unlimited = RateLimit{}

// Metadata is a provider's declarative identity, read once at registration.
type Metadata struct {
	Name              string
	SupportedLanguages map[string]struct{}
	ConfigFields      []ConfigField
	RateLimit         RateLimit
	Timeout           time.Duration
	MaxRetries        int
	IsPlugin          bool
}

// SupportsLanguage reports whether lang is in the provider's supported set.
func (m Metadata) SupportsLanguage(lang string) bool {
	_, ok := m.SupportedLanguages[lang]
	return ok
}

// Provider is the contract every subtitle source implements.
type Provider interface {
	Metadata() Metadata

	Initialize(ctx context.Context) error
	Terminate(ctx context.Context) error

	// Search must not sort results, must only return results whose language
	// is in query.Languages, and must tag each result with the match kinds
	// it can confirm.
	Search(ctx context.Context, query model.VideoQuery) ([]model.SubtitleResult, error)

	// Download follows redirects, extracts XZ/ZIP/RAR containers, and may
	// rewrite result.Filename/result.Format to reflect the extracted
	// content, hence the pointer receiver.
	Download(ctx context.Context, result *model.SubtitleResult) ([]byte, error)

	HealthCheck(ctx context.Context) (bool, string)
}

// Error carries a provider failure along with whether it is a rate-limit
// response (so callers can apply the Retry-After wait) and whether it is
// an authentication failure.
type Error struct {
	Provider   string
	Message    string
	RateLimit  bool
	RetryAfter time.Duration
	AuthFailed bool
}

func (e *Error) Error() string {
	return "provider " + e.Provider + ": " + e.Message
}

// IsRateLimit reports whether err is a rate-limit Error.
func IsRateLimit(err error) bool {
	pe, ok := err.(*Error)
	return ok && pe.RateLimit
}

// IsAuthFailure reports whether err is an authentication Error.
func IsAuthFailure(err error) bool {
	pe, ok := err.(*Error)
	return ok && pe.AuthFailed
}
