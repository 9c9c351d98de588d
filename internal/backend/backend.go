// Package backend defines the black-box extraction backends and the
// per-backend normalization of their replies into candidate records.
package backend

import (
	"context"
)

// Backend is one extraction service. Complete sends a prompt and returns
// the raw reply text; everything after that is the normalizer's job.
type Backend interface {
	ID() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Normalizer converts one backend's raw reply text into canonical entry
// maps (see normalize.go). Backends with ad hoc reply shapes register their
// own; everything else uses NormalizeJSON.
type Normalizer func(raw string) ([]map[string]any, error)

// normalizers maps backend id to its reply normalizer. This is a function
// table rather than an interface hierarchy: the shape differences between
// backends are data, not behavior.
var normalizers = map[string]Normalizer{
	"gemini": normalizeGemini,
}

// NormalizerFor returns the registered normalizer for a backend id, or
// NormalizeJSON when none is registered.
func NormalizerFor(id string) Normalizer {
	if n, ok := normalizers[id]; ok {
		return n
	}
	return NormalizeJSON
}
