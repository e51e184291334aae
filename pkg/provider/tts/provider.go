// Package tts defines the Provider interface for text-to-speech backends
// used to speak confirmation prompts back to the user.
//
// Grade confirmations are short fixed phrases, so the interface is
// request/response rather than streaming: one call yields one encoded
// audio clip.
package tts

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the synthesis backend cannot be reached or is
// not configured. Callers should fall back to silent operation.
var ErrUnavailable = errors.New("tts: backend unavailable")

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Synthesize converts text into a single encoded audio clip (MP3 unless
	// the implementation documents otherwise). An empty text returns an
	// error rather than an empty clip.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
