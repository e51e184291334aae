// Package stt defines the speech-to-text capability.
//
// Providers are batch-shaped: the segmenter delivers complete utterance
// buffers, and each buffer is transcribed in a single call. Transcription
// may take hundreds of milliseconds to seconds; callers isolate it from the
// capture path. Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrModelUnavailable indicates the recognition model could not be loaded or
// reached. It is fatal and non-retryable: sessions report it once at startup
// instead of retrying per utterance.
var ErrModelUnavailable = errors.New("stt: model unavailable")

// Options are the per-provider decoding parameters. Providers ignore fields
// their backend does not support.
type Options struct {
	// Language is the BCP-47 language hint (e.g., "zh"). Empty lets the
	// model auto-detect.
	Language string

	// InitialPrompt biases the model toward the expected vocabulary. Keep it
	// descriptive; concrete example sentences get echoed back verbatim.
	InitialPrompt string

	// BeamSize is the decoder beam width. Zero selects the backend default.
	BeamSize int

	// Temperature is the sampling temperature. Zero is deterministic.
	Temperature float64
}

// Provider is the abstraction over any speech-to-text backend.
type Provider interface {
	// Transcribe converts one utterance of mono float32 samples into ordered
	// text segments. An empty slice with nil error means the model heard no
	// speech. Returns [ErrModelUnavailable] (wrapped) when the backend is
	// gone rather than when a single utterance fails.
	Transcribe(ctx context.Context, samples []float32, sampleRate int) ([]string, error)

	// Close releases backend resources (loaded models, HTTP clients).
	Close() error
}
