// Package whisper provides a local whisper.cpp-backed STT provider via the
// CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// must be available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
//
// The model is loaded once at construction and shared across all
// transcription calls; each call creates its own whisper context, so
// concurrent transcriptions do not interfere.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/scorevox/scorevox/pkg/provider/stt"
)

const (
	defaultLanguage = "zh"
	defaultBeamSize = 5
)

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using whisper.cpp Go bindings.
type Provider struct {
	model whisperlib.Model
	opts  stt.Options
}

// New loads the whisper.cpp model from modelPath. Loading can take tens of
// seconds for large models; call it once at startup, off any latency-
// sensitive path. A load failure wraps [stt.ErrModelUnavailable].
//
// The caller must Close the provider when done.
func New(modelPath string, opts stt.Options) (*Provider, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("whisper: %w: model path is empty", stt.ErrModelUnavailable)
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: %w: load %q: %v", stt.ErrModelUnavailable, modelPath, err)
	}

	if opts.Language == "" {
		opts.Language = defaultLanguage
	}
	if opts.BeamSize <= 0 {
		opts.BeamSize = defaultBeamSize
	}
	return &Provider{model: model, opts: opts}, nil
}

// Close releases the loaded model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe runs whisper.cpp inference over one utterance buffer and
// returns the trimmed, non-empty text segments in order.
//
// A fresh whisper context is created per call: contexts are not thread-safe,
// but the underlying model can be shared across goroutines.
func (p *Provider) Transcribe(ctx context.Context, samples []float32, sampleRate int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context cancelled: %w", err)
	}
	if len(samples) == 0 {
		return nil, nil
	}
	if sampleRate != whisperlib.SampleRate {
		return nil, fmt.Errorf("whisper: sample rate %d not supported, need %d", sampleRate, whisperlib.SampleRate)
	}

	wctx, err := p.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(p.opts.Language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", p.opts.Language, "err", err)
	}
	wctx.SetBeamSize(p.opts.BeamSize)
	wctx.SetTemperature(float32(p.opts.Temperature))
	if p.opts.InitialPrompt != "" {
		wctx.SetInitialPrompt(p.opts.InitialPrompt)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	var segments []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			segments = append(segments, text)
		}
	}
	return segments, nil
}
