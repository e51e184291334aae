package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/scorevox/scorevox/pkg/provider/stt"
)

// backend pairs a provider with its breaker.
type backend struct {
	name     string
	provider stt.Provider
	breaker  *Breaker
}

// STTFailover implements stt.Provider over an ordered list of backends. A
// transcription goes to the first backend whose breaker admits it; on
// failure the next is tried within the same call, so one bad utterance
// never surfaces a backend outage to the session.
type STTFailover struct {
	backends []backend
}

var _ stt.Provider = (*STTFailover)(nil)

// NewSTTFailover creates a failover over primary. maxFailures and
// resetTimeout configure every breaker; non-positive values take the
// package defaults.
func NewSTTFailover(primaryName string, primary stt.Provider, maxFailures int, resetTimeout time.Duration) *STTFailover {
	f := &STTFailover{}
	f.add(primaryName, primary, maxFailures, resetTimeout)
	return f
}

// AddFallback appends a lower-priority backend.
func (f *STTFailover) AddFallback(name string, provider stt.Provider) {
	first := f.backends[0].breaker
	f.add(name, provider, first.maxFailures, first.resetTimeout)
}

func (f *STTFailover) add(name string, provider stt.Provider, maxFailures int, resetTimeout time.Duration) {
	f.backends = append(f.backends, backend{
		name:     name,
		provider: provider,
		breaker:  NewBreaker(name, maxFailures, resetTimeout),
	})
}

// Transcribe tries each admitted backend in priority order.
func (f *STTFailover) Transcribe(ctx context.Context, samples []float32, sampleRate int) ([]string, error) {
	var errs []error
	for _, be := range f.backends {
		if !be.breaker.Allow() {
			continue
		}
		segments, err := be.provider.Transcribe(ctx, samples, sampleRate)
		be.breaker.Record(err)
		if err == nil {
			return segments, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		slog.Warn("speech backend failed, trying next", "backend", be.name, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", be.name, err))
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("resilience: all speech backends open: %w", ErrOpen)
	}
	return nil, fmt.Errorf("resilience: all speech backends failed: %w", errors.Join(errs...))
}

// Close closes every backend, reporting the first error.
func (f *STTFailover) Close() error {
	var firstErr error
	for _, be := range f.backends {
		if err := be.provider.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
