// Package mock provides a scriptable STT provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/scorevox/scorevox/pkg/provider/stt"
)

// Result is one scripted transcription outcome.
type Result struct {
	Segments []string
	Err      error
}

// Provider replays scripted results in order. Once the script is exhausted
// it returns empty transcriptions. Safe for concurrent use.
type Provider struct {
	mu      sync.Mutex
	script  []Result
	calls   int
	samples [][]float32
}

var _ stt.Provider = (*Provider)(nil)

// New creates a mock provider replaying the given results.
func New(script ...Result) *Provider {
	return &Provider{script: script}
}

// Transcribe returns the next scripted result and records the input buffer.
func (p *Provider) Transcribe(_ context.Context, samples []float32, _ int) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.samples = append(p.samples, samples)
	if p.calls >= len(p.script) {
		p.calls++
		return nil, nil
	}
	r := p.script[p.calls]
	p.calls++
	return r.Segments, r.Err
}

// Close is a no-op.
func (p *Provider) Close() error { return nil }

// Calls reports how many transcriptions were requested.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Buffers returns the sample buffers received, in call order.
func (p *Provider) Buffers() [][]float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]float32, len(p.samples))
	copy(out, p.samples)
	return out
}
