// Package mock provides a test double for the tts.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/scorevox/scorevox/pkg/provider/tts"
)

// Provider is a mock implementation of tts.Provider. It records every
// synthesized text and returns a configurable clip or error.
type Provider struct {
	mu sync.Mutex

	// Clip is returned from Synthesize when Err is nil. Defaults to a
	// single-byte placeholder so callers see a non-empty clip.
	Clip []byte

	// Err, if non-nil, is returned from every Synthesize call.
	Err error

	texts []string
}

var _ tts.Provider = (*Provider)(nil)

// Synthesize records text and replays the configured clip or error.
func (p *Provider) Synthesize(_ context.Context, text string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.texts = append(p.texts, text)
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Clip == nil {
		return []byte{0}, nil
	}
	return p.Clip, nil
}

// Texts returns the synthesized texts in call order.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.texts))
	copy(out, p.texts)
	return out
}
