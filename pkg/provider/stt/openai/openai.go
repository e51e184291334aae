// Package openai provides an STT provider backed by the OpenAI audio
// transcription API. Useful on machines without a local whisper.cpp build,
// at the cost of network latency and an API key.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/scorevox/scorevox/pkg/audio"
	"github.com/scorevox/scorevox/pkg/provider/stt"
)

// DefaultModel is the transcription model used when none is configured.
const DefaultModel = oai.AudioModelWhisper1

// Ensure Provider implements the stt.Provider interface.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
	opts   stt.Options
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default API base URL (e.g., for a compatible
// self-hosted endpoint).
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout. Default 30s.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs an OpenAI transcription Provider. model falls back to
// [DefaultModel] when empty.
func New(apiKey, model string, sttOpts stt.Options, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai stt: %w: api key must not be empty", stt.ErrModelUnavailable)
	}
	if model == "" {
		model = DefaultModel
	}
	if sttOpts.Language == "" {
		sttOpts.Language = "zh"
	}

	cfg := &config{timeout: 30 * time.Second}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  model,
		opts:   sttOpts,
	}, nil
}

// Close is a no-op; the HTTP client holds no persistent resources.
func (p *Provider) Close() error { return nil }

// Transcribe uploads the utterance as a WAV file and returns the resulting
// text as a single segment.
func (p *Provider) Transcribe(ctx context.Context, samples []float32, sampleRate int) ([]string, error) {
	if len(samples) == 0 {
		return nil, nil
	}

	wav := audio.EncodeWAV(audio.Float32ToPCM16(samples), sampleRate, 1)

	params := oai.AudioTranscriptionNewParams{
		Model: p.model,
		File:  oai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
	}
	if p.opts.Language != "" {
		params.Language = oai.String(p.opts.Language)
	}
	if p.opts.InitialPrompt != "" {
		params.Prompt = oai.String(p.opts.InitialPrompt)
	}
	params.Temperature = oai.Float(p.opts.Temperature)

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai stt: transcription request: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, nil
	}
	return []string{text}, nil
}
