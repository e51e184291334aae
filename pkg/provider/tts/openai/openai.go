// Package openai provides an OpenAI-backed TTS provider using the speech
// endpoint. It implements the tts.Provider interface.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/scorevox/scorevox/pkg/provider/tts"
)

// Model and Voice alias the SDK types so config strings convert without
// importing the SDK at call sites.
type (
	Model = oai.SpeechModel
	Voice = oai.AudioSpeechNewParamsVoice
)

// DefaultModel is the speech model used when none is specified.
const DefaultModel = oai.SpeechModelGPT4oMiniTTS

// DefaultVoice is the voice used when none is specified.
const DefaultVoice = oai.AudioSpeechNewParamsVoiceAlloy

const defaultTimeout = 30 * time.Second

type config struct {
	baseURL string
	voice   oai.AudioSpeechNewParamsVoice
	timeout time.Duration
}

// Option configures the Provider.
type Option func(*config)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithVoice selects the synthesis voice.
func WithVoice(voice oai.AudioSpeechNewParamsVoice) Option {
	return func(c *config) { c.voice = voice }
}

// WithTimeout sets the per-request timeout. Default is 30s.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// Provider implements tts.Provider backed by the OpenAI speech API.
type Provider struct {
	client oai.Client
	model  oai.SpeechModel
	voice  oai.AudioSpeechNewParamsVoice
}

var _ tts.Provider = (*Provider)(nil)

// New creates an OpenAI TTS provider. apiKey must be non-empty; an empty
// model selects [DefaultModel].
func New(apiKey string, model oai.SpeechModel, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	cfg := config{voice: DefaultVoice, timeout: defaultTimeout}
	for _, o := range opts {
		o(&cfg)
	}
	if model == "" {
		model = DefaultModel
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}),
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &Provider{
		client: oai.NewClient(clientOpts...),
		model:  model,
		voice:  cfg.voice,
	}, nil
}

// Synthesize converts text into an MP3 clip.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("openai: text must not be empty")
	}

	res, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          p.model,
		Voice:          p.voice,
		Input:          text,
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: speech request: %w", err)
	}
	defer res.Body.Close()

	clip, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: reading speech response: %w", err)
	}
	return clip, nil
}
