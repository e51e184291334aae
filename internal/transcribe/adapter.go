// Package transcribe wraps the speech-to-text capability: it conditions
// utterance audio, invokes the model, cleans the returned text, and
// suppresses the duplicate results the VAD re-fires on trailing echo.
//
// All per-utterance failures are absorbed here and reported as outcomes,
// never as errors; the session keeps listening regardless of how a single
// utterance went.
package transcribe

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/scorevox/scorevox/internal/segment"
	"github.com/scorevox/scorevox/pkg/audio"
	"github.com/scorevox/scorevox/pkg/provider/stt"
)

// DefaultPrompt is the domain-priming prompt passed to the model. It
// describes the expected vocabulary without concrete example sentences,
// which the model would echo back verbatim.
const DefaultPrompt = "这是一个成绩登记系统。用户只会说数字序号和数字分数，或者中文学生姓名和数字分数。不会说其他无关内容。"

// Duplicate-suppression defaults: a result at least this similar to the
// previous one, arriving within the window, is a VAD re-fire artifact.
const (
	DefaultSimilarityThreshold = 0.8
	DefaultDuplicateWindow     = 2 * time.Second
)

// Outcome classifies what happened to one utterance.
type Outcome int

const (
	// OutcomeAccepted means a non-empty, non-duplicate transcription was
	// produced.
	OutcomeAccepted Outcome = iota

	// OutcomeEmpty means the model heard no usable speech.
	OutcomeEmpty

	// OutcomeSuppressed means the result duplicated the previous one and was
	// dropped. Expected steady-state behaviour, not a fault.
	OutcomeSuppressed

	// OutcomeFailed means the transcription call itself failed. Logged;
	// the session continues listening.
	OutcomeFailed
)

// String returns the outcome's log/trace name.
func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeEmpty:
		return "empty"
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Result is one accepted transcription.
type Result struct {
	// Raw is the text as returned by the model, segments concatenated.
	Raw string

	// Text is the post-processed form handed to the parser.
	Text string

	// Timestamp is when the result was accepted.
	Timestamp time.Time
}

// Config holds the adapter's tunables. Zero fields take package defaults.
type Config struct {
	// SimilarityThreshold is the text-similarity ratio at or above which a
	// result counts as a duplicate of its predecessor.
	SimilarityThreshold float64

	// DuplicateWindow is the maximum age of the previous result for
	// duplicate suppression to apply.
	DuplicateWindow time.Duration

	// PromptKeywords are phrases from the priming prompt whose appearance in
	// model output indicates prompt leakage. Defaults to the distinctive
	// phrases of [DefaultPrompt].
	PromptKeywords []string
}

func (c Config) withDefaults() Config {
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if c.DuplicateWindow <= 0 {
		c.DuplicateWindow = DefaultDuplicateWindow
	}
	if c.PromptKeywords == nil {
		c.PromptKeywords = []string{"成绩登记", "登记系统", "学生姓名", "无关内容"}
	}
	return c
}

// Adapter drives one stt.Provider. The duplicate-suppression state is
// single-writer: confine each Adapter to the one consumer goroutine that
// drains the utterance queue.
type Adapter struct {
	provider stt.Provider
	cfg      Config

	// previous accepted result, for duplicate suppression
	lastText string
	lastAt   time.Time

	now func() time.Time // test seam
}

// New creates an Adapter around provider.
func New(provider stt.Provider, cfg Config) *Adapter {
	return &Adapter{
		provider: provider,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

// Transcribe converts one utterance into text. The returned Result is
// non-nil only when outcome is [OutcomeAccepted].
func (a *Adapter) Transcribe(ctx context.Context, utt *segment.Utterance) (*Result, Outcome) {
	samples := audio.Preprocess(utt.Samples)

	segments, err := a.provider.Transcribe(ctx, samples, utt.SampleRate)
	if err != nil {
		slog.Warn("transcription failed, continuing to listen", "err", err, "utterance", utt.Duration)
		return nil, OutcomeFailed
	}

	raw := strings.TrimSpace(strings.Join(segments, ""))
	if raw == "" {
		return nil, OutcomeEmpty
	}

	text := Postprocess(raw, a.cfg.PromptKeywords)
	if text == "" {
		return nil, OutcomeEmpty
	}

	now := a.now()
	if a.lastText != "" && now.Sub(a.lastAt) < a.cfg.DuplicateWindow &&
		Similarity(text, a.lastText) >= a.cfg.SimilarityThreshold {
		slog.Debug("duplicate transcription suppressed", "text", text)
		return nil, OutcomeSuppressed
	}

	a.lastText = text
	a.lastAt = now
	return &Result{Raw: raw, Text: text, Timestamp: now}, OutcomeAccepted
}
