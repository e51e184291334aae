// Package session runs the recognition pipeline: microphone frames are
// segmented into utterances, queued, transcribed, parsed, and delivered to
// a callback. One goroutine produces utterances from the capture stream and
// one consumes them, so a slow transcription never stalls capture.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/scorevox/scorevox/internal/observe"
	"github.com/scorevox/scorevox/internal/parse"
	"github.com/scorevox/scorevox/internal/segment"
	"github.com/scorevox/scorevox/internal/transcribe"
	"github.com/scorevox/scorevox/pkg/audio"
	"github.com/scorevox/scorevox/pkg/audio/capture"
	"github.com/scorevox/scorevox/pkg/provider/stt"
)

// Result is one recognized utterance delivered to the callback. Entries may
// be empty when the utterance carried no extractable grade.
type Result struct {
	// Text is the accepted transcription.
	Text transcribe.Result

	// Entries are the (identifier, score) pairs parsed from Text, in spoken
	// order.
	Entries []parse.Entry
}

// Callback receives every accepted transcription, including ones that
// parsed to nothing. It runs on the consumer goroutine: a slow callback
// delays transcription of queued utterances but never capture itself.
type Callback func(Result)

// Config assembles a Session's collaborators and tunables.
type Config struct {
	// Device produces microphone frames.
	Device capture.Device

	// Provider performs speech-to-text.
	Provider stt.Provider

	// SampleRate is the expected capture rate in Hz, used when flushing a
	// trailing utterance before any frame arrived.
	SampleRate int

	// Segmenter configures utterance segmentation. Zero fields take the
	// segment package defaults.
	Segmenter segment.Config

	// Adapter configures transcription post-processing and duplicate
	// suppression. Zero fields take the transcribe package defaults.
	Adapter transcribe.Config

	// QueueSize bounds the utterance queue. When full, the oldest queued
	// utterance is dropped so the queue always holds the most recent speech.
	// Default 8.
	QueueSize int

	// Metrics receives pipeline instrumentation. Nil uses
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Session is one recognition run. Create with New, drive with Start, and
// stop with Close. A Session is not restartable.
type Session struct {
	cfg     Config
	seg     *segment.Segmenter
	adapter *transcribe.Adapter
	metrics *observe.Metrics

	queue chan *segment.Utterance

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	err     error

	producerDone chan struct{}
	done         chan struct{}
}

// New creates a Session. Device and Provider are required.
func New(cfg Config) (*Session, error) {
	if cfg.Device == nil {
		return nil, fmt.Errorf("session: a capture device is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("session: an stt provider is required")
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 8
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	seg, err := segment.New(cfg.Segmenter)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return &Session{
		cfg:     cfg,
		seg:     seg,
		adapter: transcribe.New(cfg.Provider, cfg.Adapter),
		metrics: cfg.Metrics,
		queue:   make(chan *segment.Utterance, cfg.QueueSize),
	}, nil
}

// Start begins capturing and recognizing. cb is invoked on the consumer
// goroutine for every accepted transcription. Start returns once the
// pipeline is running.
func (s *Session) Start(ctx context.Context, cb Callback) error {
	if cb == nil {
		return fmt.Errorf("session: a callback is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("session: already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	frames, errs, err := s.cfg.Device.Start(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("session: starting capture: %w", err)
	}

	s.producerDone = make(chan struct{})
	s.done = make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(s.producerDone)
		return s.produce(gctx, frames, errs)
	})
	g.Go(func() error { return s.consume(gctx, cb) })
	go func() {
		err := g.Wait()
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		if err != nil {
			slog.Error("recognition pipeline terminated", "err", err)
		}
		close(s.done)
	}()

	s.cancel = cancel
	s.started = true
	s.metrics.ActiveSessions.Add(ctx, 1)
	slog.Info("recognition session started", "queue_size", s.cfg.QueueSize)
	return nil
}

// Done is closed once both pipeline goroutines have exited, whether from
// Close, the end of the capture stream, or a fatal capture error. Valid
// only after a successful Start.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err reports why the pipeline terminated. Nil for a deliberate stop or a
// normal end of stream.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// produce feeds capture frames through the segmenter and enqueues finished
// utterances. It owns the queue and closes it on exit.
func (s *Session) produce(ctx context.Context, frames <-chan audio.Frame, errs <-chan error) error {
	seg := s.seg
	defer close(s.queue)

	sampleRate := s.cfg.SampleRate
	lastDiscarded := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			// The capture contract marks errors on this channel as fatal
			// to the stream. Flush what was heard and shut the pipeline
			// down instead of listening to a dead microphone.
			if u := seg.Flush(sampleRate); u != nil {
				s.enqueue(ctx, u)
			}
			return fmt.Errorf("session: capture failed: %w", err)
		case f, ok := <-frames:
			if !ok {
				if u := seg.Flush(sampleRate); u != nil {
					s.enqueue(ctx, u)
				}
				return nil
			}
			sampleRate = f.SampleRate
			if u := seg.Feed(f); u != nil {
				s.enqueue(ctx, u)
			}
			if d := seg.Discarded(); d > lastDiscarded {
				s.metrics.RecordUtterance(ctx, "discarded")
				lastDiscarded = d
			}
		}
	}
}

// enqueue adds an utterance, evicting the oldest queued one when full. The
// producer is the only sender, so the evict-then-send pair cannot race with
// another sender.
func (s *Session) enqueue(ctx context.Context, u *segment.Utterance) {
	s.metrics.RecordUtterance(ctx, "captured")
	for {
		select {
		case s.queue <- u:
			return
		default:
		}
		select {
		case old := <-s.queue:
			slog.Warn("transcription queue full, dropping oldest utterance",
				"dropped_duration", old.Duration)
			s.metrics.QueueDrops.Add(ctx, 1)
		default:
		}
	}
}

// consume drains the queue, transcribes, parses, and invokes the callback.
func (s *Session) consume(ctx context.Context, cb Callback) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-s.queue:
			if !ok {
				return nil
			}
			if s.stopping() {
				continue
			}
			s.recognize(ctx, u, cb)
		}
	}
}

func (s *Session) recognize(ctx context.Context, u *segment.Utterance, cb Callback) {
	ctx, span := observe.StartSpan(ctx, "recognize",
		trace.WithAttributes(attribute.Float64("utterance.seconds", u.Duration.Seconds())))
	defer span.End()

	start := time.Now()
	res, outcome := s.adapter.Transcribe(ctx, u)
	s.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	span.SetAttributes(attribute.String("outcome", outcome.String()))

	// A transcription that completes after Close is discarded, never
	// delivered.
	if s.stopping() {
		return
	}

	switch outcome {
	case transcribe.OutcomeSuppressed:
		s.metrics.DuplicatesSuppressed.Add(ctx, 1)
		return
	case transcribe.OutcomeEmpty, transcribe.OutcomeFailed:
		return
	}

	entries := parse.ParseMultiple(res.Text)
	if len(entries) == 0 {
		s.metrics.RecordParse(ctx, "unparsed")
	} else {
		s.metrics.RecordParse(ctx, "parsed")
	}
	span.SetAttributes(attribute.Int("entries", len(entries)))
	observe.Logger(ctx).Debug("utterance recognized",
		"text", res.Text, "entries", len(entries), "latency", time.Since(start))
	cb(Result{Text: *res, Entries: entries})
}

// Close stops capture and waits for the producer to release the device. It
// does not wait for the consumer: an in-flight transcription finishes in
// the background and its result is discarded, so stopping is never held up
// by a slow model. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if !s.started || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	stopErr := s.cfg.Device.Stop()
	cancel()
	<-s.producerDone
	s.metrics.ActiveSessions.Add(context.Background(), -1)
	slog.Info("recognition session stopped")
	return stopErr
}

func (s *Session) stopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
