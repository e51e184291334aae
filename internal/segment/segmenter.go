// Package segment turns a continuous stream of audio frames into discrete
// utterances using energy-based voice activity detection.
//
// The segmenter is a pure state machine: it never blocks, never touches the
// audio device, and is driven frame by frame from the capture loop. Per-frame
// work is a single RMS computation and an append, keeping the capture hot
// path well inside the frame's real-time budget.
package segment

import (
	"errors"
	"log/slog"
	"time"

	"github.com/scorevox/scorevox/pkg/audio"
)

// Default VAD parameters. The energy threshold is on the same [0, 1] scale
// as the float32 samples; 0.01 corresponds to quiet-room background noise.
const (
	DefaultSilenceDuration   = 1500 * time.Millisecond
	DefaultMinSpeechDuration = 500 * time.Millisecond
	DefaultEnergyThreshold   = 0.01
	DefaultSmoothingWindow   = 5
)

// Config holds the tunable VAD parameters.
type Config struct {
	// SilenceDuration is the trailing-silence span that ends an utterance.
	SilenceDuration time.Duration

	// MinSpeechDuration is the minimum utterance length to accept; shorter
	// captures (coughs, clicks) are dropped silently.
	MinSpeechDuration time.Duration

	// EnergyThreshold is the smoothed RMS level above which a frame counts
	// as speech. Smaller is more sensitive; larger resists background noise.
	EnergyThreshold float64

	// SmoothingWindow is the number of recent frames the energy estimate is
	// averaged over, so single-frame spikes do not trigger transitions.
	SmoothingWindow int
}

// withDefaults fills zero fields with the package defaults.
func (c Config) withDefaults() Config {
	if c.SilenceDuration <= 0 {
		c.SilenceDuration = DefaultSilenceDuration
	}
	if c.MinSpeechDuration <= 0 {
		c.MinSpeechDuration = DefaultMinSpeechDuration
	}
	if c.EnergyThreshold <= 0 {
		c.EnergyThreshold = DefaultEnergyThreshold
	}
	if c.SmoothingWindow <= 0 {
		c.SmoothingWindow = DefaultSmoothingWindow
	}
	return c
}

// validate rejects configurations the state machine cannot work with.
func (c Config) validate() error {
	if c.SilenceDuration < c.MinSpeechDuration/4 {
		return errors.New("segment: silence_duration implausibly small relative to min_speech_duration")
	}
	if c.EnergyThreshold >= 1 {
		return errors.New("segment: energy_threshold must be below 1.0")
	}
	return nil
}

// Utterance is a completed speech segment. Ownership transfers to the caller
// on emission; the segmenter never reuses the sample buffer.
type Utterance struct {
	// Samples is the captured mono audio, trailing silence included.
	Samples []float32

	// SampleRate of the samples in Hz.
	SampleRate int

	// Start is the capture timestamp of the first frame.
	Start time.Duration

	// Duration is the total utterance length.
	Duration time.Duration
}

// state is the segmenter's detection state.
type state int

const (
	stateIdle      state = iota // no speech detected yet
	stateCapturing              // speech in progress
)

// Segmenter accumulates frames between a detected speech start and a
// sustained trailing silence, emitting one Utterance per spoken phrase.
//
// Not safe for concurrent use; confine each Segmenter to the goroutine that
// drives it.
type Segmenter struct {
	cfg Config

	state   state
	window  []float64 // ring of recent frame RMS values
	windowN int       // frames currently in the ring
	windowI int       // next ring slot

	buf       []float32
	bufStart  time.Duration
	bufDur    time.Duration
	silence   time.Duration // trailing silence accumulated since last speech frame
	discarded int
}

// New creates a Segmenter. Zero config fields take package defaults.
func New(cfg Config) (*Segmenter, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Segmenter{
		cfg:    cfg,
		window: make([]float64, cfg.SmoothingWindow),
	}, nil
}

// Feed advances the state machine by one frame. It returns a non-nil
// Utterance exactly when a speech segment has just completed (trailing
// silence reached SilenceDuration and the segment meets MinSpeechDuration).
//
// Feed must complete well within one frame interval; it performs no I/O and
// no allocation beyond the utterance buffer append.
func (s *Segmenter) Feed(frame audio.Frame) *Utterance {
	energy := s.smooth(audio.RMS(frame.Samples))
	speech := energy > s.cfg.EnergyThreshold

	switch s.state {
	case stateIdle:
		if !speech {
			return nil
		}
		s.state = stateCapturing
		s.bufStart = frame.Timestamp
		s.buf = append(s.buf, frame.Samples...)
		s.bufDur = frame.Duration()
		s.silence = 0
		return nil

	case stateCapturing:
		// Silence frames are retained so trailing speech is not clipped.
		s.buf = append(s.buf, frame.Samples...)
		s.bufDur += frame.Duration()
		if speech {
			s.silence = 0
			return nil
		}
		s.silence += frame.Duration()
		if s.silence < s.cfg.SilenceDuration {
			return nil
		}
		return s.finalize(frame.SampleRate)
	}
	return nil
}

// Flush ends the stream: if an utterance is mid-capture and long enough, it
// is emitted. Call when capture stops so trailing speech is not lost.
func (s *Segmenter) Flush(sampleRate int) *Utterance {
	if s.state != stateCapturing {
		return nil
	}
	return s.finalize(sampleRate)
}

// Reset clears all detection state without emitting anything. Use when the
// audio stream is interrupted, so stale energy history cannot leak into the
// next stream.
func (s *Segmenter) Reset() {
	s.state = stateIdle
	s.buf = nil
	s.bufDur = 0
	s.silence = 0
	s.windowN = 0
	s.windowI = 0
}

// Discarded reports how many captures were dropped for being shorter than
// MinSpeechDuration.
func (s *Segmenter) Discarded() int { return s.discarded }

// finalize emits or discards the current buffer and returns to Idle.
// The minimum-duration gate measures speech only; the retained trailing
// silence would otherwise push every capture past the threshold.
func (s *Segmenter) finalize(sampleRate int) *Utterance {
	buf, start, dur := s.buf, s.bufStart, s.bufDur
	speechDur := dur - s.silence
	s.state = stateIdle
	s.buf = nil
	s.bufDur = 0
	s.silence = 0

	if speechDur < s.cfg.MinSpeechDuration {
		s.discarded++
		slog.Debug("segment: utterance below minimum duration, discarded",
			"speech", speechDur, "min", s.cfg.MinSpeechDuration)
		return nil
	}
	return &Utterance{Samples: buf, SampleRate: sampleRate, Start: start, Duration: dur}
}

// smooth folds one RMS value into the sliding window and returns the mean.
func (s *Segmenter) smooth(rms float64) float64 {
	s.window[s.windowI] = rms
	s.windowI = (s.windowI + 1) % len(s.window)
	if s.windowN < len(s.window) {
		s.windowN++
	}
	var sum float64
	for i := 0; i < s.windowN; i++ {
		sum += s.window[i]
	}
	return sum / float64(s.windowN)
}
