// Package mock provides an in-memory capture device for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/scorevox/scorevox/pkg/audio"
	"github.com/scorevox/scorevox/pkg/audio/capture"
)

// Device is a scriptable capture device. Frames queued via [Device.Push] (or
// preloaded in Frames) are delivered in order after Start. The stream stays
// open until Stop, context cancellation, or [Device.CloseStream].
//
// Safe for concurrent use.
type Device struct {
	// StartErr, when non-nil, is returned by Start. Use
	// capture.ErrDeviceUnavailable to simulate a missing microphone.
	StartErr error

	// Frames is an optional initial script of frames delivered after Start.
	Frames []audio.Frame

	mu      sync.Mutex
	frameCh chan audio.Frame
	errCh   chan error
	cancel  context.CancelFunc
	started bool
}

var _ capture.Device = (*Device)(nil)

// Start begins delivering the scripted frames.
func (d *Device) Start(ctx context.Context) (<-chan audio.Frame, <-chan error, error) {
	if d.StartErr != nil {
		return nil, nil, d.StartErr
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	streamCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.frameCh = make(chan audio.Frame, 64)
	d.errCh = make(chan error, 1)
	d.started = true

	for _, f := range d.Frames {
		d.frameCh <- f
	}

	go func() {
		<-streamCtx.Done()
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.frameCh != nil {
			close(d.frameCh)
			close(d.errCh)
			d.frameCh = nil
		}
	}()

	return d.frameCh, d.errCh, nil
}

// Push delivers an additional frame mid-stream. It is a no-op once the
// stream has closed.
func (d *Device) Push(f audio.Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.frameCh == nil {
		return
	}
	select {
	case d.frameCh <- f:
	default:
	}
}

// Fail injects a fatal device error into the stream.
func (d *Device) Fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.errCh == nil {
		return
	}
	select {
	case d.errCh <- err:
	default:
	}
}

// Stop closes the stream.
func (d *Device) Stop() error {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// CloseStream is an alias for Stop, signalling natural end-of-stream.
func (d *Device) CloseStream() { _ = d.Stop() }

// SpeechFrames builds n frames of the given size filled with a constant
// amplitude, useful for scripting speech (high amplitude) and silence (low
// amplitude) runs in segmenter and session tests.
func SpeechFrames(n, frameSize, sampleRate int, amplitude float32) []audio.Frame {
	frames := make([]audio.Frame, n)
	var ts time.Duration
	frameDur := time.Duration(frameSize) * time.Second / time.Duration(sampleRate)
	for i := range frames {
		samples := make([]float32, frameSize)
		for j := range samples {
			samples[j] = amplitude
		}
		frames[i] = audio.Frame{Samples: samples, SampleRate: sampleRate, Timestamp: ts}
		ts += frameDur
	}
	return frames
}
