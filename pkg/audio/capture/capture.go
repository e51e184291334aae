// Package capture defines the microphone input capability.
//
// A Device delivers fixed-size mono frames over a channel, push-style, from
// the moment Start succeeds until the context is cancelled or Stop is called.
// Device errors are structured: callers can distinguish a missing capture
// backend (fatal, do not retry) from a transient stream failure.
package capture

import (
	"context"
	"errors"

	"github.com/scorevox/scorevox/pkg/audio"
)

// ErrDeviceUnavailable indicates that no usable capture backend exists on
// this machine (no recorder binary, no input device). Sessions treat this as
// fatal: recognition cannot start.
var ErrDeviceUnavailable = errors.New("capture: audio input device unavailable")

// Config holds the audio format requested from a capture device.
type Config struct {
	// SampleRate in Hz. 16000 matches what the STT models expect.
	SampleRate int

	// FrameSize is the number of samples per emitted frame.
	FrameSize int

	// Device optionally names a specific input device; empty selects the
	// backend default.
	Device string
}

// DefaultConfig returns the capture format used by the recognition pipeline:
// 16 kHz mono in 1024-sample frames (64 ms).
func DefaultConfig() Config {
	return Config{
		SampleRate: 16000,
		FrameSize:  1024,
	}
}

// Device is the audio input capability. Implementations must deliver frames
// without blocking on slow consumers; a frame that cannot be handed off in
// time may be dropped with a logged warning.
type Device interface {
	// Start begins capture and returns a frame channel and an error channel.
	// Both channels are closed when capture ends. Errors on the error channel
	// are fatal to the stream; transient per-frame read issues are logged and
	// skipped inside the implementation.
	Start(ctx context.Context) (<-chan audio.Frame, <-chan error, error)

	// Stop ends capture. The frame channel closes shortly after. Calling Stop
	// more than once is safe.
	Stop() error
}
