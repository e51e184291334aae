// Package audio defines the shared audio types used across the scorevox
// pipeline: capture frames, PCM conversion helpers, and the preprocessing
// applied to utterance buffers before transcription.
//
// All pipeline audio is mono. Samples are float32 in [-1, 1]; capture
// backends that deliver 16-bit PCM convert at the boundary.
package audio

import (
	"math"
	"time"
)

// Frame is a fixed-size block of mono samples flowing through the pipeline.
// Frames are the atomic unit of audio transport: delivered by the capture
// device, inspected by the segmenter, and appended to utterance buffers.
type Frame struct {
	// Samples holds mono audio samples in [-1, 1].
	Samples []float32

	// SampleRate in Hz (16000 for STT input).
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the playback duration of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// RMS returns the root-mean-square energy of the frame's samples, in the
// same [0, 1] scale as the samples themselves. Returns 0 for empty frames.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
