package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scorevox/scorevox/pkg/audio"
)

// backend describes one external recorder binary and how to ask it for
// 16-bit signed little-endian mono PCM on stdout.
type backend struct {
	binary string
	args   func(cfg Config) []string
}

// backends are probed in order; the first binary found on PATH wins.
// PipeWire first (modern desktops), then PulseAudio, then raw ALSA.
var backends = []backend{
	{
		binary: "pw-record",
		args: func(cfg Config) []string {
			a := []string{"--format", "s16", "--rate", strconv.Itoa(cfg.SampleRate), "--channels", "1"}
			if cfg.Device != "" {
				a = append(a, "--target", cfg.Device)
			}
			return append(a, "-")
		},
	},
	{
		binary: "parec",
		args: func(cfg Config) []string {
			a := []string{"--format=s16le", "--rate=" + strconv.Itoa(cfg.SampleRate), "--channels=1"}
			if cfg.Device != "" {
				a = append(a, "--device="+cfg.Device)
			}
			return a
		},
	},
	{
		binary: "arecord",
		args: func(cfg Config) []string {
			a := []string{"-f", "S16_LE", "-r", strconv.Itoa(cfg.SampleRate), "-c", "1", "-t", "raw"}
			if cfg.Device != "" {
				a = append(a, "-D", cfg.Device)
			}
			return a
		},
	},
}

// Recorder captures microphone audio by spawning an external recorder
// process (pw-record, parec, or arecord) and slicing its raw PCM stdout into
// fixed-size float32 frames.
//
// Recorder implements [Device]. It is safe for concurrent use; only one
// capture stream may be active at a time.
type Recorder struct {
	cfg       Config
	recording atomic.Bool

	mu     sync.Mutex // guards cmd and cancel
	cmd    *exec.Cmd
	cancel context.CancelFunc

	wg sync.WaitGroup
}

var _ Device = (*Recorder)(nil)

// NewRecorder creates a Recorder with the given capture format. Zero-valued
// fields fall back to [DefaultConfig].
func NewRecorder(cfg Config) *Recorder {
	def := DefaultConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = def.FrameSize
	}
	return &Recorder{cfg: cfg}
}

// Start spawns the first available recorder backend and begins delivering
// frames. Returns [ErrDeviceUnavailable] if no backend binary is on PATH.
func (r *Recorder) Start(ctx context.Context) (<-chan audio.Frame, <-chan error, error) {
	if r.recording.Load() {
		return nil, nil, errors.New("capture: already recording")
	}

	be, err := selectBackend()
	if err != nil {
		return nil, nil, err
	}

	captureCtx, cancel := context.WithCancel(ctx)

	frameCh := make(chan audio.Frame, 16)
	errCh := make(chan error, 1)

	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	r.recording.Store(true)
	r.wg.Add(1)
	go r.captureLoop(captureCtx, be, frameCh, errCh)

	return frameCh, errCh, nil
}

// Stop cancels the capture process. The frame channel closes once the child
// process exits and the final partial frame has been discarded.
func (r *Recorder) Stop() error {
	if !r.recording.Load() {
		return nil
	}

	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// Wait blocks until the capture goroutine has fully exited. Mainly useful in
// tests and during shutdown.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) captureLoop(ctx context.Context, be backend, frameCh chan<- audio.Frame, errCh chan<- error) {
	defer func() {
		close(frameCh)
		close(errCh)
		r.recording.Store(false)

		// Reap the child process.
		r.mu.Lock()
		if r.cmd != nil {
			_ = r.cmd.Wait()
			r.cmd = nil
		}
		r.cancel = nil
		r.mu.Unlock()

		r.wg.Done()
	}()

	cmd := exec.CommandContext(ctx, be.binary, be.args(r.cfg)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		emitErr(errCh, fmt.Errorf("capture: stdout pipe: %w", err))
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		emitErr(errCh, fmt.Errorf("capture: stderr pipe: %w", err))
		return
	}

	r.mu.Lock()
	r.cmd = cmd
	r.mu.Unlock()

	if err := cmd.Start(); err != nil {
		emitErr(errCh, fmt.Errorf("capture: start %s: %w", be.binary, err))
		return
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Debug("capture backend stderr", "backend", be.binary, "line", scanner.Text())
		}
	}()

	frameBytes := r.cfg.FrameSize * 2 // 16-bit samples
	buf := make([]byte, frameBytes)
	start := time.Now()
	var dropped int
	lastDropLog := start

	reader := bufio.NewReaderSize(stdout, frameBytes*4)
	for {
		if _, err := io.ReadFull(reader, buf); err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				// The backend process died while capture was still wanted.
				emitErr(errCh, fmt.Errorf("capture: %s exited mid-stream: %w", be.binary, ErrDeviceUnavailable))
				return
			}
			// Transient read failure: log, skip, keep capturing.
			slog.Warn("capture read failed, skipping frame", "err", err)
			continue
		}

		frame := audio.Frame{
			Samples:    audio.PCM16ToFloat32(buf),
			SampleRate: r.cfg.SampleRate,
			Timestamp:  time.Since(start),
		}

		select {
		case frameCh <- frame:
		case <-ctx.Done():
			return
		default:
			dropped++
			if time.Since(lastDropLog) > time.Second {
				slog.Warn("capture dropped frames, consumer too slow", "count", dropped)
				lastDropLog = time.Now()
				dropped = 0
			}
		}
	}
}

// Probe reports whether a capture backend is available without starting a
// recording. Returns [ErrDeviceUnavailable] when none is found.
func Probe() error {
	_, err := selectBackend()
	return err
}

func selectBackend() (backend, error) {
	for _, be := range backends {
		if _, err := exec.LookPath(be.binary); err == nil {
			return be, nil
		}
	}
	return backend{}, fmt.Errorf("%w: none of pw-record, parec, arecord found on PATH", ErrDeviceUnavailable)
}

func emitErr(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
}
