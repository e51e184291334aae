package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
)

// playback backends tried in order. All read an encoded clip from stdin.
var players = []struct {
	name string
	args []string
}{
	{"mpg123", []string{"-q", "-"}},
	{"ffplay", []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-i", "-"}},
	{"mplayer", []string{"-really-quiet", "-"}},
}

// Speaker speaks confirmation phrases asynchronously. Say never blocks:
// phrases are queued and synthesized by a single worker, and a phrase is
// dropped with a warning when the queue is full. Recognition latency is
// never a function of playback.
type Speaker struct {
	provider Provider
	player   string
	args     []string

	queue chan string

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSpeaker creates a Speaker over provider. It probes for a playback
// binary; when none is found the Speaker still accepts phrases and logs
// them instead of playing, so the host keeps working on machines without
// audio output.
func NewSpeaker(provider Provider, queueSize int) *Speaker {
	if queueSize <= 0 {
		queueSize = 8
	}
	s := &Speaker{
		provider: provider,
		queue:    make(chan string, queueSize),
	}
	for _, p := range players {
		if _, err := exec.LookPath(p.name); err == nil {
			s.player = p.name
			s.args = p.args
			break
		}
	}
	if s.player == "" {
		slog.Warn("no audio player found, confirmations will be logged only")
	}
	return s
}

// Start launches the playback worker. It returns an error if the Speaker
// is already running.
func (s *Speaker) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("tts: speaker already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.started = true
	go s.loop(ctx)
	return nil
}

// Close stops the worker. Queued phrases that have not begun synthesis
// are discarded.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.cancel()
	<-s.done
	s.started = false
	return nil
}

// Say enqueues a phrase for speaking. It never blocks; when the queue is
// full the phrase is dropped with a warning.
func (s *Speaker) Say(text string) {
	if text == "" {
		return
	}
	select {
	case s.queue <- text:
	default:
		slog.Warn("confirmation queue full, dropping phrase", "text", text)
	}
}

func (s *Speaker) loop(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-s.queue:
			s.speak(ctx, text)
		}
	}
}

func (s *Speaker) speak(ctx context.Context, text string) {
	if s.provider == nil || s.player == "" {
		slog.Info("confirmation", "text", text)
		return
	}
	clip, err := s.provider.Synthesize(ctx, text)
	if err != nil {
		slog.Warn("synthesis failed, confirmation skipped", "err", err, "text", text)
		return
	}
	cmd := exec.CommandContext(ctx, s.player, s.args...)
	cmd.Stdin = bytes.NewReader(clip)
	if err := cmd.Run(); err != nil && ctx.Err() == nil {
		slog.Warn("audio playback failed", "err", err, "player", s.player)
	}
}
