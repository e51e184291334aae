// Command scorevox is the voice grade-entry assistant. It listens to the
// microphone, recognizes spoken (student, score) pairs, and writes them
// into an Excel roster.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scorevox/scorevox/internal/app"
	"github.com/scorevox/scorevox/internal/config"
	"github.com/scorevox/scorevox/internal/health"
	"github.com/scorevox/scorevox/internal/observe"
	"github.com/scorevox/scorevox/internal/resilience"
	"github.com/scorevox/scorevox/internal/roster"
	"github.com/scorevox/scorevox/internal/segment"
	"github.com/scorevox/scorevox/internal/session"
	"github.com/scorevox/scorevox/internal/transcribe"
	"github.com/scorevox/scorevox/pkg/audio/capture"
	"github.com/scorevox/scorevox/pkg/provider/stt"
	sttopenai "github.com/scorevox/scorevox/pkg/provider/stt/openai"
	"github.com/scorevox/scorevox/pkg/provider/stt/whisper"
	"github.com/scorevox/scorevox/pkg/provider/tts"
	ttsopenai "github.com/scorevox/scorevox/pkg/provider/tts/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	rosterPath := flag.String("roster", "", "path to the roster .xlsx (overrides the config file)")
	dryRun := flag.Bool("dry-run", false, "recognize and log, but do not touch any roster file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scorevox: %v\n", err)
		return 1
	}
	if *rosterPath != "" {
		cfg.Roster.Path = *rosterPath
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("scorevox starting",
		"config", *configPath,
		"stt", cfg.Providers.STT.Name,
		"roster", cfg.Roster.Path,
		"dry_run", *dryRun,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics.
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()
	if cfg.Server.MetricsAddr != "" {
		go serveMetrics(cfg.Server.MetricsAddr, readinessCheckers(cfg, *dryRun))
	}

	// Speech-to-text provider. A broken model setup is fatal here, before
	// any audio is captured.
	provider, err := buildSTT(cfg.Providers.STT)
	if err != nil {
		if errors.Is(err, stt.ErrModelUnavailable) {
			slog.Error("speech model unavailable, check providers.stt in the config", "err", err)
		} else {
			slog.Error("failed to build stt provider", "err", err)
		}
		return 1
	}
	if fb := cfg.Providers.STTFallback; fb != nil {
		fallback, err := buildSTT(*fb)
		if err != nil {
			slog.Warn("failed to build fallback stt provider, continuing without it", "err", err)
		} else {
			failover := resilience.NewSTTFailover(cfg.Providers.STT.Name, provider, 0, 0)
			failover.AddFallback(fb.Name, fallback)
			provider = failover
			slog.Info("stt failover enabled", "primary", cfg.Providers.STT.Name, "fallback", fb.Name)
		}
	}
	defer provider.Close()

	// Roster.
	var store roster.Store
	if *dryRun {
		store = roster.NewMemory(nil)
		slog.Info("dry run, writes go to an in-memory roster")
	} else {
		if cfg.Roster.Path == "" {
			slog.Error("no roster configured, set roster.path or pass -roster")
			return 1
		}
		excel, err := roster.Open(cfg.Roster.Path, cfg.Roster.Sheet, cfg.Roster.ScoreHeader)
		if err != nil {
			slog.Error("failed to open roster", "err", err)
			return 1
		}
		defer excel.Close()
		store = excel
	}

	// Spoken confirmations.
	var speaker *tts.Speaker
	if cfg.Roster.Speak && cfg.Providers.TTS.Name != "" && cfg.Providers.TTS.Name != "none" {
		ttsProvider, err := buildTTS(cfg.Providers.TTS)
		if err != nil {
			slog.Warn("failed to build tts provider, confirmations disabled", "err", err)
		} else {
			speaker = tts.NewSpeaker(ttsProvider, 0)
			if err := speaker.Start(ctx); err != nil {
				slog.Warn("failed to start speaker, confirmations disabled", "err", err)
				speaker = nil
			} else {
				defer speaker.Close()
			}
		}
	}

	// Microphone.
	device := capture.NewRecorder(capture.Config{
		SampleRate: cfg.Audio.SampleRate,
		FrameSize:  cfg.Audio.FrameSize,
		Device:     cfg.Audio.Device,
	})

	application := app.New(store, speaker, observe.DefaultMetrics())

	sess, err := session.New(session.Config{
		Device:     device,
		Provider:   provider,
		SampleRate: cfg.Audio.SampleRate,
		Segmenter: segment.Config{
			SilenceDuration:   time.Duration(cfg.VAD.SilenceMS) * time.Millisecond,
			MinSpeechDuration: time.Duration(cfg.VAD.MinSpeechMS) * time.Millisecond,
			EnergyThreshold:   cfg.VAD.EnergyThreshold,
			SmoothingWindow:   cfg.VAD.SmoothingWindow,
		},
		Adapter: transcribe.Config{
			SimilarityThreshold: cfg.Session.SimilarityThreshold,
			DuplicateWindow:     time.Duration(cfg.Session.DuplicateWindowMS) * time.Millisecond,
		},
		QueueSize: cfg.Session.QueueSize,
	})
	if err != nil {
		slog.Error("failed to build session", "err", err)
		return 1
	}

	if err := sess.Start(ctx, application.Callback(ctx)); err != nil {
		if errors.Is(err, capture.ErrDeviceUnavailable) {
			slog.Error("no capture backend found, install pipewire, pulseaudio or alsa-utils", "err", err)
		} else {
			slog.Error("failed to start session", "err", err)
		}
		return 1
	}

	slog.Info("listening, press Ctrl+C to stop")
	code := 0
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping")
	case <-sess.Done():
		if err := sess.Err(); err != nil {
			if errors.Is(err, capture.ErrDeviceUnavailable) {
				slog.Error("capture device lost, recognition stopped", "err", err)
			} else {
				slog.Error("recognition pipeline failed", "err", err)
			}
			code = 1
		} else {
			slog.Info("capture stream ended")
		}
	}

	if err := sess.Close(); err != nil {
		slog.Warn("session close error", "err", err)
	}
	if err := store.Save(); err != nil {
		slog.Error("final roster save failed", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return code
}

// serveMetrics exposes the Prometheus bridge and the health endpoints on addr.
func serveMetrics(addr string, checkers []health.Checker) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.New(checkers...).Register(mux)
	slog.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Warn("metrics endpoint error", "err", err)
	}
}

// readinessCheckers builds the /readyz checks for the configured setup.
func readinessCheckers(cfg *config.Config, dryRun bool) []health.Checker {
	checkers := []health.Checker{
		{Name: "capture", Check: func(context.Context) error { return capture.Probe() }},
	}
	if !dryRun && cfg.Roster.Path != "" {
		path := cfg.Roster.Path
		checkers = append(checkers, health.Checker{
			Name: "roster",
			Check: func(context.Context) error {
				_, err := os.Stat(path)
				return err
			},
		})
	}
	return checkers
}

// ── Provider wiring ───────────────────────────────────────────────────────────

func buildSTT(entry config.ProviderEntry) (stt.Provider, error) {
	sttOpts := stt.Options{
		Language:      optString(entry.Options, "language"),
		InitialPrompt: optString(entry.Options, "initial_prompt"),
		BeamSize:      optInt(entry.Options, "beam_size"),
		Temperature:   optFloat(entry.Options, "temperature"),
	}
	if sttOpts.InitialPrompt == "" {
		sttOpts.InitialPrompt = transcribe.DefaultPrompt
	}

	switch entry.Name {
	case "whisper-native":
		return whisper.New(entry.Model, sttOpts)
	case "openai":
		var opts []sttopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		return sttopenai.New(entry.APIKey, entry.Model, sttOpts, opts...)
	default:
		return nil, fmt.Errorf("unknown stt provider %q", entry.Name)
	}
}

func buildTTS(entry config.ProviderEntry) (tts.Provider, error) {
	switch entry.Name {
	case "openai":
		var opts []ttsopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, ttsopenai.WithBaseURL(entry.BaseURL))
		}
		if voice := optString(entry.Options, "voice"); voice != "" {
			opts = append(opts, ttsopenai.WithVoice(ttsopenai.Voice(voice)))
		}
		return ttsopenai.New(entry.APIKey, ttsopenai.Model(entry.Model), opts...)
	default:
		return nil, fmt.Errorf("unknown tts provider %q", entry.Name)
	}
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	if v, ok := opts[key].(string); ok {
		return v
	}
	return ""
}

// optInt extracts an int value from a provider Options map. YAML decodes
// small numbers as int.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// optFloat extracts a float value from a provider Options map.
func optFloat(opts map[string]any, key string) float64 {
	if opts == nil {
		return 0
	}
	switch v := opts[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
