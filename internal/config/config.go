// Package config provides the configuration schema and loader for the
// scorevox voice grade-entry assistant.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Audio     AudioConfig     `yaml:"audio"`
	VAD       VADConfig       `yaml:"vad"`
	Session   SessionConfig   `yaml:"session"`
	Roster    RosterConfig    `yaml:"roster"`
}

// ServerConfig holds logging and metrics settings.
type ServerConfig struct {
	// MetricsAddr is the TCP address the /metrics endpoint listens on
	// (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig declares which provider implementation to use for each
// capability.
type ProvidersConfig struct {
	STT ProviderEntry `yaml:"stt"`

	// STTFallback, when set, is tried whenever the primary STT backend
	// fails or its circuit breaker is open.
	STTFallback *ProviderEntry `yaml:"stt_fallback"`

	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider
// types.
type ProviderEntry struct {
	// Name selects the provider implementation (e.g., "whisper-native",
	// "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the provider. For whisper-native this is
	// the path to a ggml model file; for openai a model name like "whisper-1".
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above (e.g., "language", "beam_size", "voice").
	Options map[string]any `yaml:"options"`
}

// AudioConfig holds microphone capture settings.
type AudioConfig struct {
	// SampleRate is the capture rate in Hz. Default 16000, the rate the
	// speech models expect.
	SampleRate int `yaml:"sample_rate"`

	// FrameSize is the number of samples per capture frame. Default 1024.
	FrameSize int `yaml:"frame_size"`

	// Device overrides the capture device passed to the recording backend.
	Device string `yaml:"device"`
}

// VADConfig holds the silence-based utterance segmentation settings.
// Durations are in milliseconds.
type VADConfig struct {
	// SilenceMS is how long the signal must stay below the energy threshold
	// before the utterance is considered finished. Default 1500.
	SilenceMS int `yaml:"silence_ms"`

	// MinSpeechMS is the minimum speech duration for an utterance to be
	// kept. Default 500.
	MinSpeechMS int `yaml:"min_speech_ms"`

	// EnergyThreshold is the smoothed RMS level above which a frame counts
	// as speech. Default 0.01.
	EnergyThreshold float64 `yaml:"energy_threshold"`

	// SmoothingWindow is the number of frames RMS is averaged over.
	// Default 5.
	SmoothingWindow int `yaml:"smoothing_window"`
}

// SessionConfig holds recognition pipeline settings.
type SessionConfig struct {
	// QueueSize bounds the utterance queue between segmentation and
	// transcription. Default 8. When full, the oldest utterance is dropped.
	QueueSize int `yaml:"queue_size"`

	// SimilarityThreshold is the text-similarity ratio at or above which a
	// transcription counts as a duplicate of its predecessor. Default 0.8.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// DuplicateWindowMS is how long duplicate suppression looks back, in
	// milliseconds. Default 2000.
	DuplicateWindowMS int `yaml:"duplicate_window_ms"`
}

// RosterConfig locates the grade sheet.
type RosterConfig struct {
	// Path is the .xlsx workbook holding the student roster.
	Path string `yaml:"path"`

	// Sheet selects a worksheet by name. Empty uses the first sheet.
	Sheet string `yaml:"sheet"`

	// ScoreHeader names the column scores are written to. Default "成绩";
	// a missing column is created.
	ScoreHeader string `yaml:"score_header"`

	// Speak enables spoken confirmations after each write.
	Speak bool `yaml:"speak"`
}

// Default returns a Config with every tunable at its default value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			LogLevel: LogInfo,
		},
		Providers: ProvidersConfig{
			STT: ProviderEntry{Name: "whisper-native"},
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			FrameSize:  1024,
		},
		VAD: VADConfig{
			SilenceMS:       1500,
			MinSpeechMS:     500,
			EnergyThreshold: 0.01,
			SmoothingWindow: 5,
		},
		Session: SessionConfig{
			QueueSize:           8,
			SimilarityThreshold: 0.8,
			DuplicateWindowMS:   2000,
		},
		Roster: RosterConfig{
			ScoreHeader: "成绩",
		},
	}
}

// applyDefaults fills zero fields with the values from [Default].
func (c *Config) applyDefaults() {
	d := Default()
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = d.Server.LogLevel
	}
	if c.Providers.STT.Name == "" {
		c.Providers.STT.Name = d.Providers.STT.Name
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = d.Audio.SampleRate
	}
	if c.Audio.FrameSize == 0 {
		c.Audio.FrameSize = d.Audio.FrameSize
	}
	if c.VAD.SilenceMS == 0 {
		c.VAD.SilenceMS = d.VAD.SilenceMS
	}
	if c.VAD.MinSpeechMS == 0 {
		c.VAD.MinSpeechMS = d.VAD.MinSpeechMS
	}
	if c.VAD.EnergyThreshold == 0 {
		c.VAD.EnergyThreshold = d.VAD.EnergyThreshold
	}
	if c.VAD.SmoothingWindow == 0 {
		c.VAD.SmoothingWindow = d.VAD.SmoothingWindow
	}
	if c.Session.QueueSize == 0 {
		c.Session.QueueSize = d.Session.QueueSize
	}
	if c.Session.SimilarityThreshold == 0 {
		c.Session.SimilarityThreshold = d.Session.SimilarityThreshold
	}
	if c.Session.DuplicateWindowMS == 0 {
		c.Session.DuplicateWindowMS = d.Session.DuplicateWindowMS
	}
	if c.Roster.ScoreHeader == "" {
		c.Roster.ScoreHeader = d.Roster.ScoreHeader
	}
}
