package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ammosu/realtime-subtitle/internal/languages"
)

// Audio source kinds.
const (
	SourceMonitor    = "monitor"
	SourceMicrophone = "mic"
)

// Config represents the complete worker configuration.
type Config struct {
	Audio       AudioConfig       `yaml:"audio"`
	VAD         VADConfig         `yaml:"vad"`
	ASR         ASRConfig         `yaml:"asr"`
	Translation TranslationConfig `yaml:"translation"`
	HTTP        HTTPConfig        `yaml:"http"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// AudioConfig contains capture configuration.
type AudioConfig struct {
	Source        string `yaml:"source"`         // "monitor" or "mic"
	MonitorDevice string `yaml:"monitor_device"` // empty = auto-detect default output loopback
	MicDevice     string `yaml:"mic_device"`     // empty = system default microphone
}

// VADConfig contains voice activity segmentation parameters.
type VADConfig struct {
	ModelPath       string  `yaml:"model_path"`
	Threshold       float32 `yaml:"threshold"`
	SilenceFrames   int     `yaml:"silence_frames"`    // consecutive silence sub-frames before flush
	MaxBufferFrames int     `yaml:"max_buffer_frames"` // force flush at this many buffered sub-frames
}

// ASRConfig contains transcription service configuration.
type ASRConfig struct {
	Server  string `yaml:"server"`  // base URL of the ASR HTTP server
	Timeout int    `yaml:"timeout"` // seconds
}

// TranslationConfig contains translation service configuration.
type TranslationConfig struct {
	APIKey     string `yaml:"api_key"` // overridden by OPENAI_API_KEY when set
	Model      string `yaml:"model"`
	Direction  string `yaml:"direction"`   // "src→tgt"
	DebounceMS int    `yaml:"debounce_ms"` // quiet period before a translation fires
}

// HTTPConfig contains the observability HTTP server configuration.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the built-in configuration: Silero sub-frame tuning, 45s ASR
// timeout, 400ms debounce, en→zh translation.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			Source: SourceMonitor,
		},
		VAD: VADConfig{
			ModelPath:       "silero_vad_v6.onnx",
			Threshold:       0.5,
			SilenceFrames:   14,  // ~0.5s of 36ms sub-frames
			MaxBufferFrames: 222, // ~8s
		},
		ASR: ASRConfig{
			Server:  "http://localhost:8000",
			Timeout: 45,
		},
		Translation: TranslationConfig{
			Model:      "gpt-4o-mini",
			Direction:  "en→zh",
			DebounceMS: 400,
		},
		HTTP: HTTPConfig{
			Enabled: false,
			Address: "127.0.0.1",
			Port:    9090,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads the configuration file at path, merges it over the defaults,
// applies environment overrides and validates the result. A missing file is
// not an error: the defaults are returned.
func Load(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// No config file: run on defaults.
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Secrets stay out of the YAML file when possible.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.Translation.APIKey = key
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs validation of all configuration sections.
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}
	if err := c.ASR.Validate(); err != nil {
		return fmt.Errorf("asr config: %w", err)
	}
	if err := c.Translation.Validate(); err != nil {
		return fmt.Errorf("translation config: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate validates audio configuration.
func (a *AudioConfig) Validate() error {
	if a.Source != SourceMonitor && a.Source != SourceMicrophone {
		return fmt.Errorf("source must be %q or %q, got %q", SourceMonitor, SourceMicrophone, a.Source)
	}
	return nil
}

// Validate validates VAD configuration.
func (v *VADConfig) Validate() error {
	if v.ModelPath == "" {
		return fmt.Errorf("model_path cannot be empty")
	}
	if v.Threshold < 0 || v.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", v.Threshold)
	}
	if v.SilenceFrames < 1 {
		return fmt.Errorf("silence_frames must be at least 1, got %d", v.SilenceFrames)
	}
	if v.MaxBufferFrames <= v.SilenceFrames {
		return fmt.Errorf("max_buffer_frames (%d) must be greater than silence_frames (%d)",
			v.MaxBufferFrames, v.SilenceFrames)
	}
	return nil
}

// Validate validates ASR configuration.
func (a *ASRConfig) Validate() error {
	if a.Server == "" {
		return fmt.Errorf("server cannot be empty")
	}
	if !strings.HasPrefix(a.Server, "http://") && !strings.HasPrefix(a.Server, "https://") {
		return fmt.Errorf("server must be an http(s) URL, got %q", a.Server)
	}
	if a.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", a.Timeout)
	}
	return nil
}

// Validate validates translation configuration.
func (t *TranslationConfig) Validate() error {
	if t.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if t.DebounceMS < 1 {
		return fmt.Errorf("debounce_ms must be at least 1, got %d", t.DebounceMS)
	}
	if !strings.Contains(t.Direction, languages.Arrow) && !strings.Contains(t.Direction, "->") {
		return fmt.Errorf("direction must look like \"en%szh\", got %q", languages.Arrow, t.Direction)
	}
	return nil
}

// Validate validates HTTP configuration.
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
		}
		if h.Address == "" {
			return fmt.Errorf("address cannot be empty when HTTP is enabled")
		}
	}
	return nil
}

// Validate validates logging configuration.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got %q", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got %q", l.Format)
	}

	return nil
}

// GetTimeoutDuration returns the ASR request timeout as a time.Duration.
func (a *ASRConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(a.Timeout) * time.Second
}

// GetDebounceDuration returns the translation debounce delay as a time.Duration.
func (t *TranslationConfig) GetDebounceDuration() time.Duration {
	return time.Duration(t.DebounceMS) * time.Millisecond
}

// GetDirection returns the configured direction as a parsed pair.
func (t *TranslationConfig) GetDirection() languages.Direction {
	return languages.ParseDirection(t.Direction)
}
