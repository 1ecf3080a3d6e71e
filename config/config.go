// Package config holds the client configuration: audio capture parameters,
// endpointing thresholds, phrase sets and the remote service endpoints.
// Loaded once at startup and treated as immutable afterwards.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings such as
// "800ms" or "2s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("config: duration must be a string: %w", err)
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}

	d.Duration = parsed

	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

type Server struct {
	BaseURL      string   `yaml:"base_url"`
	WebsocketURL string   `yaml:"websocket_url"`
	Timeout      Duration `yaml:"timeout"`
}

type Audio struct {
	SampleRate    int      `yaml:"sample_rate"`
	FrameDuration Duration `yaml:"frame_duration"`
}

type VAD struct {
	Engine         string `yaml:"engine"`
	Aggressiveness int    `yaml:"aggressiveness"`
}

// Capture is one endpointing profile. The wake listener uses a short
// silence threshold, full questions a longer one.
type Capture struct {
	SilenceThreshold Duration `yaml:"silence_threshold"`
	MaxDuration      Duration `yaml:"max_duration"`
}

type Conversation struct {
	ExitPhrases          []string `yaml:"exit_phrases"`
	Greeting             string   `yaml:"greeting"`
	Goodbye              string   `yaml:"goodbye"`
	MaxConsecutiveErrors int      `yaml:"max_consecutive_errors"`
}

type Config struct {
	LogLevel string `yaml:"log_level"`

	Server Server `yaml:"server"`
	Audio  Audio  `yaml:"audio"`
	VAD    VAD    `yaml:"vad"`

	WakePhrases          []string `yaml:"wake_phrases"`
	WakeCapture          Capture  `yaml:"wake_capture"`
	QueryCapture         Capture  `yaml:"query_capture"`
	MinConsecutiveSpeech Duration `yaml:"min_consecutive_speech"`

	Conversation Conversation `yaml:"conversation"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server: Server{
			BaseURL:      "http://localhost:8000",
			WebsocketURL: "ws://localhost:8000/ws",
			Timeout:      Duration{30 * time.Second},
		},
		Audio: Audio{
			SampleRate:    16000,
			FrameDuration: Duration{20 * time.Millisecond},
		},
		VAD: VAD{
			Engine:         "webrtc",
			Aggressiveness: 3,
		},
		WakePhrases: []string{"hello zyra", "hey zyra"},
		WakeCapture: Capture{
			SilenceThreshold: Duration{800 * time.Millisecond},
			MaxDuration:      Duration{5 * time.Second},
		},
		QueryCapture: Capture{
			SilenceThreshold: Duration{2 * time.Second},
			MaxDuration:      Duration{10 * time.Second},
		},
		MinConsecutiveSpeech: Duration{200 * time.Millisecond},
		Conversation: Conversation{
			ExitPhrases:          []string{"bye zyra", "goodbye zyra", "exit"},
			Greeting:             "Hi! What would you like to know?",
			Goodbye:              "Goodbye! Talk to you later.",
			MaxConsecutiveErrors: 3,
		},
	}
}

// Validate collects every configuration failure rather than stopping at the
// first, so a broken file is fixed in one pass.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.BaseURL == "" {
		errs = append(errs, errors.New("config: server.base_url is empty"))
	}

	if c.Server.WebsocketURL == "" {
		errs = append(errs, errors.New("config: server.websocket_url is empty"))
	}

	if c.Server.Timeout.Duration <= 0 {
		errs = append(errs, errors.New("config: server.timeout must be positive"))
	}

	if c.Audio.SampleRate != 16000 {
		errs = append(errs, fmt.Errorf("config: sample rate must be 16000, got %d", c.Audio.SampleRate))
	}

	switch c.Audio.FrameDuration.Duration {
	case 10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond:
	default:
		errs = append(errs, fmt.Errorf("config: frame duration must be 10ms, 20ms or 30ms, got %s",
			c.Audio.FrameDuration))
	}

	switch c.VAD.Engine {
	case "webrtc", "flux":
	default:
		errs = append(errs, fmt.Errorf("config: unknown vad engine %q", c.VAD.Engine))
	}

	if c.VAD.Aggressiveness < 0 || c.VAD.Aggressiveness > 3 {
		errs = append(errs, fmt.Errorf("config: aggressiveness must be 0-3, got %d", c.VAD.Aggressiveness))
	}

	if len(c.WakePhrases) == 0 {
		errs = append(errs, errors.New("config: wake_phrases is empty"))
	}

	errs = append(errs, c.WakeCapture.validate("wake_capture")...)
	errs = append(errs, c.QueryCapture.validate("query_capture")...)

	if c.MinConsecutiveSpeech.Duration <= 0 {
		errs = append(errs, errors.New("config: min_consecutive_speech must be positive"))
	}

	if len(c.Conversation.ExitPhrases) == 0 {
		errs = append(errs, errors.New("config: conversation.exit_phrases is empty"))
	}

	if c.Conversation.MaxConsecutiveErrors < 1 {
		errs = append(errs, errors.New("config: conversation.max_consecutive_errors must be at least 1"))
	}

	return errors.Join(errs...)
}

func (c *Capture) validate(name string) []error {
	var errs []error

	if c.SilenceThreshold.Duration <= 0 {
		errs = append(errs, fmt.Errorf("config: %s.silence_threshold must be positive", name))
	}

	if c.MaxDuration.Duration <= c.SilenceThreshold.Duration {
		errs = append(errs, fmt.Errorf("config: %s.max_duration must exceed the silence threshold", name))
	}

	return errs
}

// Level maps the configured log level onto slog's vocabulary.
func (c *Config) Level() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
}
