package vad

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Config selects and parameterizes a classifier engine.
type Config struct {
	Engine         string
	SampleRate     int
	FrameDuration  time.Duration
	Aggressiveness int
}

type constructor func(sampleRate int, frameDuration time.Duration, aggressiveness int) (Interface, error)

// engineOrder is the ordered fallback list per configured engine name. The
// choice is made once at startup; failures move down the list instead of
// re-probing per capture.
var engineOrder = map[string][]struct {
	name  string
	build constructor
}{
	"webrtc": {{"webrtc", NewWebRTC}, {"flux", NewFlux}},
	"flux":   {{"flux", NewFlux}},
}

// New builds the configured classifier, falling back through the engine list
// when a preferred engine cannot initialize. Illegal frame durations or
// aggressiveness values fail every engine, so they still fail startup.
func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, errors.New("vad: config is nil")
	}

	order, ok := engineOrder[cfg.Engine]
	if !ok {
		return nil, fmt.Errorf("vad: unknown engine %q", cfg.Engine)
	}

	var errs []error

	for _, candidate := range order {
		engine, err := candidate.build(cfg.SampleRate, cfg.FrameDuration, cfg.Aggressiveness)
		if err != nil {
			slog.Warn("vad engine unavailable", "engine", candidate.name, "err", err)
			errs = append(errs, err)

			continue
		}

		if candidate.name != cfg.Engine {
			slog.Warn("falling back to alternate vad engine", "want", cfg.Engine, "using", candidate.name)
		}

		return engine, nil
	}

	return nil, fmt.Errorf("vad: no usable engine: %w", errors.Join(errs...))
}
