package frame_source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/mahatoankit/CampusConvo/endpointing"
)

// Config describes the one physical input device the process reads from.
type Config struct {
	SampleRate    int
	FrameDuration time.Duration
}

// Source owns the microphone stream exclusively. It is opened once at
// startup; captures start and stop the stream but never reopen the device.
// Access is arbitrated by a Lease, never shared.
type Source struct {
	stream       *portaudio.Stream
	buffer       []int16
	sampleRate   int
	sequence     int
	started      bool
	audioRunning bool
}

func Open(cfg *Config) (*Source, error) {
	if cfg == nil {
		return nil, fmt.Errorf("frame_source: config is nil")
	}

	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("frame_source: sample rate %d is not positive", cfg.SampleRate)
	}

	samplesPerFrame := cfg.SampleRate * int(cfg.FrameDuration/time.Millisecond) / 1000
	if samplesPerFrame <= 0 {
		return nil, fmt.Errorf("frame_source: frame duration %s is not positive", cfg.FrameDuration)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("frame_source: init portaudio: %w", err)
	}

	s := &Source{
		buffer:       make([]int16, samplesPerFrame),
		sampleRate:   cfg.SampleRate,
		audioRunning: true,
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(cfg.SampleRate), len(s.buffer), s.buffer)
	if err != nil {
		s.terminate()

		return nil, fmt.Errorf("frame_source: open default stream: %w", err)
	}

	s.stream = stream

	slog.Info("audio input device opened",
		"sample_rate", cfg.SampleRate,
		"frame_duration", cfg.FrameDuration,
		"samples_per_frame", samplesPerFrame,
	)

	return s, nil
}

// Start begins the stream ahead of a capture. Frames read before Start are
// not defined; callers pair it with Stop around every capture.
func (s *Source) Start() error {
	if s.started {
		return nil
	}

	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("frame_source: start stream: %w", err)
	}

	s.started = true

	return nil
}

func (s *Source) Stop() {
	if !s.started {
		return
	}

	if err := s.stream.Stop(); err != nil {
		slog.Warn("error stopping audio stream", "err", err)
	}

	s.started = false
}

// ReadFrame blocks for one frame of audio. An overrun or any other read
// failure is returned to the caller, which abandons the current capture;
// the device stays usable for the next one.
func (s *Source) ReadFrame(ctx context.Context) (endpointing.Frame, error) {
	if err := ctx.Err(); err != nil {
		return endpointing.Frame{}, err
	}

	if err := s.stream.Read(); err != nil {
		return endpointing.Frame{}, fmt.Errorf("frame_source: read: %w", err)
	}

	samples := make([]int16, len(s.buffer))
	copy(samples, s.buffer)

	frame := endpointing.Frame{Samples: samples, Index: s.sequence}
	s.sequence++

	return frame, nil
}

func (s *Source) Close() {
	s.Stop()

	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			slog.Warn("error closing audio stream", "err", err)
		}
	}

	s.terminate()
}

func (s *Source) terminate() {
	if !s.audioRunning {
		return
	}

	if err := portaudio.Terminate(); err != nil {
		slog.Warn("error while freeing audio", "err", err)
	}

	s.audioRunning = false
}
