// Package conversation drives a voice session from wake-word activation to
// spoken answer. It owns the session state; the wake gate, recorder, remote
// client and player are all driven from the single Run loop.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/spf13/afero"

	"github.com/mahatoankit/CampusConvo/clients/inference"
	"github.com/mahatoankit/CampusConvo/endpointing"
	"github.com/mahatoankit/CampusConvo/playback"
	"github.com/mahatoankit/CampusConvo/wake_word"
	"github.com/mahatoankit/CampusConvo/wavenc"
)

// ErrTooManyFailures ends the session after the configured number of
// consecutive remote failures. Looping forever against a down service helps
// nobody.
var ErrTooManyFailures = errors.New("conversation: too many consecutive remote failures")

// Transcripts shorter than this are treated as nothing heard. Whisper-style
// models emit one or two punctuation characters for pure noise.
const minTranscriptRunes = 3

type Config struct {
	Gate     Gate
	Recorder Recorder
	Client   inference.API
	Player   playback.Interface
	FileSys  afero.Fs

	ExitPhrases []string
	Greeting    string
	Goodbye     string

	MaxConsecutiveErrors int
}

type Machine struct {
	gate     Gate
	recorder Recorder
	client   inference.API
	player   playback.Interface
	fileSys  afero.Fs

	exitPhrases []string
	greeting    string
	goodbye     string
	maxErrors   int

	mu       sync.Mutex
	state    State
	errCount int
}

func New(cfg *Config) (*Machine, error) {
	if cfg == nil {
		return nil, errors.New("conversation: config is nil")
	}

	if cfg.Gate == nil {
		return nil, errors.New("conversation: gate is nil")
	}

	if cfg.Recorder == nil {
		return nil, errors.New("conversation: recorder is nil")
	}

	if cfg.Client == nil {
		return nil, errors.New("conversation: client is nil")
	}

	if cfg.Player == nil {
		return nil, errors.New("conversation: player is nil")
	}

	if cfg.FileSys == nil {
		return nil, errors.New("conversation: fileSys is nil")
	}

	if len(cfg.ExitPhrases) == 0 {
		return nil, errors.New("conversation: no exit phrases configured")
	}

	if cfg.MaxConsecutiveErrors < 1 {
		return nil, errors.New("conversation: max consecutive errors must be at least 1")
	}

	return &Machine{
		gate:        cfg.Gate,
		recorder:    cfg.Recorder,
		client:      cfg.Client,
		player:      cfg.Player,
		fileSys:     cfg.FileSys,
		exitPhrases: cfg.ExitPhrases,
		greeting:    cfg.Greeting,
		goodbye:     cfg.Goodbye,
		maxErrors:   cfg.MaxConsecutiveErrors,
		state:       StateIdleListening,
	}, nil
}

// State reports the current session state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

func (m *Machine) setState(next State) {
	m.mu.Lock()
	prev := m.state
	m.state = next
	m.mu.Unlock()

	if prev != next {
		slog.Debug("session state changed", "from", prev, "to", next)
	}
}

// Run processes activations until an exit phrase is heard, the failure
// budget runs out, or ctx ends. It is the only goroutine that mutates the
// session state.
func (m *Machine) Run(ctx context.Context) error {
	for {
		m.setState(StateIdleListening)

		select {
		case <-ctx.Done():
			return nil
		case activation, ok := <-m.gate.Events():
			if !ok {
				return nil
			}

			exit, err := m.handleActivation(ctx, activation)
			if err != nil {
				m.setState(StateExiting)

				return err
			}

			if exit {
				m.setState(StateExiting)
				m.sayGoodbye(ctx)

				return nil
			}

			if ctx.Err() != nil {
				return nil
			}
		}
	}
}

// handleActivation runs one activated session round: greet, record the
// question, transcribe, answer, speak. Every remote failure is absorbed
// here; a non-nil error means only that the failure budget is spent.
func (m *Machine) handleActivation(ctx context.Context, activation wake_word.Activation) (exit bool, err error) {
	m.setState(StateActivated)

	slog.Info("conversation activated", "phrase", activation.Phrase)

	if pauseErr := m.gate.Pause(ctx); pauseErr != nil {
		slog.Warn("could not pause wake listener", "err", pauseErr)

		return false, nil
	}

	// The gate stays paused only when the process is about to end.
	defer func() {
		if !exit && err == nil {
			m.gate.Resume()
		}
	}()

	// The greeting is best effort; the question still gets recorded when
	// it cannot be spoken.
	if m.greeting != "" {
		if clip, synthErr := m.client.Synthesize(ctx, m.greeting); synthErr != nil {
			slog.Warn("greeting synthesis failed", "err", synthErr)
		} else if playErr := m.player.Play(ctx, clip); playErr != nil {
			slog.Warn("greeting playback failed", "err", playErr)
		}
	}

	m.setState(StateAwaitingQuery)

	utt, recErr := m.recorder.Record(ctx)
	if recErr != nil || utt.Empty() || utt.Reason == endpointing.ReasonNoSpeech {
		slog.Info("no question heard, going back to sleep")

		return false, nil
	}

	clip, encErr := wavenc.Encode(m.fileSys, utt.Buffer())
	if encErr != nil {
		slog.Warn("could not encode question", "err", encErr)

		return false, nil
	}

	m.setState(StateAwaitingAnswer)

	transcript, trErr := m.client.Transcribe(ctx, clip)
	if trErr != nil {
		return false, m.recordFailure("question transcription failed", trErr)
	}

	transcript = strings.TrimSpace(transcript)
	if utf8.RuneCountInString(transcript) < minTranscriptRunes {
		slog.Info("transcript too short to act on", "text", transcript)

		return false, nil
	}

	slog.Info("question transcribed", "text", transcript)

	if phrase, ok := matchExit(transcript, m.exitPhrases); ok {
		slog.Info("exit phrase heard", "phrase", phrase)

		return true, nil
	}

	answer, ansErr := m.client.Answer(ctx, transcript)
	if ansErr != nil {
		return false, m.recordFailure("answer request failed", ansErr)
	}

	voice, synthErr := m.client.Synthesize(ctx, answer.Text)
	if synthErr != nil {
		return false, m.recordFailure("answer synthesis failed", synthErr)
	}

	m.setState(StateSpeaking)

	if playErr := m.player.Play(ctx, voice); playErr != nil {
		slog.Warn("answer playback failed", "err", playErr)
	}

	m.mu.Lock()
	m.errCount = 0
	m.mu.Unlock()

	return false, nil
}

// recordFailure counts a remote failure and returns ErrTooManyFailures once
// the budget is spent, nil otherwise.
func (m *Machine) recordFailure(msg string, cause error) error {
	m.mu.Lock()
	m.errCount++
	count := m.errCount
	m.mu.Unlock()

	slog.Warn(msg, "err", cause, "consecutive", count, "budget", m.maxErrors)

	if count >= m.maxErrors {
		return ErrTooManyFailures
	}

	return nil
}

// sayGoodbye is best effort; a failed farewell never blocks shutdown.
func (m *Machine) sayGoodbye(ctx context.Context) {
	if m.goodbye == "" {
		return
	}

	clip, err := m.client.Synthesize(ctx, m.goodbye)
	if err != nil {
		slog.Warn("goodbye synthesis failed", "err", err)

		return
	}

	if err := m.player.Play(ctx, clip); err != nil {
		slog.Warn("goodbye playback failed", "err", err)
	}
}

func matchExit(transcript string, phrases []string) (string, bool) {
	lowered := strings.ToLower(transcript)

	for _, phrase := range phrases {
		p := strings.ToLower(strings.TrimSpace(phrase))
		if p != "" && strings.Contains(lowered, p) {
			return phrase, true
		}
	}

	return "", false
}
