// Package wake_word runs the background listener that gates a conversation
// behind a spoken phrase. It repeatedly records short endpointed captures,
// has them transcribed remotely, and raises an activation event when any
// configured phrase appears in the text. The heavyweight conversation flow
// never runs until then.
package wake_word

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/mahatoankit/CampusConvo/clients/inference"
	"github.com/mahatoankit/CampusConvo/endpointing"
	"github.com/mahatoankit/CampusConvo/wavenc"
)

// Recorder is one exclusive endpointed capture of the input device.
type Recorder interface {
	Record(ctx context.Context) (*endpointing.Utterance, error)
}

// Activation is published when a wake phrase was heard.
type Activation struct {
	Phrase     string
	Transcript string
	At         time.Time
}

type Config struct {
	Recorder    Recorder
	Transcriber inference.Transcriber
	FileSys     afero.Fs
	Phrases     []string
}

// Gate is the background wake-word loop. Pause is synchronous: it returns
// only once the loop is parked and the device lease released, so the caller
// can immediately take the device itself. Resume is fire-and-forget.
type Gate struct {
	recorder    Recorder
	transcriber inference.Transcriber
	fileSys     afero.Fs
	phrases     []string

	events chan Activation

	mu            sync.Mutex
	paused        bool
	parked        bool
	pauseAcks     []chan struct{}
	resumeCh      chan struct{}
	cancelCapture context.CancelFunc
}

func New(cfg *Config) (*Gate, error) {
	if cfg == nil {
		return nil, errors.New("wake_word: config is nil")
	}

	if cfg.Recorder == nil {
		return nil, errors.New("wake_word: recorder is nil")
	}

	if cfg.Transcriber == nil {
		return nil, errors.New("wake_word: transcriber is nil")
	}

	if cfg.FileSys == nil {
		return nil, errors.New("wake_word: fileSys is nil")
	}

	if len(cfg.Phrases) == 0 {
		return nil, errors.New("wake_word: no wake phrases configured")
	}

	return &Gate{
		recorder:    cfg.Recorder,
		transcriber: cfg.Transcriber,
		fileSys:     cfg.FileSys,
		phrases:     cfg.Phrases,
		events:      make(chan Activation, 1),
	}, nil
}

// Events is where activations are published. The channel is buffered; an
// activation raised while a previous one is still unread is dropped rather
// than blocking the loop.
func (g *Gate) Events() <-chan Activation {
	return g.events
}

// Run is the listening loop. It returns when ctx ends.
func (g *Gate) Run(ctx context.Context) error {
	slog.Info("listening for wake word", "phrases", g.phrases)

	for {
		if !g.waitWhilePaused(ctx) {
			return nil
		}

		utt := g.capture(ctx)

		if ctx.Err() != nil {
			return nil
		}

		if utt.Empty() || utt.Reason == endpointing.ReasonNoSpeech {
			continue
		}

		clip, err := wavenc.Encode(g.fileSys, utt.Buffer())
		if err != nil {
			slog.Warn("could not encode wake capture", "err", err)

			continue
		}

		text, err := g.transcriber.Transcribe(ctx, clip)
		if err != nil {
			// Transient service failures must never take the listener down.
			slog.Warn("wake transcription failed", "err", err)

			continue
		}

		phrase, ok := Match(text, g.phrases)
		if !ok {
			slog.Debug("no wake phrase heard", "text", text)

			continue
		}

		slog.Info("wake word detected", "phrase", phrase, "text", text)

		g.mu.Lock()
		g.paused = true
		g.mu.Unlock()

		select {
		case g.events <- Activation{Phrase: phrase, Transcript: text, At: time.Now()}:
		default:
			slog.Warn("dropping activation, previous one still unhandled")
		}
	}
}

// capture runs one recording pass under a cancel scope that Pause can use
// to interrupt it, bounding pause latency by one frame duration.
func (g *Gate) capture(ctx context.Context) *endpointing.Utterance {
	capCtx, cancel := context.WithCancel(ctx)

	g.mu.Lock()
	g.cancelCapture = cancel
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.cancelCapture = nil
		g.mu.Unlock()

		cancel()
	}()

	utt, err := g.recorder.Record(capCtx)
	if err != nil || utt == nil {
		if err != nil && capCtx.Err() == nil {
			slog.Warn("wake capture failed", "err", err)
		}

		return &endpointing.Utterance{Reason: endpointing.ReasonNoSpeech}
	}

	return utt
}

// waitWhilePaused parks the loop while paused and acknowledges every waiting
// Pause caller at the moment the loop is demonstrably idle. Returns false
// when ctx ended.
func (g *Gate) waitWhilePaused(ctx context.Context) bool {
	for {
		if ctx.Err() != nil {
			g.mu.Lock()
			g.ackPausesLocked()
			g.mu.Unlock()

			return false
		}

		g.mu.Lock()

		if !g.paused {
			g.parked = false
			g.mu.Unlock()

			return true
		}

		g.parked = true
		g.ackPausesLocked()

		resumed := make(chan struct{})
		g.resumeCh = resumed
		g.mu.Unlock()

		select {
		case <-resumed:
		case <-ctx.Done():
		}
	}
}

func (g *Gate) ackPausesLocked() {
	for _, ack := range g.pauseAcks {
		close(ack)
	}

	g.pauseAcks = nil
}

// Pause stops the loop and returns once it is fully parked, not merely
// signalled. An in-flight capture is cancelled so the wait is short.
func (g *Gate) Pause(ctx context.Context) error {
	g.mu.Lock()

	if g.paused && g.parked {
		g.mu.Unlock()

		return nil
	}

	g.paused = true

	ack := make(chan struct{})
	g.pauseAcks = append(g.pauseAcks, ack)

	if g.cancelCapture != nil {
		g.cancelCapture()
	}

	g.mu.Unlock()

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wake_word: waiting for pause: %w", ctx.Err())
	}
}

// Resume lets the loop listen again. The gate reacquires the device on its
// own schedule.
func (g *Gate) Resume() {
	g.mu.Lock()

	if g.paused {
		g.paused = false

		if g.resumeCh != nil {
			close(g.resumeCh)
			g.resumeCh = nil
		}
	}

	g.mu.Unlock()
}

// Match reports whether any phrase is contained in the transcript. Both
// sides are lower-cased and stripped to letters, digits and spaces first,
// so "Hello, Zyra please" matches "hello zyra".
func Match(text string, phrases []string) (string, bool) {
	normalized := normalize(text)
	if normalized == "" {
		return "", false
	}

	for _, phrase := range phrases {
		p := normalize(phrase)
		if p != "" && strings.Contains(normalized, p) {
			return phrase, true
		}
	}

	return "", false
}

func normalize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == ' ' {
			return r
		}

		return -1
	}, s)

	return strings.ToLower(strings.TrimSpace(mapped))
}
