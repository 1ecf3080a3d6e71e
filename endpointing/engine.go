package endpointing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mahatoankit/CampusConvo/ring_buffer"
	"github.com/mahatoankit/CampusConvo/vad"
)

// FrameReader yields classified-size frames from an audio device. ReadFrame
// blocks for at most one frame duration; the context is consulted before
// every read so a cancelled capture stops within one frame.
type FrameReader interface {
	ReadFrame(ctx context.Context) (Frame, error)
}

// Config holds the endpointing thresholds for one kind of capture. The wake
// listener uses a short silence threshold, full questions a longer one.
type Config struct {
	SilenceThreshold     time.Duration
	MaxDuration          time.Duration
	MinConsecutiveSpeech time.Duration
}

// Engine turns a classified frame stream into bounded utterances. Each
// Capture call runs one pass of the armed/recording machine:
//
//   - armed: count consecutive speech frames, keeping them in a pre-roll
//     ring; a silence frame resets both. Enough consecutive speech starts
//     recording with the pre-roll written first, so the utterance begins at
//     the first frame of the run that armed it.
//   - recording: every frame is retained. A silence run reaching the
//     threshold ends the capture; so does the total duration budget.
//
// Isolated misclassified frames inside a recording are tolerated; starting
// and stopping both require sustained evidence.
type Engine struct {
	classifier vad.Interface

	frameDuration   time.Duration
	sampleRate      int
	samplesPerFrame int
	silenceFrames   int
	maxFrames       int
	minSpeechFrames int
}

func New(classifier vad.Interface, cfg *Config) (*Engine, error) {
	if classifier == nil {
		return nil, fmt.Errorf("endpointing: classifier is nil")
	}

	if cfg == nil {
		return nil, fmt.Errorf("endpointing: config is nil")
	}

	if cfg.SilenceThreshold <= 0 {
		return nil, fmt.Errorf("endpointing: silence threshold %s is not positive", cfg.SilenceThreshold)
	}

	if cfg.MaxDuration <= cfg.SilenceThreshold {
		return nil, fmt.Errorf("endpointing: max duration %s must exceed silence threshold %s",
			cfg.MaxDuration, cfg.SilenceThreshold)
	}

	if cfg.MinConsecutiveSpeech <= 0 {
		return nil, fmt.Errorf("endpointing: min consecutive speech %s is not positive", cfg.MinConsecutiveSpeech)
	}

	frameDuration := classifier.FrameDuration()

	e := &Engine{
		classifier:      classifier,
		frameDuration:   frameDuration,
		sampleRate:      classifier.SampleRate(),
		samplesPerFrame: classifier.SamplesPerFrame(),
		silenceFrames:   framesFor(cfg.SilenceThreshold, frameDuration),
		maxFrames:       framesFor(cfg.MaxDuration, frameDuration),
		minSpeechFrames: framesFor(cfg.MinConsecutiveSpeech, frameDuration),
	}

	return e, nil
}

func framesFor(d, frameDuration time.Duration) int {
	frames := int(d / frameDuration)
	if frames < 1 {
		frames = 1
	}

	return frames
}

// Capture runs one endpointed recording pass. Device read failures and
// cancellation are recoverable: the capture is abandoned and returned empty
// with ReasonNoSpeech rather than surfacing an error.
func (e *Engine) Capture(ctx context.Context, src FrameReader) (*Utterance, error) {
	utt := &Utterance{
		ID:            uuid.NewString(),
		SampleRate:    e.sampleRate,
		FrameDuration: e.frameDuration,
		Reason:        ReasonNoSpeech,
	}

	preRoll := ring_buffer.New(e.minSpeechFrames * e.samplesPerFrame)

	var (
		recording  bool
		speechRun  int
		silenceRun int
	)

	for total := 0; total < e.maxFrames; total++ {
		if ctx.Err() != nil {
			return e.abandon(utt, "capture cancelled", ctx.Err()), nil
		}

		frame, err := src.ReadFrame(ctx)
		if err != nil {
			return e.abandon(utt, "device read failed", err), nil
		}

		speech, err := e.classifier.Classify(frame.Samples)
		if err != nil {
			return e.abandon(utt, "frame classification failed", err), nil
		}

		if !recording {
			if !speech {
				speechRun = 0
				preRoll.Clear()

				continue
			}

			if speechRun == 0 {
				utt.Start = time.Now()
			}

			speechRun++
			preRoll.Add(frame.Samples)

			if speechRun >= e.minSpeechFrames {
				recording = true

				utt.appendRun(preRoll.Samples(), speechRun)
				preRoll.Clear()

				slog.Debug("speech detected", "capture", utt.ID, "frame", frame.Index)
			}

			continue
		}

		utt.append(frame.Samples)

		if speech {
			silenceRun = 0

			continue
		}

		silenceRun++
		if silenceRun >= e.silenceFrames {
			utt.Reason = ReasonSilenceTimeout

			slog.Debug("speech ended",
				"capture", utt.ID, "frames", utt.Frames(), "duration", utt.Duration())

			return utt, nil
		}
	}

	if recording {
		utt.Reason = ReasonMaxDuration

		slog.Debug("capture hit duration budget", "capture", utt.ID, "frames", utt.Frames())

		return utt, nil
	}

	return utt, nil
}

// abandon resets the utterance to the empty no-speech result after a
// recoverable failure mid-capture.
func (e *Engine) abandon(utt *Utterance, msg string, err error) *Utterance {
	slog.Warn(msg, "capture", utt.ID, "err", err)

	return &Utterance{
		ID:            utt.ID,
		SampleRate:    e.sampleRate,
		FrameDuration: e.frameDuration,
		Reason:        ReasonNoSpeech,
	}
}
