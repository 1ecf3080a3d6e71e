package endpointing

import (
	"context"
	"errors"
	"testing"
	"time"
)

// markClassifier classifies a frame as speech when its first sample is
// non-zero, so tests can script frame sequences directly in the samples.
type markClassifier struct{}

func (markClassifier) Classify(frame []int16) (bool, error) { return frame[0] != 0, nil }
func (markClassifier) Name() string                         { return "mark" }
func (markClassifier) SampleRate() int                      { return 16000 }
func (markClassifier) FrameDuration() time.Duration         { return 20 * time.Millisecond }
func (markClassifier) SamplesPerFrame() int                 { return 4 }

// scriptSource yields one frame per listed bool: true frames are speech.
type scriptSource struct {
	script []bool
	pos    int
	err    error
	errAt  int
}

func (s *scriptSource) ReadFrame(ctx context.Context) (Frame, error) {
	if s.err != nil && s.pos == s.errAt {
		return Frame{}, s.err
	}

	if s.pos >= len(s.script) {
		return Frame{}, errors.New("script exhausted")
	}

	samples := make([]int16, 4)
	if s.script[s.pos] {
		samples[0] = 1000
	}

	frame := Frame{Samples: samples, Index: s.pos}
	s.pos++

	return frame, nil
}

func frames(speech bool, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = speech
	}

	return out
}

func newTestEngine(t *testing.T, silence, max, minSpeech int) *Engine {
	t.Helper()

	frameDur := 20 * time.Millisecond

	engine, err := New(markClassifier{}, &Config{
		SilenceThreshold:     time.Duration(silence) * frameDur,
		MaxDuration:          time.Duration(max) * frameDur,
		MinConsecutiveSpeech: time.Duration(minSpeech) * frameDur,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return engine
}

func TestEngine_Capture_SilenceTimeout(t *testing.T) {
	// 5 silence, 15 speech, 60 silence: recording starts once 10 consecutive
	// speech frames are seen, the pre-roll restores the full speech run, and
	// the capture ends after 50 trailing silence frames.
	engine := newTestEngine(t, 50, 500, 10)

	var script []bool
	script = append(script, frames(false, 5)...)
	script = append(script, frames(true, 15)...)
	script = append(script, frames(false, 60)...)

	utt, err := engine.Capture(context.Background(), &scriptSource{script: script})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if utt.Reason != ReasonSilenceTimeout {
		t.Errorf("expected reason %q, got %q", ReasonSilenceTimeout, utt.Reason)
	}

	// 15 speech frames plus the 50 silence frames that ended the capture.
	if utt.Frames() != 65 {
		t.Errorf("expected 65 frames, got %d", utt.Frames())
	}

	if utt.Duration() != 65*20*time.Millisecond {
		t.Errorf("unexpected duration %s", utt.Duration())
	}

	if len(utt.Samples()) != 65*4 {
		t.Errorf("expected %d samples, got %d", 65*4, len(utt.Samples()))
	}

	// The first retained sample belongs to a speech frame: the arming run was
	// written from the pre-roll, the leading silence was not.
	if utt.Samples()[0] == 0 {
		t.Error("expected utterance to start with a speech frame")
	}
}

func TestEngine_Capture_NoSpeech(t *testing.T) {
	engine := newTestEngine(t, 50, 100, 10)

	utt, err := engine.Capture(context.Background(), &scriptSource{script: frames(false, 100)})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if utt.Reason != ReasonNoSpeech {
		t.Errorf("expected reason %q, got %q", ReasonNoSpeech, utt.Reason)
	}

	if !utt.Empty() {
		t.Errorf("expected empty utterance, got %d frames", utt.Frames())
	}
}

func TestEngine_Capture_ShortBurstsNeverArm(t *testing.T) {
	// Speech runs shorter than the minimum keep the engine armed; it must
	// terminate with no-speech-detected and retain nothing.
	engine := newTestEngine(t, 50, 100, 10)

	var script []bool
	for i := 0; i < 10; i++ {
		script = append(script, frames(true, 9)...)
		script = append(script, false)
	}

	utt, err := engine.Capture(context.Background(), &scriptSource{script: script})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if utt.Reason != ReasonNoSpeech {
		t.Errorf("expected reason %q, got %q", ReasonNoSpeech, utt.Reason)
	}

	if !utt.Empty() {
		t.Error("expected empty utterance")
	}
}

func TestEngine_Capture_MaxDuration(t *testing.T) {
	// Speech never stops: the capture ends at the duration budget.
	engine := newTestEngine(t, 50, 100, 10)

	utt, err := engine.Capture(context.Background(), &scriptSource{script: frames(true, 200)})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if utt.Reason != ReasonMaxDuration {
		t.Errorf("expected reason %q, got %q", ReasonMaxDuration, utt.Reason)
	}

	if utt.Frames() != 100 {
		t.Errorf("expected 100 frames, got %d", utt.Frames())
	}
}

func TestEngine_Capture_IsolatedSilenceTolerated(t *testing.T) {
	// A single silence frame inside a recording must not end the capture.
	engine := newTestEngine(t, 5, 200, 3)

	var script []bool
	script = append(script, frames(true, 10)...)
	script = append(script, false)
	script = append(script, frames(true, 10)...)
	script = append(script, frames(false, 5)...)

	utt, err := engine.Capture(context.Background(), &scriptSource{script: script})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if utt.Reason != ReasonSilenceTimeout {
		t.Errorf("expected reason %q, got %q", ReasonSilenceTimeout, utt.Reason)
	}

	if utt.Frames() != 26 {
		t.Errorf("expected 26 frames, got %d", utt.Frames())
	}
}

func TestEngine_Capture_DeviceErrorAbandons(t *testing.T) {
	engine := newTestEngine(t, 50, 100, 10)

	src := &scriptSource{
		script: frames(true, 100),
		err:    errors.New("input overflowed"),
		errAt:  20,
	}

	utt, err := engine.Capture(context.Background(), src)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if utt.Reason != ReasonNoSpeech {
		t.Errorf("expected abandoned capture reason %q, got %q", ReasonNoSpeech, utt.Reason)
	}

	if !utt.Empty() {
		t.Error("expected abandoned capture to be empty")
	}
}

func TestEngine_Capture_CancelledContext(t *testing.T) {
	engine := newTestEngine(t, 50, 100, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	utt, err := engine.Capture(ctx, &scriptSource{script: frames(true, 100)})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if utt.Reason != ReasonNoSpeech || !utt.Empty() {
		t.Error("expected cancelled capture to be empty with no-speech reason")
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero silence threshold", Config{MaxDuration: time.Second, MinConsecutiveSpeech: time.Millisecond}},
		{"max below silence", Config{SilenceThreshold: time.Second, MaxDuration: time.Second, MinConsecutiveSpeech: time.Millisecond}},
		{"zero min speech", Config{SilenceThreshold: time.Second, MaxDuration: 2 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(markClassifier{}, &tt.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}

	if _, err := New(nil, &Config{SilenceThreshold: time.Second, MaxDuration: 2 * time.Second, MinConsecutiveSpeech: time.Millisecond}); err == nil {
		t.Error("expected error for nil classifier")
	}
}
