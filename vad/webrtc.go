package vad

import (
	"fmt"
	"sync"
	"time"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

// webrtcImpl wraps the WebRTC VAD engine, the same classifier contract the
// assistant has always been tuned against: 16-bit mono PCM, 10/20/30 ms
// frames, aggressiveness 0 (least) to 3 (most aggressive).
type webrtcImpl struct {
	mu              sync.Mutex
	vad             *webrtcvad.VAD
	sampleRate      int
	frameDuration   time.Duration
	samplesPerFrame int
	frameBytes      []byte
}

// NewWebRTC builds a WebRTC VAD classifier. Illegal frame durations and
// aggressiveness values are configuration errors and fail here, at startup.
func NewWebRTC(sampleRate int, frameDuration time.Duration, aggressiveness int) (Interface, error) {
	if !ValidFrameDuration(frameDuration) {
		return nil, fmt.Errorf("vad: frame duration %s is not 10ms, 20ms or 30ms", frameDuration)
	}

	if aggressiveness < 0 || aggressiveness > 3 {
		return nil, fmt.Errorf("vad: aggressiveness %d out of range 0-3", aggressiveness)
	}

	samplesPerFrame := sampleRate * int(frameDuration/time.Millisecond) / 1000

	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("vad: init webrtcvad: %w", err)
	}

	if !v.ValidRateAndFrameLength(sampleRate, samplesPerFrame) {
		return nil, fmt.Errorf("vad: sample rate %d with %d-sample frames rejected by webrtcvad", sampleRate, samplesPerFrame)
	}

	if err := v.SetMode(aggressiveness); err != nil {
		return nil, fmt.Errorf("vad: set mode %d: %w", aggressiveness, err)
	}

	return &webrtcImpl{
		vad:             v,
		sampleRate:      sampleRate,
		frameDuration:   frameDuration,
		samplesPerFrame: samplesPerFrame,
		frameBytes:      make([]byte, samplesPerFrame*2),
	}, nil
}

func (w *webrtcImpl) Classify(frame []int16) (bool, error) {
	if len(frame) != w.samplesPerFrame {
		return false, fmt.Errorf("vad: frame has %d samples, want %d", len(frame), w.samplesPerFrame)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for i, s := range frame {
		w.frameBytes[i*2] = byte(s)
		w.frameBytes[i*2+1] = byte(s >> 8)
	}

	active, err := w.vad.Process(w.sampleRate, w.frameBytes)
	if err != nil {
		return false, fmt.Errorf("vad: process frame: %w", err)
	}

	return active, nil
}

func (w *webrtcImpl) Name() string {
	return "webrtc"
}

func (w *webrtcImpl) SampleRate() int {
	return w.sampleRate
}

func (w *webrtcImpl) FrameDuration() time.Duration {
	return w.frameDuration
}

func (w *webrtcImpl) SamplesPerFrame() int {
	return w.samplesPerFrame
}
