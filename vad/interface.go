package vad

import "time"

// Interface classifies single fixed-duration audio frames as speech or
// silence. Implementations are deterministic: the same frame always yields
// the same result. Only one capture runs at a time, but implementations are
// still safe for concurrent use.
type Interface interface {
	// Classify reports whether the frame contains speech. The frame must hold
	// exactly SamplesPerFrame samples; anything else is an error.
	Classify(frame []int16) (bool, error)

	Name() string
	SampleRate() int
	FrameDuration() time.Duration
	SamplesPerFrame() int
}

// ValidFrameDuration reports whether d is a frame duration the classifiers
// accept. The underlying WebRTC VAD engine only supports 10, 20 and 30 ms
// frames; the flux engine keeps the same contract.
func ValidFrameDuration(d time.Duration) bool {
	switch d {
	case 10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond:
		return true
	}

	return false
}
