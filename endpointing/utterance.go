package endpointing

import (
	"time"

	"github.com/go-audio/audio"
)

// Reason records why a capture ended.
type Reason string

const (
	// ReasonSilenceTimeout means the trailing silence run reached the
	// configured threshold after speech had been recorded.
	ReasonSilenceTimeout Reason = "silence-timeout"

	// ReasonMaxDuration means the capture hit its total duration budget while
	// recording speech.
	ReasonMaxDuration Reason = "max-duration-reached"

	// ReasonNoSpeech means the duration budget ran out before enough
	// consecutive speech was heard, or the capture was abandoned (device
	// error, pause). The utterance is empty.
	ReasonNoSpeech Reason = "no-speech-detected"
)

// Frame is one fixed-duration slice of PCM samples read from the device,
// numbered in read order within the current stream.
type Frame struct {
	Samples []int16
	Index   int
}

// Utterance is a bounded span of captured audio, from the first retained
// speech frame to wherever the endpointing policy declared the end. It is
// owned exclusively by the consumer that requested the capture.
type Utterance struct {
	ID            string
	Start         time.Time
	SampleRate    int
	FrameDuration time.Duration
	Reason        Reason

	samples []int16
	frames  int
}

func (u *Utterance) append(samples []int16) {
	u.samples = append(u.samples, samples...)
	u.frames++
}

// appendRun adds pre-roll samples that span multiple frames at once.
func (u *Utterance) appendRun(samples []int16, frames int) {
	u.samples = append(u.samples, samples...)
	u.frames += frames
}

func (u *Utterance) Empty() bool {
	return u == nil || len(u.samples) == 0
}

func (u *Utterance) Samples() []int16 {
	return u.samples
}

func (u *Utterance) Frames() int {
	return u.frames
}

func (u *Utterance) Duration() time.Duration {
	return time.Duration(u.frames) * u.FrameDuration
}

// Buffer exposes the utterance as a go-audio buffer for encoding.
func (u *Utterance) Buffer() *audio.IntBuffer {
	data := make([]int, len(u.samples))
	for i, s := range u.samples {
		data[i] = int(s)
	}

	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  u.SampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
}
