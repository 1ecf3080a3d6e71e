package vad

import (
	"fmt"
	"math"
	"time"

	"github.com/mjibson/go-dsp/fft"
)

// fluxThresholds maps aggressiveness 0-3 to the mean spectral magnitude a
// frame must reach to count as speech. Higher aggressiveness demands more
// energy, so quiet background noise is classified as silence sooner.
var fluxThresholds = [4]float64{120, 250, 450, 700}

// fluxImpl classifies frames by their mean FFT magnitude. It is the fallback
// engine for builds or hosts where the WebRTC VAD cannot be used; it shares
// the frame-duration contract so the two engines are interchangeable.
type fluxImpl struct {
	sampleRate      int
	frameDuration   time.Duration
	samplesPerFrame int
	threshold       float64
}

func NewFlux(sampleRate int, frameDuration time.Duration, aggressiveness int) (Interface, error) {
	if !ValidFrameDuration(frameDuration) {
		return nil, fmt.Errorf("vad: frame duration %s is not 10ms, 20ms or 30ms", frameDuration)
	}

	if aggressiveness < 0 || aggressiveness > 3 {
		return nil, fmt.Errorf("vad: aggressiveness %d out of range 0-3", aggressiveness)
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("vad: sample rate %d is not positive", sampleRate)
	}

	return &fluxImpl{
		sampleRate:      sampleRate,
		frameDuration:   frameDuration,
		samplesPerFrame: sampleRate * int(frameDuration/time.Millisecond) / 1000,
		threshold:       fluxThresholds[aggressiveness],
	}, nil
}

func (f *fluxImpl) Classify(frame []int16) (bool, error) {
	if len(frame) != f.samplesPerFrame {
		return false, fmt.Errorf("vad: frame has %d samples, want %d", len(frame), f.samplesPerFrame)
	}

	return f.Flux(frame) >= f.threshold, nil
}

// Flux returns the mean magnitude of the frame's spectrum. Exported so tests
// and threshold tuning can look at the raw value.
func (f *fluxImpl) Flux(frame []int16) float64 {
	samples := make([]float64, len(frame))
	for i, s := range frame {
		samples[i] = float64(s)
	}

	spectrum := fft.FFTReal(samples)

	var sum float64
	for _, bin := range spectrum {
		sum += math.Sqrt(real(bin)*real(bin) + imag(bin)*imag(bin))
	}

	return sum / float64(len(spectrum))
}

func (f *fluxImpl) Name() string {
	return "flux"
}

func (f *fluxImpl) SampleRate() int {
	return f.sampleRate
}

func (f *fluxImpl) FrameDuration() time.Duration {
	return f.frameDuration
}

func (f *fluxImpl) SamplesPerFrame() int {
	return f.samplesPerFrame
}
