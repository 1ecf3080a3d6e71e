// Package wavenc turns captured audio buffers into complete WAV clips, the
// form the remote transcription contract expects.
package wavenc

import (
	"fmt"

	"github.com/go-audio/audio"
	"github.com/spf13/afero"
	wave "github.com/zenwerk/go-wave"
)

// Encode writes the buffer to a temporary WAV file on fs and returns the
// encoded bytes. The temp file is removed before returning. Captures hand
// their audio over as *audio.IntBuffer (endpointing.Utterance.Buffer).
func Encode(fs afero.Fs, buf *audio.IntBuffer) ([]byte, error) {
	if buf == nil || len(buf.Data) == 0 {
		return nil, fmt.Errorf("wavenc: buffer is empty")
	}

	if buf.Format == nil || buf.Format.SampleRate <= 0 || buf.Format.NumChannels <= 0 {
		return nil, fmt.Errorf("wavenc: buffer has no sample format")
	}

	waveFile, err := afero.TempFile(fs, "", "campusconvo-*.wav")
	if err != nil {
		return nil, fmt.Errorf("wavenc: create temp file: %w", err)
	}

	name := waveFile.Name()
	defer fs.Remove(name)

	param := wave.WriterParam{
		Out:           waveFile,
		Channel:       buf.Format.NumChannels,
		SampleRate:    buf.Format.SampleRate,
		BitsPerSample: 16,
	}

	waveWriter, err := wave.NewWriter(param)
	if err != nil {
		waveFile.Close()

		return nil, fmt.Errorf("wavenc: new writer: %w", err)
	}

	samples := make([]int16, len(buf.Data))
	for i, s := range buf.Data {
		samples[i] = int16(s)
	}

	if _, err := waveWriter.WriteSample16(samples); err != nil {
		waveWriter.Close()

		return nil, fmt.Errorf("wavenc: write samples: %w", err)
	}

	if err := waveWriter.Close(); err != nil {
		return nil, fmt.Errorf("wavenc: close writer: %w", err)
	}

	data, err := afero.ReadFile(fs, name)
	if err != nil {
		return nil, fmt.Errorf("wavenc: read back clip: %w", err)
	}

	return data, nil
}
