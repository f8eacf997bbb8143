// Package wavfile reads and writes waveforms as RIFF/WAVE 16-bit PCM.
package wavfile

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/ewilliams-labs/chromatone/backend/internal/core/domain"
)

const (
	bitDepth  = 16
	formatPCM = 1
)

// ContentType is the media type served for encoded waveforms.
const ContentType = "audio/wav"

// Encode writes w as a WAV container. The writer must be seekable so the
// header sizes can be patched once all samples are written.
func Encode(out io.WriteSeeker, w domain.Waveform) error {
	if w.SampleRate <= 0 || w.Channels <= 0 {
		return fmt.Errorf("wavfile: invalid format %d Hz x %d ch", w.SampleRate, w.Channels)
	}

	data := make([]int, len(w.Samples))
	for i, s := range w.Samples {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: w.Channels, SampleRate: w.SampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}

	enc := wav.NewEncoder(out, w.SampleRate, bitDepth, w.Channels, formatPCM)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wavfile: write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wavfile: finalize header: %w", err)
	}
	return nil
}

// Decode reads a 16-bit PCM WAV file back into a waveform.
func Decode(r io.ReadSeeker) (domain.Waveform, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return domain.Waveform{}, errors.New("wavfile: invalid WAV file")
	}
	if dec.BitDepth != bitDepth {
		return domain.Waveform{}, fmt.Errorf("wavfile: unsupported bit depth %d", dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return domain.Waveform{}, fmt.Errorf("wavfile: read samples: %w", err)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	return domain.Waveform{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		Samples:    samples,
	}, nil
}
