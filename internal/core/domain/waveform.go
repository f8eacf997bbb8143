package domain

import "time"

// Waveform is mono signed 16-bit PCM.
type Waveform struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// Duration reports the playback length of the waveform.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 || w.Channels <= 0 {
		return 0
	}
	frames := len(w.Samples) / w.Channels
	return time.Duration(frames) * time.Second / time.Duration(w.SampleRate)
}

// Peak returns the largest absolute sample value.
func (w Waveform) Peak() int {
	peak := 0
	for _, s := range w.Samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

// Synthesis records one synthesized waveform and where its audio lives.
type Synthesis struct {
	ID          string               `json:"id"`
	AudioKey    string               `json:"audio_key"`
	ImageDigest string               `json:"image_digest"`
	Colors      []RGB                `json:"colors"`
	Labels      []string             `json:"labels"`
	Frequencies []FrequencySelection `json:"frequencies"`
	SampleRate  int                  `json:"sample_rate"`
	SampleCount int                  `json:"sample_count"`
	CreatedAt   time.Time            `json:"created_at"`
	ExpiresAt   time.Time            `json:"expires_at"`
}

// Expired reports whether the synthesis is past its expiry at now.
func (s Synthesis) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Duration is the audio length implied by the recorded sample count.
func (s Synthesis) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(s.SampleCount) * time.Second / time.Duration(s.SampleRate)
}
