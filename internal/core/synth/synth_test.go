package synth

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/ewilliams-labs/chromatone/backend/internal/core/domain"
)

func newSynth(t *testing.T) *Synthesizer {
	t.Helper()
	s, err := New(DefaultOptions())
	if err != nil {
		t.Fatalf("new synthesizer: %v", err)
	}
	return s
}

// dominantFrequency returns the frequency of the strongest non-DC FFT bin.
func dominantFrequency(samples []int16, sampleRate int) float64 {
	seq := make([]float64, len(samples))
	for i, v := range samples {
		seq[i] = float64(v)
	}
	fft := fourier.NewFFT(len(seq))
	coeffs := fft.Coefficients(nil, seq)
	best, bestMag := 0, 0.0
	for k := 1; k < len(coeffs); k++ {
		if m := cmplx.Abs(coeffs[k]); m > bestMag {
			best, bestMag = k, m
		}
	}
	return fft.Freq(best) * float64(sampleRate)
}

func TestSynthesize_SampleCount(t *testing.T) {
	tests := []struct {
		name       string
		selections int
		wantDur    time.Duration
	}{
		{name: "one selection", selections: 1, wantDur: 10 * time.Second},
		{name: "five selections stay short", selections: 5, wantDur: 10 * time.Second},
		{name: "six selections go long", selections: 6, wantDur: 15 * time.Second},
		{name: "seven selections", selections: 7, wantDur: 15 * time.Second},
	}

	s := newSynth(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sels := make([]domain.FrequencySelection, tt.selections)
			for i := range sels {
				sels[i] = domain.FrequencySelection{261.63 + float64(i)*20}
			}
			w, err := s.Synthesize(sels)
			if err != nil {
				t.Fatalf("synthesize: %v", err)
			}
			want := int(tt.wantDur/time.Second) * SampleRate
			if len(w.Samples) != want {
				t.Fatalf("samples: got %d, want %d", len(w.Samples), want)
			}
			if w.Duration() != tt.wantDur {
				t.Fatalf("duration: got %v, want %v", w.Duration(), tt.wantDur)
			}
			if w.SampleRate != SampleRate || w.Channels != 1 {
				t.Fatalf("format: got %d Hz x %d ch", w.SampleRate, w.Channels)
			}
			if w.Peak() != FullScale {
				t.Fatalf("peak: got %d, want %d", w.Peak(), FullScale)
			}
		})
	}
}

func TestSynthesize_SingleToneRojo(t *testing.T) {
	s := newSynth(t)
	w, err := s.Synthesize([]domain.FrequencySelection{{261.63}})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(w.Samples) != 441000 {
		t.Fatalf("samples: got %d, want 441000", len(w.Samples))
	}
	if w.Peak() != 32767 {
		t.Fatalf("peak: got %d, want 32767", w.Peak())
	}
	if w.Samples[0] != 0 {
		t.Fatalf("tone must start at zero phase, got %d", w.Samples[0])
	}
	if got := dominantFrequency(w.Samples, w.SampleRate); math.Abs(got-261.63) > 0.2 {
		t.Fatalf("dominant frequency: got %.3f Hz, want ~261.63", got)
	}
}

func TestSynthesize_PairSplitsSlot(t *testing.T) {
	s := newSynth(t)
	w, err := s.Synthesize([]domain.FrequencySelection{{261.63, 440}})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	half := len(w.Samples) / 2
	if got := dominantFrequency(w.Samples[:half], w.SampleRate); math.Abs(got-261.63) > 0.5 {
		t.Fatalf("first half: got %.3f Hz, want ~261.63", got)
	}
	if got := dominantFrequency(w.Samples[half:], w.SampleRate); math.Abs(got-440) > 0.5 {
		t.Fatalf("second half: got %.3f Hz, want ~440", got)
	}
	// The second tone restarts at zero phase.
	if w.Samples[half] != 0 {
		t.Fatalf("second tone start: got %d, want 0", w.Samples[half])
	}
}

func TestSynthesize_UnevenSlotsSumExactly(t *testing.T) {
	s, err := New(Options{SampleRate: 7, ShortDuration: time.Second, LongDuration: 2 * time.Second, ShortMaxSelections: 2})
	if err != nil {
		t.Fatalf("new synthesizer: %v", err)
	}
	w, err := s.Synthesize([]domain.FrequencySelection{{1}, {2, 3}, {1}})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(w.Samples) != 14 {
		t.Fatalf("samples: got %d, want 14", len(w.Samples))
	}
}

func TestSynthesize_SilenceIsNotScaled(t *testing.T) {
	s := newSynth(t)
	w, err := s.Synthesize([]domain.FrequencySelection{{0}, {0, 0}})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if w.Peak() != 0 {
		t.Fatalf("peak: got %d, want 0", w.Peak())
	}
	if len(w.Samples) != 10*SampleRate {
		t.Fatalf("samples: got %d", len(w.Samples))
	}
}

func TestSynthesize_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		in   []domain.FrequencySelection
	}{
		{name: "empty sequence", in: nil},
		{name: "empty selection", in: []domain.FrequencySelection{{}}},
		{name: "three frequencies", in: []domain.FrequencySelection{{1, 2, 3}}},
		{name: "negative frequency", in: []domain.FrequencySelection{{-5}}},
		{name: "nan frequency", in: []domain.FrequencySelection{{math.NaN()}}},
	}

	s := newSynth(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Synthesize(tt.in)
			if !errors.Is(err, domain.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{SampleRate: 0, ShortDuration: time.Second, LongDuration: time.Second}); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
	if _, err := New(Options{SampleRate: 8000, ShortDuration: 0, LongDuration: time.Second}); err == nil {
		t.Fatal("expected error for zero duration")
	}
}

func TestNormalize_PeakIsFullScale(t *testing.T) {
	got := normalize([]float64{0.125, -0.5, 0.25})
	want := []int16{8192, -32767, 16384}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}
