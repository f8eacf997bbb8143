// Package synth turns ordered frequency selections into a normalized mono PCM waveform.
package synth

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/ewilliams-labs/chromatone/backend/internal/core/domain"
)

const (
	// SampleRate is fixed for every synthesized waveform.
	SampleRate = 44100
	// FullScale is the peak magnitude after normalization.
	FullScale = math.MaxInt16
)

// Options controls how total duration is chosen.
type Options struct {
	SampleRate int
	// ShortDuration applies when there are at most ShortMaxSelections entries.
	ShortDuration      time.Duration
	LongDuration       time.Duration
	ShortMaxSelections int
}

func DefaultOptions() Options {
	return Options{
		SampleRate:         SampleRate,
		ShortDuration:      10 * time.Second,
		LongDuration:       15 * time.Second,
		ShortMaxSelections: 5,
	}
}

// Synthesizer is stateless after construction and safe for concurrent use.
type Synthesizer struct {
	opts Options
}

func New(opts Options) (*Synthesizer, error) {
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("synth: invalid sample rate %d", opts.SampleRate)
	}
	if opts.ShortDuration <= 0 || opts.LongDuration <= 0 {
		return nil, fmt.Errorf("synth: durations must be positive")
	}
	if opts.ShortMaxSelections < 0 {
		return nil, fmt.Errorf("synth: invalid short selection limit %d", opts.ShortMaxSelections)
	}
	return &Synthesizer{opts: opts}, nil
}

// TotalDuration is the output length for n selections.
func (s *Synthesizer) TotalDuration(n int) time.Duration {
	if n <= s.opts.ShortMaxSelections {
		return s.opts.ShortDuration
	}
	return s.opts.LongDuration
}

// TotalSamples is the exact output sample count for n selections.
func (s *Synthesizer) TotalSamples(n int) int {
	d := s.TotalDuration(n)
	return int(int64(s.opts.SampleRate) * int64(d) / int64(time.Second))
}

// Synthesize renders each selection into an equal slot of the total duration,
// concatenates the slots in order and normalizes the whole buffer once.
func (s *Synthesizer) Synthesize(selections []domain.FrequencySelection) (domain.Waveform, error) {
	if len(selections) == 0 {
		return domain.Waveform{}, domain.InvalidArgumentf("synth: no frequency selections")
	}
	for i, sel := range selections {
		if len(sel) == 0 || len(sel) > 2 {
			return domain.Waveform{}, domain.InvalidArgumentf("synth: selection %d has %d frequencies", i, len(sel))
		}
		for _, f := range sel {
			if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
				return domain.Waveform{}, domain.InvalidArgumentf("synth: selection %d has invalid frequency %v", i, f)
			}
		}
	}

	n := len(selections)
	total := s.TotalSamples(n)
	buf := make([]float64, total)

	// Slot boundaries at i*total/n keep the sum exact regardless of rounding.
	for i, sel := range selections {
		start := i * total / n
		end := (i + 1) * total / n
		slot := buf[start:end]
		if sel.IsPair() {
			half := len(slot) / 2
			s.tone(slot[:half], sel[0])
			s.tone(slot[half:], sel[1])
			continue
		}
		s.tone(slot, sel[0])
	}

	return domain.Waveform{
		SampleRate: s.opts.SampleRate,
		Channels:   1,
		Samples:    normalize(buf),
	}, nil
}

// tone fills dst with a unit-amplitude sine starting at phase zero.
func (s *Synthesizer) tone(dst []float64, freq float64) {
	step := 2 * math.Pi * freq / float64(s.opts.SampleRate)
	for j := range dst {
		dst[j] = math.Sin(step * float64(j))
	}
}

// normalize scales buf so its peak magnitude is FullScale and quantizes to int16.
// A silent buffer is returned as zeros.
func normalize(buf []float64) []int16 {
	out := make([]int16, len(buf))
	if len(buf) == 0 {
		return out
	}
	peak := math.Max(floats.Max(buf), -floats.Min(buf))
	if peak == 0 {
		return out
	}
	floats.Scale(FullScale/peak, buf)
	for i, v := range buf {
		v = math.Round(v)
		if v > FullScale {
			v = FullScale
		} else if v < -FullScale {
			v = -FullScale
		}
		out[i] = int16(v)
	}
	return out
}
