package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// DefaultMatchThreshold is the RGB distance under which a color counts as an exact match.
const DefaultMatchThreshold = 60.0

// BlendPolicy decides how a blended match turns two reference frequencies into a selection.
type BlendPolicy string

const (
	// BlendPair keeps both frequencies; the synthesizer plays them back to back.
	BlendPair BlendPolicy = "pair"
	// BlendAverage collapses the two frequencies into their arithmetic mean.
	BlendAverage BlendPolicy = "average"
)

// ParseBlendPolicy accepts "pair" or "average" (case-insensitive).
func ParseBlendPolicy(s string) (BlendPolicy, error) {
	switch BlendPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case BlendPair:
		return BlendPair, nil
	case BlendAverage:
		return BlendAverage, nil
	default:
		return "", fmt.Errorf("domain: unknown blend policy %q", s)
	}
}

// FrequencySelection is one or two frequencies chosen for a single dominant color.
// A pair is played as two consecutive tones.
type FrequencySelection []float64

// IsPair reports whether the selection blends two tones.
func (s FrequencySelection) IsPair() bool {
	return len(s) == 2
}

// DominantColor is a quantized palette entry ranked by pixel population.
type DominantColor struct {
	RGB   RGB `json:"rgb"`
	Rank  int `json:"rank"`
	Count int `json:"count"`
}

// Match is the classification of one color against the reference palette.
type Match struct {
	Color     RGB
	Label     string
	Names     []string
	Selection FrequencySelection
	Distance  float64 // distance to the nearest reference
	Blended   bool
}

// Classifier maps colors onto the reference palette.
type Classifier struct {
	palette   *Palette
	threshold float64
	policy    BlendPolicy
}

// NewClassifier constructs a Classifier. The palette is shared, never copied or mutated.
func NewClassifier(palette *Palette, threshold float64, policy BlendPolicy) (*Classifier, error) {
	if palette == nil || palette.Len() == 0 {
		return nil, errors.New("domain: classifier requires a non-empty palette")
	}
	if threshold <= 0 || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, fmt.Errorf("domain: invalid match threshold %v", threshold)
	}
	if _, err := ParseBlendPolicy(string(policy)); err != nil {
		return nil, err
	}
	return &Classifier{palette: palette, threshold: threshold, policy: policy}, nil
}

func (c *Classifier) Palette() *Palette {
	return c.palette
}

func (c *Classifier) Policy() BlendPolicy {
	return c.policy
}

type ranked struct {
	ref ReferenceColor
	d2  int
}

// Classify returns an exact match when the nearest reference is strictly closer
// than the threshold, otherwise a blend of the two nearest references.
func (c *Classifier) Classify(rgb RGB) Match {
	refs := c.palette.colors
	order := make([]ranked, len(refs))
	for i, ref := range refs {
		order[i] = ranked{ref: ref, d2: rgb.distanceSquared(ref.RGB)}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].d2 < order[j].d2
	})

	nearest := order[0]
	m := Match{
		Color:    rgb,
		Distance: math.Sqrt(float64(nearest.d2)),
	}

	if float64(nearest.d2) < c.threshold*c.threshold || len(order) == 1 {
		m.Label = nearest.ref.Name
		m.Names = []string{nearest.ref.Name}
		m.Selection = FrequencySelection{nearest.ref.Frequency}
		return m
	}

	second := order[1]
	m.Blended = true
	m.Label = nearest.ref.Name + "-" + second.ref.Name
	m.Names = []string{nearest.ref.Name, second.ref.Name}
	switch c.policy {
	case BlendAverage:
		m.Selection = FrequencySelection{(nearest.ref.Frequency + second.ref.Frequency) / 2}
	default:
		m.Selection = FrequencySelection{nearest.ref.Frequency, second.ref.Frequency}
	}
	return m
}

// ClassifyAll classifies colors in order, producing one selection per color.
func (c *Classifier) ClassifyAll(colors []DominantColor) []Match {
	out := make([]Match, 0, len(colors))
	for _, dc := range colors {
		out = append(out, c.Classify(dc.RGB))
	}
	return out
}

// Selections extracts the frequency selections from matches, preserving order.
func Selections(matches []Match) []FrequencySelection {
	out := make([]FrequencySelection, len(matches))
	for i, m := range matches {
		out[i] = m.Selection
	}
	return out
}
