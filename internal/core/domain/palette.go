package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// RGB is an 8-bit per channel color. It marshals as a [r, g, b] array.
type RGB struct {
	R, G, B uint8
}

func (c RGB) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]uint8{c.R, c.G, c.B})
}

func (c *RGB) UnmarshalJSON(data []byte) error {
	var v [3]uint8
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	c.R, c.G, c.B = v[0], v[1], v[2]
	return nil
}

// distanceSquared is the squared Euclidean distance in RGB space.
// It is exact, so threshold comparisons never suffer from float rounding.
func (c RGB) distanceSquared(o RGB) int {
	dr := int(c.R) - int(o.R)
	dg := int(c.G) - int(o.G)
	db := int(c.B) - int(o.B)
	return dr*dr + dg*dg + db*db
}

// Distance is the Euclidean distance between two colors over the 0-255 cube.
func (c RGB) Distance(o RGB) float64 {
	return math.Sqrt(float64(c.distanceSquared(o)))
}

// ReferenceColor is a named palette entry associated with a base frequency in Hz.
type ReferenceColor struct {
	Name      string  `json:"name"`
	RGB       RGB     `json:"rgb"`
	Frequency float64 `json:"freq"`
}

// Palette is the fixed reference table. It is built once and never mutated,
// so a single instance is shared by every request without locking.
type Palette struct {
	colors []ReferenceColor
	index  map[string]int
}

// NewPalette validates and freezes a reference table. Insertion order is kept.
func NewPalette(colors ...ReferenceColor) (*Palette, error) {
	if len(colors) == 0 {
		return nil, errors.New("domain: palette must contain at least one color")
	}
	p := &Palette{
		colors: make([]ReferenceColor, 0, len(colors)),
		index:  make(map[string]int, len(colors)),
	}
	for _, c := range colors {
		if c.Name == "" {
			return nil, errors.New("domain: palette color name cannot be empty")
		}
		if _, dup := p.index[c.Name]; dup {
			return nil, fmt.Errorf("domain: duplicate palette color %q", c.Name)
		}
		if c.Frequency <= 0 || math.IsInf(c.Frequency, 0) || math.IsNaN(c.Frequency) {
			return nil, fmt.Errorf("domain: palette color %q has invalid frequency %v", c.Name, c.Frequency)
		}
		p.index[c.Name] = len(p.colors)
		p.colors = append(p.colors, c)
	}
	return p, nil
}

// DefaultPalette returns the seven-color table the service ships with.
func DefaultPalette() *Palette {
	p, err := NewPalette(
		ReferenceColor{Name: "rojo", RGB: RGB{255, 0, 0}, Frequency: 261.63},
		ReferenceColor{Name: "naranja", RGB: RGB{255, 165, 0}, Frequency: 293.66},
		ReferenceColor{Name: "amarillo", RGB: RGB{255, 255, 0}, Frequency: 329.63},
		ReferenceColor{Name: "verde", RGB: RGB{0, 128, 0}, Frequency: 349.23},
		ReferenceColor{Name: "cian", RGB: RGB{0, 255, 255}, Frequency: 392.00},
		ReferenceColor{Name: "azul", RGB: RGB{0, 0, 255}, Frequency: 440.00},
		ReferenceColor{Name: "violeta", RGB: RGB{138, 43, 226}, Frequency: 493.88},
	)
	if err != nil {
		panic(err)
	}
	return p
}

// Lookup returns the named reference color.
func (p *Palette) Lookup(name string) (ReferenceColor, bool) {
	i, ok := p.index[name]
	if !ok {
		return ReferenceColor{}, false
	}
	return p.colors[i], true
}

// Colors returns a copy of the entries in insertion order.
func (p *Palette) Colors() []ReferenceColor {
	out := make([]ReferenceColor, len(p.colors))
	copy(out, p.colors)
	return out
}

func (p *Palette) Len() int {
	return len(p.colors)
}
