package imaging

import (
	"errors"
	"image"
	"math"
	"slices"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/ewilliams-labs/chromatone/backend/internal/core/domain"
)

// dominantPalette clusters with cenkalti/dominantcolor. Weights are fractions
// of the image, so they are scaled back to pixel counts.
func dominantPalette(img *image.RGBA, count int) []paletteEntry {
	pixels := img.Bounds().Dx() * img.Bounds().Dy()
	candidates := dominantcolor.FindWeight(img, count)

	out := make([]paletteEntry, 0, len(candidates))
	for i, c := range candidates {
		n := int(math.Round(c.Weight * float64(pixels)))
		if n <= 0 {
			continue
		}
		out = append(out, paletteEntry{
			rgb:   domain.RGB{R: c.RGBA.R, G: c.RGBA.G, B: c.RGBA.B},
			count: n,
			index: i,
		})
	}
	return out
}

// kmeansPalette partitions pixels with muesli/kmeans. k never exceeds the
// number of distinct colors, so a solid image yields one cluster.
func kmeansPalette(img *image.RGBA, count int) ([]paletteEntry, error) {
	hist := histogram(img)
	if len(hist) == 0 {
		return nil, errors.New("imaging: image has no pixels")
	}
	k := min(count, len(hist))
	if k == 1 {
		total := 0
		for _, cc := range hist {
			total += cc.n
		}
		return []paletteEntry{{rgb: hist[0].rgb, count: total}}, nil
	}

	dataset := make(clusters.Observations, 0, len(img.Pix)/4)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			o := img.PixOffset(x, y)
			dataset = append(dataset, clusters.Coordinates{
				float64(img.Pix[o]) / 255.0,
				float64(img.Pix[o+1]) / 255.0,
				float64(img.Pix[o+2]) / 255.0,
			})
		}
	}

	km := kmeans.New()
	cc, err := km.Partition(dataset, k)
	if err != nil {
		return nil, err
	}

	// Larger clusters first so palette index follows population.
	slices.SortStableFunc(cc, func(a, b clusters.Cluster) int {
		return len(b.Observations) - len(a.Observations)
	})

	out := make([]paletteEntry, 0, len(cc))
	for i, c := range cc {
		if len(c.Observations) == 0 || len(c.Center) < 3 {
			continue
		}
		r, g, bl := colorful.Color{R: c.Center[0], G: c.Center[1], B: c.Center[2]}.Clamped().RGB255()
		out = append(out, paletteEntry{
			rgb:   domain.RGB{R: r, G: g, B: bl},
			count: len(c.Observations),
			index: i,
		})
	}
	return out, nil
}
