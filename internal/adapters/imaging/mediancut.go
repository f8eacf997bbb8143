package imaging

import (
	"image"
	"sort"

	"github.com/ewilliams-labs/chromatone/backend/internal/core/domain"
)

type colorCount struct {
	rgb domain.RGB
	n   int
}

// box is a set of distinct colors in the median cut partition.
type box struct {
	colors []colorCount
	pixels int
}

func channel(c domain.RGB, ch int) uint8 {
	switch ch {
	case 0:
		return c.R
	case 1:
		return c.G
	default:
		return c.B
	}
}

func packed(c domain.RGB) uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// histogram counts every pixel color, ordered by packed value for determinism.
func histogram(img *image.RGBA) []colorCount {
	counts := make(map[domain.RGB]int)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			o := img.PixOffset(x, y)
			counts[domain.RGB{R: img.Pix[o], G: img.Pix[o+1], B: img.Pix[o+2]}]++
		}
	}
	out := make([]colorCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, colorCount{rgb: c, n: n})
	}
	sort.Slice(out, func(i, j int) bool { return packed(out[i].rgb) < packed(out[j].rgb) })
	return out
}

// widest returns the channel with the largest value range and that range.
func (b *box) widest() (int, int) {
	lo := [3]int{255, 255, 255}
	hi := [3]int{0, 0, 0}
	for _, cc := range b.colors {
		for ch := 0; ch < 3; ch++ {
			v := int(channel(cc.rgb, ch))
			lo[ch] = min(lo[ch], v)
			hi[ch] = max(hi[ch], v)
		}
	}
	best, bestRange := 0, -1
	for ch := 0; ch < 3; ch++ {
		if r := hi[ch] - lo[ch]; r > bestRange {
			best, bestRange = ch, r
		}
	}
	return best, bestRange
}

// split cuts the box at the pixel-weighted median of its widest channel.
func (b *box) split() (*box, *box) {
	ch, _ := b.widest()
	sort.Slice(b.colors, func(i, j int) bool {
		ci, cj := channel(b.colors[i].rgb, ch), channel(b.colors[j].rgb, ch)
		if ci != cj {
			return ci < cj
		}
		return packed(b.colors[i].rgb) < packed(b.colors[j].rgb)
	})

	cut, acc := 1, 0
	for i, cc := range b.colors {
		acc += cc.n
		if acc*2 >= b.pixels {
			cut = i + 1
			break
		}
	}
	if cut >= len(b.colors) {
		cut = len(b.colors) - 1
	}

	left := &box{colors: b.colors[:cut:cut]}
	right := &box{colors: b.colors[cut:]}
	for _, cc := range left.colors {
		left.pixels += cc.n
	}
	right.pixels = b.pixels - left.pixels
	return left, right
}

// mean is the pixel-weighted average color of the box.
func (b *box) mean() domain.RGB {
	var r, g, bl int
	for _, cc := range b.colors {
		r += int(cc.rgb.R) * cc.n
		g += int(cc.rgb.G) * cc.n
		bl += int(cc.rgb.B) * cc.n
	}
	half := b.pixels / 2
	return domain.RGB{
		R: uint8((r + half) / b.pixels),
		G: uint8((g + half) / b.pixels),
		B: uint8((bl + half) / b.pixels),
	}
}

// medianCut partitions the image colors into at most count boxes, always
// splitting the most populous box that still has more than one color.
// Palette index is box creation order.
func medianCut(img *image.RGBA, count int) []paletteEntry {
	hist := histogram(img)
	if len(hist) == 0 {
		return nil
	}
	root := &box{colors: hist}
	for _, cc := range hist {
		root.pixels += cc.n
	}

	boxes := []*box{root}
	for len(boxes) < count {
		idx := -1
		for i, b := range boxes {
			if len(b.colors) < 2 {
				continue
			}
			if idx < 0 || b.pixels > boxes[idx].pixels {
				idx = i
			}
		}
		if idx < 0 {
			break
		}
		left, right := boxes[idx].split()
		boxes[idx] = left
		boxes = append(boxes, right)
	}

	out := make([]paletteEntry, len(boxes))
	for i, b := range boxes {
		out[i] = paletteEntry{rgb: b.mean(), count: b.pixels, index: i}
	}
	return out
}
