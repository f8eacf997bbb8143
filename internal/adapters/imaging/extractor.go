// Package imaging decodes uploaded images and reduces them to a ranked set of dominant colors.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"sort"
	"strings"

	// Registered decoders for every format the upload endpoint accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/chromatone/backend/internal/core/domain"
	"github.com/ewilliams-labs/chromatone/backend/internal/core/ports"
)

// CanonicalSize is the side length every image is resampled to before quantization.
const CanonicalSize = 100

// DefaultColorCount is the number of dominant colors requested when none is configured.
const DefaultColorCount = 3

// Method selects the quantization algorithm.
type Method string

const (
	MethodMedianCut     Method = "mediancut"
	MethodDominantColor Method = "dominantcolor"
	MethodKMeans        Method = "kmeans"
)

// ParseMethod accepts a method name (case-insensitive). Empty means median cut.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case "", MethodMedianCut:
		return MethodMedianCut, nil
	case MethodDominantColor, MethodKMeans:
		return m, nil
	default:
		return "", fmt.Errorf("imaging: unknown palette method %q", s)
	}
}

// Extractor implements ports.PaletteExtractor.
type Extractor struct {
	method    Method
	maxPixels int
	logger    *zap.Logger
}

// compile-time interface assertion
var _ ports.PaletteExtractor = (*Extractor)(nil)

// NewExtractor builds an Extractor. maxPixels <= 0 disables the image area bound.
func NewExtractor(method Method, maxPixels int, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if method == "" {
		method = MethodMedianCut
	}
	return &Extractor{method: method, maxPixels: maxPixels, logger: logger}
}

// paletteEntry is one quantized color with its pixel population and palette index.
type paletteEntry struct {
	rgb   domain.RGB
	count int
	index int
}

// Extract decodes r and returns at most count dominant colors, most frequent first.
func (e *Extractor) Extract(ctx context.Context, r io.Reader, count int) ([]domain.DominantColor, error) {
	if count <= 0 {
		return nil, domain.InvalidArgumentf("imaging: color count must be positive, got %d", count)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("imaging: read image: %w", err)
	}
	if len(data) == 0 {
		return nil, domain.InvalidArgumentf("imaging: empty image")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, domain.DecodeError{Err: err}
	}
	if e.maxPixels > 0 && cfg.Width*cfg.Height > e.maxPixels {
		return nil, domain.InvalidArgumentf("imaging: image is %dx%d, exceeds %d pixels", cfg.Width, cfg.Height, e.maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.DecodeError{Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("imaging: extraction canceled: %w", err)
	}

	small := Downscale(img)

	var entries []paletteEntry
	switch e.method {
	case MethodDominantColor:
		entries = dominantPalette(small, count)
	case MethodKMeans:
		entries, err = kmeansPalette(small, count)
		if err != nil {
			e.logger.Warn("kmeans palette failed, falling back to median cut", zap.Error(err))
			entries = medianCut(small, count)
		}
	default:
		entries = medianCut(small, count)
	}
	if len(entries) == 0 {
		e.logger.Warn("palette method returned no colors, falling back to median cut", zap.String("method", string(e.method)))
		entries = medianCut(small, count)
	}

	colors := rank(entries, count)
	e.logger.Debug("extracted palette",
		zap.String("format", format),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.String("method", string(e.method)),
		zap.Int("colors", len(colors)),
	)
	return colors, nil
}

// Downscale resamples src to CanonicalSize x CanonicalSize with a bilinear filter.
// Fully transparent pixels come out black.
func Downscale(src image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, CanonicalSize, CanonicalSize))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// rank merges identical colors, orders by population (ties by palette index)
// and keeps the first count entries.
func rank(entries []paletteEntry, count int) []domain.DominantColor {
	merged := make([]paletteEntry, 0, len(entries))
	seen := make(map[domain.RGB]int, len(entries))
	for _, en := range entries {
		if en.count <= 0 {
			continue
		}
		if i, ok := seen[en.rgb]; ok {
			merged[i].count += en.count
			continue
		}
		seen[en.rgb] = len(merged)
		merged = append(merged, en)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].count != merged[j].count {
			return merged[i].count > merged[j].count
		}
		return merged[i].index < merged[j].index
	})

	if len(merged) > count {
		merged = merged[:count]
	}
	out := make([]domain.DominantColor, len(merged))
	for i, en := range merged {
		out[i] = domain.DominantColor{RGB: en.rgb, Rank: i, Count: en.count}
	}
	return out
}
