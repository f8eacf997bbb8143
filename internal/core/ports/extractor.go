package ports

import (
	"context"
	"io"

	"github.com/ewilliams-labs/chromatone/backend/internal/core/domain"
)

// PaletteExtractor decodes an image and returns up to count dominant colors,
// most frequent first.
type PaletteExtractor interface {
	Extract(ctx context.Context, r io.Reader, count int) ([]domain.DominantColor, error)
}
