package ports

import (
	"context"
	"io"

	"github.com/ewilliams-labs/chromatone/backend/internal/core/domain"
)

// WaveformStore keeps encoded waveform files addressed by key.
// Open and Delete return domain.ErrNotFound for unknown keys.
type WaveformStore interface {
	Save(ctx context.Context, key string, w domain.Waveform) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
