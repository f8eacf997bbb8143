package ports

import (
	"context"
	"time"

	"github.com/ewilliams-labs/chromatone/backend/internal/core/domain"
)

// SynthesisRepository persists synthesis metadata and drives audio expiry.
type SynthesisRepository interface {
	SaveSynthesis(ctx context.Context, s domain.Synthesis) error
	GetSynthesis(ctx context.Context, id string) (domain.Synthesis, error)
	ListExpired(ctx context.Context, before time.Time, limit int) ([]domain.Synthesis, error)
	DeleteSynthesis(ctx context.Context, id string) error
}
