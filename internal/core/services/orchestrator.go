package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/chromatone/backend/internal/core/domain"
	"github.com/ewilliams-labs/chromatone/backend/internal/core/ports"
	"github.com/ewilliams-labs/chromatone/backend/internal/core/synth"
)

const audioExtension = ".wav"

// Options tunes the pipeline.
type Options struct {
	// Colors is the number of dominant colors requested per image.
	Colors int
	// TTL is how long a synthesized waveform stays retrievable.
	TTL time.Duration
}

// Orchestrator coordinates palette extraction, classification, synthesis and storage.
type Orchestrator struct {
	extractor  ports.PaletteExtractor
	classifier *domain.Classifier
	synth      *synth.Synthesizer
	store      ports.WaveformStore
	repo       ports.SynthesisRepository
	logger     *zap.Logger

	colors int
	ttl    time.Duration
	now    func() time.Time
	newID  func() string
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(
	extractor ports.PaletteExtractor,
	classifier *domain.Classifier,
	synthesizer *synth.Synthesizer,
	store ports.WaveformStore,
	repo ports.SynthesisRepository,
	opts Options,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		extractor:  extractor,
		classifier: classifier,
		synth:      synthesizer,
		store:      store,
		repo:       repo,
		logger:     logger,
		colors:     opts.Colors,
		ttl:        opts.TTL,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Analyze extracts the dominant colors of an image and classifies each one.
func (o *Orchestrator) Analyze(ctx context.Context, image io.Reader) ([]domain.Match, error) {
	colors, err := o.extractor.Extract(ctx, image, o.colors)
	if err != nil {
		return nil, fmt.Errorf("service: failed to extract palette: %w", err)
	}
	return o.classifier.ClassifyAll(colors), nil
}

// Synthesize runs the full pipeline and persists the waveform under a fresh,
// request-unique key.
func (o *Orchestrator) Synthesize(ctx context.Context, image io.Reader) (domain.Synthesis, error) {
	// 1. Extract and classify, hashing the upload as it is read
	digest := sha256.New()
	matches, err := o.Analyze(ctx, io.TeeReader(image, digest))
	if err != nil {
		return domain.Synthesis{}, err
	}

	// 2. Render the waveform
	selections := domain.Selections(matches)
	wave, err := o.synth.Synthesize(selections)
	if err != nil {
		return domain.Synthesis{}, fmt.Errorf("service: failed to synthesize waveform: %w", err)
	}

	// 3. Persist audio, then metadata
	id := o.newID()
	created := o.now().UTC()
	rec := domain.Synthesis{
		ID:          id,
		AudioKey:    id + audioExtension,
		ImageDigest: hex.EncodeToString(digest.Sum(nil)),
		Colors:      make([]domain.RGB, len(matches)),
		Labels:      make([]string, len(matches)),
		Frequencies: selections,
		SampleRate:  wave.SampleRate,
		SampleCount: len(wave.Samples),
		CreatedAt:   created,
	}
	if o.ttl > 0 {
		rec.ExpiresAt = created.Add(o.ttl)
	}
	for i, m := range matches {
		rec.Colors[i] = m.Color
		rec.Labels[i] = m.Label
	}

	if err := o.store.Save(ctx, rec.AudioKey, wave); err != nil {
		return domain.Synthesis{}, fmt.Errorf("service: failed to store waveform: %w", err)
	}
	if err := o.repo.SaveSynthesis(ctx, rec); err != nil {
		if delErr := o.store.Delete(ctx, rec.AudioKey); delErr != nil {
			o.logger.Warn("orphaned waveform after failed record", zap.String("key", rec.AudioKey), zap.Error(delErr))
		}
		return domain.Synthesis{}, fmt.Errorf("service: failed to record synthesis: %w", errors.Join(domain.ErrStorage, err))
	}

	o.logger.Info("synthesized waveform",
		zap.String("id", rec.ID),
		zap.Int("selections", len(selections)),
		zap.Int("samples", rec.SampleCount),
		zap.Duration("duration", wave.Duration()),
	)
	return rec, nil
}

// GetSynthesis loads a synthesis record. Expired records are reported as not found.
func (o *Orchestrator) GetSynthesis(ctx context.Context, id string) (domain.Synthesis, error) {
	if id == "" {
		return domain.Synthesis{}, domain.InvalidArgumentf("service: synthesis id cannot be empty")
	}
	rec, err := o.repo.GetSynthesis(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Synthesis{}, err
		}
		return domain.Synthesis{}, fmt.Errorf("service: failed to load synthesis: %w", err)
	}
	if rec.Expired(o.now()) {
		return domain.Synthesis{}, domain.ErrNotFound
	}
	return rec, nil
}

// OpenAudio opens the waveform file with the given name ("<id>.wav").
// The caller must close the returned reader.
func (o *Orchestrator) OpenAudio(ctx context.Context, name string) (io.ReadCloser, domain.Synthesis, error) {
	id, ok := strings.CutSuffix(name, audioExtension)
	if !ok || id == "" {
		return nil, domain.Synthesis{}, domain.ErrNotFound
	}
	rec, err := o.GetSynthesis(ctx, id)
	if err != nil {
		return nil, domain.Synthesis{}, err
	}
	if rec.AudioKey != name {
		return nil, domain.Synthesis{}, domain.ErrNotFound
	}
	rc, err := o.store.Open(ctx, rec.AudioKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Synthesis{}, err
		}
		return nil, domain.Synthesis{}, fmt.Errorf("service: failed to open waveform: %w", err)
	}
	return rc, rec, nil
}

// ReferenceColors lists the palette the classifier matches against, in table order.
func (o *Orchestrator) ReferenceColors() []domain.ReferenceColor {
	return o.classifier.Palette().Colors()
}

// BlendPolicy reports how ambiguous colors are turned into frequencies.
func (o *Orchestrator) BlendPolicy() domain.BlendPolicy {
	return o.classifier.Policy()
}
