// Package config reads service settings from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ewilliams-labs/chromatone/backend/internal/adapters/blobstore"
	"github.com/ewilliams-labs/chromatone/backend/internal/adapters/imaging"
	"github.com/ewilliams-labs/chromatone/backend/internal/core/domain"
)

const (
	defaultAddr           = ":10000"
	defaultLogLevel       = "info"
	defaultColors         = imaging.DefaultColorCount
	maxColors             = 16
	defaultStorageDriver  = "local"
	defaultAudioDir       = "audio"
	defaultS3Region       = "us-east-1"
	defaultDatabasePath   = "chromatone.db"
	defaultAudioTTL       = time.Hour
	defaultSweepInterval  = 5 * time.Minute
	defaultWorkers        = 2
	defaultQueueSize      = 100
	defaultMaxUploadBytes = 10 << 20
	defaultMaxImagePixels = 40_000_000
)

// Storage drivers.
const (
	DriverLocal = "local"
	DriverS3    = "s3"
)

// Config is the fully validated service configuration.
type Config struct {
	Addr     string
	LogLevel string

	Colors         int
	PaletteMethod  imaging.Method
	MatchThreshold float64
	BlendPolicy    domain.BlendPolicy

	StorageDriver string
	AudioDir      string
	S3            blobstore.S3Config

	DatabasePath  string
	AudioTTL      time.Duration
	SweepInterval time.Duration
	Workers       int
	QueueSize     int

	MaxUploadBytes int64
	MaxImagePixels int
}

// Load reads the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads settings through getenv. Unset variables take their
// defaults; malformed or out-of-range values are reported together.
func LoadFrom(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}

	cfg := Config{
		Addr:     p.str("ADDR", defaultAddr),
		LogLevel: strings.ToLower(p.str("LOG_LEVEL", defaultLogLevel)),

		Colors:         p.intIn("PALETTE_COLORS", defaultColors, 1, maxColors),
		MatchThreshold: p.positiveFloat("MATCH_THRESHOLD", domain.DefaultMatchThreshold),

		StorageDriver: strings.ToLower(p.str("STORAGE_DRIVER", defaultStorageDriver)),
		AudioDir:      p.str("AUDIO_DIR", defaultAudioDir),
		S3: blobstore.S3Config{
			Bucket:    p.str("S3_BUCKET", ""),
			Prefix:    p.str("S3_PREFIX", ""),
			Region:    p.str("S3_REGION", defaultS3Region),
			Endpoint:  p.str("S3_ENDPOINT", ""),
			AccessKey: p.str("S3_ACCESS_KEY", ""),
			SecretKey: p.str("S3_SECRET_KEY", ""),
		},

		DatabasePath:  p.str("DATABASE_PATH", defaultDatabasePath),
		AudioTTL:      p.duration("AUDIO_TTL", defaultAudioTTL),
		SweepInterval: p.duration("SWEEP_INTERVAL", defaultSweepInterval),
		Workers:       p.intIn("WORKERS", defaultWorkers, 1, 64),
		QueueSize:     p.intIn("QUEUE_SIZE", defaultQueueSize, 1, 100_000),

		MaxUploadBytes: int64(p.intIn("MAX_UPLOAD_BYTES", defaultMaxUploadBytes, 1, 1<<30)),
		MaxImagePixels: p.intIn("MAX_IMAGE_PIXELS", defaultMaxImagePixels, 1, 1<<31-1),
	}

	method, err := imaging.ParseMethod(getenv("PALETTE_METHOD"))
	p.check(err)
	cfg.PaletteMethod = method

	policy := domain.BlendPair
	if raw := getenv("BLEND_POLICY"); raw != "" {
		policy, err = domain.ParseBlendPolicy(raw)
		p.check(err)
	}
	cfg.BlendPolicy = policy

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		p.fail("LOG_LEVEL", cfg.LogLevel)
	}

	switch cfg.StorageDriver {
	case DriverLocal:
		if cfg.AudioDir == "" {
			p.fail("AUDIO_DIR", "")
		}
	case DriverS3:
		if cfg.S3.Bucket == "" {
			p.errs = append(p.errs, errors.New("config: S3_BUCKET is required when STORAGE_DRIVER=s3"))
		}
		if (cfg.S3.AccessKey == "") != (cfg.S3.SecretKey == "") {
			p.errs = append(p.errs, errors.New("config: S3_ACCESS_KEY and S3_SECRET_KEY must be set together"))
		}
	default:
		p.fail("STORAGE_DRIVER", cfg.StorageDriver)
	}

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parser accumulates validation errors so startup reports every bad variable at once.
type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) fail(key, raw string) {
	p.errs = append(p.errs, fmt.Errorf("config: invalid %s %q", key, raw))
}

func (p *parser) check(err error) {
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("config: %w", err))
	}
}

func (p *parser) str(key, def string) string {
	if raw := strings.TrimSpace(p.getenv(key)); raw != "" {
		return raw
	}
	return def
}

func (p *parser) intIn(key string, def, lo, hi int) int {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < lo || parsed > hi {
		p.fail(key, raw)
		return def
	}
	return parsed
}

func (p *parser) positiveFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || !(parsed > 0) || parsed > 1e6 {
		p.fail(key, raw)
		return def
	}
	return parsed
}

// duration accepts Go duration syntax; "0" disables the feature it controls.
func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed < 0 {
		p.fail(key, raw)
		return def
	}
	return parsed
}
