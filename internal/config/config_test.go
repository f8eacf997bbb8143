package config

import (
	"strings"
	"testing"
	"time"

	"github.com/ewilliams-labs/chromatone/backend/internal/adapters/imaging"
	"github.com/ewilliams-labs/chromatone/backend/internal/core/domain"
)

func envOf(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(envOf(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":10000" {
		t.Errorf("addr: got %q", cfg.Addr)
	}
	if cfg.Colors != 3 || cfg.PaletteMethod != imaging.MethodMedianCut {
		t.Errorf("palette: got %d %q", cfg.Colors, cfg.PaletteMethod)
	}
	if cfg.MatchThreshold != 60 || cfg.BlendPolicy != domain.BlendPair {
		t.Errorf("classifier: got %v %q", cfg.MatchThreshold, cfg.BlendPolicy)
	}
	if cfg.StorageDriver != DriverLocal || cfg.AudioDir != "audio" {
		t.Errorf("storage: got %q %q", cfg.StorageDriver, cfg.AudioDir)
	}
	if cfg.AudioTTL != time.Hour || cfg.SweepInterval != 5*time.Minute {
		t.Errorf("lifecycle: got %v %v", cfg.AudioTTL, cfg.SweepInterval)
	}
	if cfg.Workers != 2 || cfg.QueueSize != 100 {
		t.Errorf("pool: got %d %d", cfg.Workers, cfg.QueueSize)
	}
	if cfg.MaxUploadBytes != 10<<20 || cfg.MaxImagePixels != 40_000_000 {
		t.Errorf("limits: got %d %d", cfg.MaxUploadBytes, cfg.MaxImagePixels)
	}
	if cfg.S3.Region != "us-east-1" {
		t.Errorf("s3 region: got %q", cfg.S3.Region)
	}
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(envOf(map[string]string{
		"ADDR":            ":8080",
		"LOG_LEVEL":       "DEBUG",
		"PALETTE_COLORS":  "7",
		"PALETTE_METHOD":  "kmeans",
		"MATCH_THRESHOLD": "42.5",
		"BLEND_POLICY":    "average",
		"STORAGE_DRIVER":  "s3",
		"S3_BUCKET":       "waves",
		"S3_ENDPOINT":     "http://localhost:4566",
		"S3_ACCESS_KEY":   "test",
		"S3_SECRET_KEY":   "test",
		"AUDIO_TTL":       "0",
		"WORKERS":         "4",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.LogLevel != "debug" {
		t.Errorf("server: got %q %q", cfg.Addr, cfg.LogLevel)
	}
	if cfg.Colors != 7 || cfg.PaletteMethod != imaging.MethodKMeans {
		t.Errorf("palette: got %d %q", cfg.Colors, cfg.PaletteMethod)
	}
	if cfg.MatchThreshold != 42.5 || cfg.BlendPolicy != domain.BlendAverage {
		t.Errorf("classifier: got %v %q", cfg.MatchThreshold, cfg.BlendPolicy)
	}
	if cfg.StorageDriver != DriverS3 || cfg.S3.Bucket != "waves" || cfg.S3.Endpoint != "http://localhost:4566" {
		t.Errorf("s3: got %+v", cfg.S3)
	}
	if cfg.AudioTTL != 0 || cfg.Workers != 4 {
		t.Errorf("got ttl %v workers %d", cfg.AudioTTL, cfg.Workers)
	}
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "too many colors", env: map[string]string{"PALETTE_COLORS": "17"}, wantErr: "PALETTE_COLORS"},
		{name: "zero colors", env: map[string]string{"PALETTE_COLORS": "0"}, wantErr: "PALETTE_COLORS"},
		{name: "non numeric threshold", env: map[string]string{"MATCH_THRESHOLD": "sixty"}, wantErr: "MATCH_THRESHOLD"},
		{name: "negative threshold", env: map[string]string{"MATCH_THRESHOLD": "-1"}, wantErr: "MATCH_THRESHOLD"},
		{name: "unknown method", env: map[string]string{"PALETTE_METHOD": "octree"}, wantErr: "palette method"},
		{name: "unknown policy", env: map[string]string{"BLEND_POLICY": "mix"}, wantErr: "blend policy"},
		{name: "unknown driver", env: map[string]string{"STORAGE_DRIVER": "gcs"}, wantErr: "STORAGE_DRIVER"},
		{name: "s3 without bucket", env: map[string]string{"STORAGE_DRIVER": "s3"}, wantErr: "S3_BUCKET"},
		{name: "half credentials", env: map[string]string{"STORAGE_DRIVER": "s3", "S3_BUCKET": "b", "S3_ACCESS_KEY": "k"}, wantErr: "S3_SECRET_KEY"},
		{name: "bad duration", env: map[string]string{"AUDIO_TTL": "forever"}, wantErr: "AUDIO_TTL"},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "chatty"}, wantErr: "LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(envOf(tt.env))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadFrom_ReportsEveryProblem(t *testing.T) {
	_, err := LoadFrom(envOf(map[string]string{"WORKERS": "0", "QUEUE_SIZE": "x"}))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"WORKERS", "QUEUE_SIZE"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error should mention %s: %v", key, err)
		}
	}
}
