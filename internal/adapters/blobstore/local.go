// Package blobstore persists encoded waveforms on the local filesystem or in S3.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ewilliams-labs/chromatone/backend/internal/adapters/wavfile"
	"github.com/ewilliams-labs/chromatone/backend/internal/core/domain"
	"github.com/ewilliams-labs/chromatone/backend/internal/core/ports"
)

// Extension is the only file suffix accepted as a waveform key.
const Extension = ".wav"

// ValidateKey rejects keys that could escape the storage root or are not WAV names.
func ValidateKey(key string) error {
	if key == "" || key == Extension {
		return domain.InvalidArgumentf("blobstore: empty key")
	}
	if strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") || strings.HasPrefix(key, ".") {
		return domain.InvalidArgumentf("blobstore: invalid key %q", key)
	}
	if filepath.Ext(key) != Extension {
		return domain.InvalidArgumentf("blobstore: key %q must end in %s", key, Extension)
	}
	return nil
}

// Local stores waveforms as files in a single directory.
type Local struct {
	dir string
}

// compile-time interface assertion
var _ ports.WaveformStore = (*Local)(nil)

// NewLocal creates dir if needed.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, errors.New("blobstore: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create %s: %w", dir, err)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) Dir() string {
	return l.dir
}

// Save encodes into a temp file next to the target and renames it into place,
// so concurrent readers never observe a partially written file.
func (l *Local) Save(ctx context.Context, key string, w domain.Waveform) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("blobstore: save canceled: %w", err)
	}

	tmp, err := os.CreateTemp(l.dir, ".upload-*"+Extension)
	if err != nil {
		return fmt.Errorf("%w: blobstore: create temp file: %v", domain.ErrStorage, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := wavfile.Encode(tmp, w); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: blobstore: %v", domain.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: blobstore: close temp file: %v", domain.ErrStorage, err)
	}
	if err := os.Rename(tmpName, filepath.Join(l.dir, key)); err != nil {
		return fmt.Errorf("%w: blobstore: rename into place: %v", domain.ErrStorage, err)
	}
	return nil
}

// Open returns the stored file. The returned *os.File also implements io.Seeker.
func (l *Local) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(l.dir, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: blobstore: open %s: %v", domain.ErrStorage, key, err)
	}
	return f, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(l.dir, key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("%w: blobstore: delete %s: %v", domain.ErrStorage, key, err)
	}
	return nil
}
