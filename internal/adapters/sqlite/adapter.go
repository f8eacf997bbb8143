// Package sqlite provides a SQLite-backed implementation of the synthesis repository port.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ewilliams-labs/chromatone/backend/internal/core/domain"
	"github.com/ewilliams-labs/chromatone/backend/internal/core/ports"
	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously
)

// Adapter implements the repository port for SQLite
type Adapter struct {
	db *sql.DB
}

// compile-time interface assertion
var _ ports.SynthesisRepository = (*Adapter)(nil)

// NewAdapter creates a connection and runs the schema migration
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	// Every pooled connection to a private in-memory database sees its own empty schema.
	if strings.Contains(storagePath, ":memory:") && !strings.Contains(storagePath, "cache=shared") {
		db.SetMaxOpenConns(1)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	adapter := &Adapter{db: db}

	// Auto-migrate on startup
	if err := adapter.migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

func (a *Adapter) SaveSynthesis(ctx context.Context, s domain.Synthesis) error {
	colors, err := json.Marshal(s.Colors)
	if err != nil {
		return fmt.Errorf("failed to encode colors: %w", err)
	}
	labels, err := json.Marshal(s.Labels)
	if err != nil {
		return fmt.Errorf("failed to encode labels: %w", err)
	}
	freqs, err := json.Marshal(s.Frequencies)
	if err != nil {
		return fmt.Errorf("failed to encode frequencies: %w", err)
	}

	query := `
		INSERT INTO syntheses (
			id, audio_key, image_digest, colors, labels, frequencies,
			sample_rate, sample_count, created_at, expires_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			audio_key=excluded.audio_key,
			image_digest=excluded.image_digest,
			colors=excluded.colors,
			labels=excluded.labels,
			frequencies=excluded.frequencies,
			sample_rate=excluded.sample_rate,
			sample_count=excluded.sample_count,
			created_at=excluded.created_at,
			expires_at=excluded.expires_at;
	`
	if _, err := a.db.ExecContext(
		ctx,
		query,
		s.ID,
		s.AudioKey,
		s.ImageDigest,
		string(colors),
		string(labels),
		string(freqs),
		s.SampleRate,
		s.SampleCount,
		s.CreatedAt.UTC().UnixNano(),
		nullableTime(s.ExpiresAt),
	); err != nil {
		return fmt.Errorf("failed to save synthesis %s: %w", s.ID, err)
	}
	return nil
}

const selectSynthesis = `
	SELECT id, audio_key, image_digest, colors, labels, frequencies,
		sample_rate, sample_count, created_at, expires_at
	FROM syntheses
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSynthesis(row rowScanner) (domain.Synthesis, error) {
	var s domain.Synthesis
	var colors, labels, freqs string
	var created int64
	var expires sql.NullInt64
	if err := row.Scan(
		&s.ID,
		&s.AudioKey,
		&s.ImageDigest,
		&colors,
		&labels,
		&freqs,
		&s.SampleRate,
		&s.SampleCount,
		&created,
		&expires,
	); err != nil {
		return domain.Synthesis{}, err
	}
	if err := json.Unmarshal([]byte(colors), &s.Colors); err != nil {
		return domain.Synthesis{}, fmt.Errorf("failed to decode colors: %w", err)
	}
	if err := json.Unmarshal([]byte(labels), &s.Labels); err != nil {
		return domain.Synthesis{}, fmt.Errorf("failed to decode labels: %w", err)
	}
	if err := json.Unmarshal([]byte(freqs), &s.Frequencies); err != nil {
		return domain.Synthesis{}, fmt.Errorf("failed to decode frequencies: %w", err)
	}
	s.CreatedAt = time.Unix(0, created).UTC()
	if expires.Valid {
		s.ExpiresAt = time.Unix(0, expires.Int64).UTC()
	}
	return s, nil
}

func (a *Adapter) GetSynthesis(ctx context.Context, id string) (domain.Synthesis, error) {
	row := a.db.QueryRowContext(ctx, selectSynthesis+" WHERE id = ?", id)
	s, err := scanSynthesis(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Synthesis{}, domain.ErrNotFound
		}
		return domain.Synthesis{}, fmt.Errorf("failed to load synthesis: %w", err)
	}
	return s, nil
}

// ListExpired returns syntheses whose expiry is at or before the given time, oldest first.
func (a *Adapter) ListExpired(ctx context.Context, before time.Time, limit int) ([]domain.Synthesis, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.db.QueryContext(ctx, selectSynthesis+" WHERE expires_at IS NOT NULL AND expires_at <= ? ORDER BY expires_at ASC, id ASC LIMIT ?", before.UTC().UnixNano(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired syntheses: %w", err)
	}
	defer rows.Close()

	out := []domain.Synthesis{}
	for rows.Next() {
		s, err := scanSynthesis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan synthesis: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate syntheses: %w", err)
	}
	return out, nil
}

func (a *Adapter) DeleteSynthesis(ctx context.Context, id string) error {
	res, err := a.db.ExecContext(ctx, "DELETE FROM syntheses WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete synthesis: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete synthesis: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS syntheses (
		id TEXT PRIMARY KEY,
		audio_key TEXT NOT NULL,
		image_digest TEXT,
		colors TEXT NOT NULL,
		frequencies TEXT NOT NULL,
		sample_rate INTEGER NOT NULL,
		sample_count INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_syntheses_expires_at ON syntheses(expires_at);
	`
	if _, err := a.db.Exec(query); err != nil {
		return err
	}

	if _, err := a.db.Exec("ALTER TABLE syntheses ADD COLUMN labels TEXT NOT NULL DEFAULT '[]'"); err != nil {
		if !isDuplicateColumnError(err) {
			return err
		}
	}

	return nil
}

// nullableTime stores a zero time (no expiry) as NULL.
func nullableTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().UnixNano(), Valid: true}
}

func isDuplicateColumnError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "duplicate column") || strings.Contains(err.Error(), "already exists"))
}
