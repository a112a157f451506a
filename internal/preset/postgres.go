package preset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists presets in a mapping_presets table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the presets table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS mapping_presets (
			id         UUID PRIMARY KEY,
			signature  TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL,
			headers    JSONB NOT NULL,
			mapping    JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("migrate mapping_presets: %w", err)
	}
	return nil
}

// GetBySignature implements Store.
func (s *PostgresStore) GetBySignature(ctx context.Context, signature string) (*Preset, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, signature, name, headers, mapping, created_at, updated_at
		FROM mapping_presets
		WHERE signature = $1`, signature)

	p, err := scanPreset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get preset: %w", err)
	}
	return p, nil
}

// Put implements Store. The signature is the upsert key, so re-saving a
// mapping for a known file shape replaces the previous one.
func (s *PostgresStore) Put(ctx context.Context, p Preset) (*Preset, error) {
	headersJSON, err := json.Marshal(p.Headers)
	if err != nil {
		return nil, fmt.Errorf("marshal headers: %w", err)
	}
	mappingJSON, err := json.Marshal(p.Mapping)
	if err != nil {
		return nil, fmt.Errorf("marshal mapping: %w", err)
	}

	now := time.Now()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO mapping_presets (id, signature, name, headers, mapping, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (signature) DO UPDATE SET
			name       = EXCLUDED.name,
			headers    = EXCLUDED.headers,
			mapping    = EXCLUDED.mapping,
			updated_at = EXCLUDED.updated_at
		RETURNING id, signature, name, headers, mapping, created_at, updated_at`,
		pgtype.UUID{Bytes: uuid.New(), Valid: true},
		p.Signature, p.Name, headersJSON, mappingJSON, now)

	stored, err := scanPreset(row)
	if err != nil {
		return nil, fmt.Errorf("put preset: %w", err)
	}
	return stored, nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context) ([]Preset, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, signature, name, headers, mapping, created_at, updated_at
		FROM mapping_presets
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	defer rows.Close()

	var presets []Preset
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, fmt.Errorf("list presets: %w", err)
		}
		presets = append(presets, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	return presets, nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid preset ID: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM mapping_presets WHERE id = $1`,
		pgtype.UUID{Bytes: uid, Valid: true})
	if err != nil {
		return fmt.Errorf("delete preset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanPreset reads one preset row and unpacks its JSONB columns.
func scanPreset(row pgx.Row) (*Preset, error) {
	var (
		id        pgtype.UUID
		p         Preset
		headers   []byte
		mapping   []byte
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &p.Signature, &p.Name, &headers, &mapping, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	p.ID = uuid.UUID(id.Bytes).String()
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time

	if err := json.Unmarshal(headers, &p.Headers); err != nil {
		return nil, fmt.Errorf("unmarshal headers: %w", err)
	}
	if err := json.Unmarshal(mapping, &p.Mapping); err != nil {
		return nil, fmt.Errorf("unmarshal mapping: %w", err)
	}
	return &p, nil
}
