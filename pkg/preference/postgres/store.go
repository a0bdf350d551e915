// Package postgres stores voice preferences in a PostgreSQL table.
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//	_ = store.SetPreferredVoice(ctx, clientID, "Samantha")
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saalsai1/SER598-Group2-ma/pkg/preference"
)

var _ preference.Store = (*Store)(nil)

const ddlPreferences = `
CREATE TABLE IF NOT EXISTS client_preferences (
    client_id   TEXT        NOT NULL,
    key         TEXT        NOT NULL,
    value       TEXT        NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (client_id, key)
)`

// Migrate creates the preference table when it does not exist. It is safe to
// call repeatedly.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlPreferences); err != nil {
		return fmt.Errorf("migrate client_preferences: %w", err)
	}
	return nil
}

// Store is a [preference.Store] backed by a pgx connection pool. Safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn, verifies the connection and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("preference postgres: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("preference postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("preference postgres: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("preference postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// PreferredVoice implements [preference.Store].
func (s *Store) PreferredVoice(ctx context.Context, clientID string) (string, error) {
	const q = `SELECT value FROM client_preferences WHERE client_id = $1 AND key = $2`

	var voice string
	err := s.pool.QueryRow(ctx, q, clientID, preference.PreferredVoiceKey).Scan(&voice)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", preference.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("preference postgres: get voice: %w", err)
	}
	return voice, nil
}

// SetPreferredVoice implements [preference.Store]. An empty voice deletes the
// row.
func (s *Store) SetPreferredVoice(ctx context.Context, clientID, voice string) error {
	if clientID == "" {
		return errors.New("preference postgres: client id is required")
	}
	if voice == "" {
		const del = `DELETE FROM client_preferences WHERE client_id = $1 AND key = $2`
		if _, err := s.pool.Exec(ctx, del, clientID, preference.PreferredVoiceKey); err != nil {
			return fmt.Errorf("preference postgres: clear voice: %w", err)
		}
		return nil
	}

	const upsert = `
		INSERT INTO client_preferences (client_id, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (client_id, key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	if _, err := s.pool.Exec(ctx, upsert, clientID, preference.PreferredVoiceKey, voice); err != nil {
		return fmt.Errorf("preference postgres: set voice: %w", err)
	}
	return nil
}

// Ping implements [preference.Store].
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements [preference.Store]. It closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
