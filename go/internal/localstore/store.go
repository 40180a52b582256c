// Package localstore is the client's small on-disk state: the per-game
// hint trail and a couple of user preferences. Everything the remote
// service owns stays remote; this store only survives reconnects.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/mdev84/spyline/go/internal/models"
	"github.com/mdev84/spyline/go/internal/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS hint_trails (
	game_id    TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS prefs (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const prefConfirmReveal = "confirm_before_reveal"

// Store wraps the sqlite file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path and applies the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	// A single writer keeps sqlite happy under concurrent saves.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate local store: %w", err)
	}

	log.Info().Str("path", path).Msg("local store opened")
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveTrail upserts the full hint trail for one game.
func (s *Store) SaveTrail(ctx context.Context, gameID uuid.UUID, trails map[models.Team][]session.HintEntry) error {
	payload, err := json.Marshal(trails)
	if err != nil {
		return fmt.Errorf("marshal hint trail: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO hint_trails (game_id, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (game_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		gameID.String(), string(payload), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save hint trail: %w", err)
	}
	return nil
}

// LoadTrail returns the persisted hint trail for a game, or nil when
// none was saved yet.
func (s *Store) LoadTrail(ctx context.Context, gameID uuid.UUID) (map[models.Team][]session.HintEntry, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM hint_trails WHERE game_id = ?`, gameID.String(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load hint trail: %w", err)
	}

	var trails map[models.Team][]session.HintEntry
	if err := json.Unmarshal([]byte(payload), &trails); err != nil {
		return nil, fmt.Errorf("unmarshal hint trail: %w", err)
	}
	return trails, nil
}

// SetConfirmReveal persists the confirm-before-reveal preference.
func (s *Store) SetConfirmReveal(ctx context.Context, confirm bool) error {
	value := "0"
	if confirm {
		value = "1"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prefs (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		prefConfirmReveal, value,
	)
	if err != nil {
		return fmt.Errorf("save preference: %w", err)
	}
	return nil
}

// ConfirmReveal reads the confirm-before-reveal preference, defaulting
// to true when unset.
func (s *Store) ConfirmReveal(ctx context.Context) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM prefs WHERE key = ?`, prefConfirmReveal,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return true, fmt.Errorf("load preference: %w", err)
	}
	return value == "1", nil
}
