package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/notify-engine/internal/model"
)

// SQLiteStore implements StateStore using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Load retrieves the stored state for userKey. A missing row returns
// (nil, nil); a corrupt blob is logged and also treated as absent so
// the engine can rebuild from an empty baseline.
func (s *SQLiteStore) Load(
	ctx context.Context,
	userKey string,
) (*model.StoredState, error) {
	var blob string
	err := s.db.GetContext(ctx, &blob,
		"SELECT state FROM notification_state WHERE user_key = ?", userKey,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading state for %s: %w", userKey, err)
	}

	var state model.StoredState
	if err := json.Unmarshal([]byte(blob), &state); err != nil {
		log.Printf("discarding corrupt state blob for %s: %v", userKey, err)
		return nil, nil
	}

	return &state, nil
}

// Save writes the complete state blob for userKey, replacing any prior row.
func (s *SQLiteStore) Save(
	ctx context.Context,
	userKey string,
	state *model.StoredState,
) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling state for %s: %w", userKey, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO notification_state (user_key, state, updated_at)
		VALUES (?, ?, ?)`,
		userKey, string(blob), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving state for %s: %w", userKey, err)
	}

	return nil
}
