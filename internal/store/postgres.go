package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/nhle/notify-engine/internal/model"
)

const postgresStateTable = "notification_state"

// PostgresStore implements StateStore against a PostgreSQL database,
// for deployments where the engine state lives in a shared backend
// rather than a local file.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to PostgreSQL with the given DSN and
// ensures the state table exists.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			user_key   TEXT PRIMARY KEY,
			state      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, postgresStateTable)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Load retrieves the stored state for userKey. A missing row returns
// (nil, nil); a corrupt blob is logged and treated as absent.
func (s *PostgresStore) Load(
	ctx context.Context,
	userKey string,
) (*model.StoredState, error) {
	query := fmt.Sprintf(
		"SELECT state FROM %s WHERE user_key = $1", postgresStateTable,
	)

	var blob string
	err := s.db.QueryRowContext(ctx, query, userKey).Scan(&blob)
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
func (s *PostgresStore) Save(
	ctx context.Context,
	userKey string,
	state *model.StoredState,
) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling state for %s: %w", userKey, err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (user_key, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_key) DO UPDATE
		SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		postgresStateTable,
	)

	if _, err := s.db.ExecContext(ctx, query, userKey, string(blob), time.Now().UTC()); err != nil {
		return fmt.Errorf("saving state for %s: %w", userKey, err)
	}

	return nil
}
