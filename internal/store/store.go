package store

import (
	"context"

	"github.com/nhle/notify-engine/internal/model"
)

// StateStore persists the engine's per-user state as a single blob
// keyed by the user's storage key. The in-memory state is authoritative
// for a running session; the persisted copy is a checkpoint for the
// next cold start.
type StateStore interface {
	// Load retrieves the stored state for userKey. A missing or
	// unreadable blob returns (nil, nil): the engine treats both as
	// "no prior state" and starts from empty baselines.
	Load(ctx context.Context, userKey string) (*model.StoredState, error)

	// Save writes the complete state for userKey, replacing any
	// prior blob.
	Save(ctx context.Context, userKey string, state *model.StoredState) error

	// Close releases the underlying resources.
	Close() error
}
