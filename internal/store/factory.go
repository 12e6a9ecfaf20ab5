package store

import (
	"fmt"

	"github.com/nhle/notify-engine/internal/model"
)

// Open builds the StateStore selected by the configuration's store
// section. Unknown drivers are an error rather than a silent fallback.
func Open(cfg model.StoreConfig) (StateStore, error) {
	switch cfg.Driver {
	case "", "sqlite":
		s, err := NewSQLiteStore(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite state store: %w", err)
		}
		return s, nil
	case "postgres":
		s, err := NewPostgresStore(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres state store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown state store driver %q", cfg.Driver)
	}
}
