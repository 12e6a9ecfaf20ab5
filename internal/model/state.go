package model

import (
	"fmt"
	"time"
)

// StoredState is the complete serializable engine state for one user:
// the notification list plus the dedup baselines the diff pass consults.
// It is persisted as a single blob keyed by StorageKey.
type StoredState struct {
	Notifications []Notification `json:"notifications"`

	// LastSeenPerThread is the high-water mark of the newest message
	// timestamp already surfaced (or silently baselined) per thread.
	LastSeenPerThread map[int64]time.Time `json:"last_seen_per_thread"`

	// SeenResourceIDs holds every resource id already surfaced or
	// baselined. Grows without eviction for the life of the state.
	SeenResourceIDs []int64 `json:"seen_resource_ids"`

	// ThreadsBaselined and ResourcesBaselined flip to true once the
	// corresponding feed has completed its one-time cold-start pass.
	ThreadsBaselined   bool `json:"threads_baselined"`
	ResourcesBaselined bool `json:"resources_baselined"`
}

// StorageKey returns the per-user key under which a session's state is
// persisted. Switching users must never read another user's key.
func StorageKey(userID int64) string {
	return fmt.Sprintf("notifications.%d", userID)
}
