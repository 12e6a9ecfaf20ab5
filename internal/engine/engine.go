// Package engine implements the notification ingestion and read-state
// tracking core: it reconciles thread and resource feed snapshots
// against per-user dedup baselines and maintains an ordered,
// deduplicated notification list with read/unread state.
package engine

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/nhle/notify-engine/internal/model"
	"github.com/nhle/notify-engine/internal/store"
)

// saveTimeout bounds a single background persistence write.
const saveTimeout = 5 * time.Second

// Engine owns the notification state for one authenticated session.
// All mutations are serialized through a single mutex, so ingestion
// calls for the same user never interleave their read-modify-write of
// the watermark maps. Create one with NewSession and discard it when
// the session ends or switches users.
type Engine struct {
	mu sync.Mutex

	userID  int64
	userKey string
	store   store.StateStore

	notifications      []model.Notification
	lastSeenPerThread  map[int64]time.Time
	seenResourceIDs    map[int64]struct{}
	threadsBaselined   bool
	resourcesBaselined bool

	closed bool
	saveCh chan *model.StoredState
	saveWG sync.WaitGroup

	// now is swapped in tests to pin resource timestamps.
	now func() time.Time
}

// NewSession creates the engine for userID, loading any prior state
// from the store. A load failure or corrupt blob is logged and treated
// as "no prior state", so the next ingestion runs a silent cold-start
// baseline instead of flooding or crashing.
func NewSession(
	ctx context.Context,
	userID int64,
	st store.StateStore,
) *Engine {
	e := &Engine{
		userID:            userID,
		userKey:           model.StorageKey(userID),
		store:             st,
		lastSeenPerThread: make(map[int64]time.Time),
		seenResourceIDs:   make(map[int64]struct{}),
		saveCh:            make(chan *model.StoredState, 1),
		now:               time.Now,
	}

	state, err := st.Load(ctx, e.userKey)
	if err != nil {
		log.Printf("loading notification state for %s: %v (starting empty)", e.userKey, err)
	}
	if state != nil {
		e.notifications = append(e.notifications, state.Notifications...)
		for id, ts := range state.LastSeenPerThread {
			e.lastSeenPerThread[id] = ts
		}
		for _, id := range state.SeenResourceIDs {
			e.seenResourceIDs[id] = struct{}{}
		}
		e.threadsBaselined = state.ThreadsBaselined
		e.resourcesBaselined = state.ResourcesBaselined
	}

	e.saveWG.Add(1)
	go e.runSaver()

	return e
}

// UserID returns the id of the user this session belongs to.
func (e *Engine) UserID() int64 {
	return e.userID
}

// Close stops the background persistence writer after it drains any
// pending snapshot. Mutations after Close are discarded.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.saveCh)
	e.mu.Unlock()

	e.saveWG.Wait()
}

// persistLocked hands the current state to the background writer.
// Callers must hold e.mu. The handoff is latest-wins: a pending
// unsaved snapshot is replaced rather than queued, and the single
// writer goroutine serializes the actual saves, so a later state can
// never be overwritten by a write carrying an earlier one.
func (e *Engine) persistLocked() {
	if e.closed {
		return
	}

	snap := e.snapshotLocked()
	select {
	case <-e.saveCh:
	default:
	}
	e.saveCh <- snap
}

// snapshotLocked copies the in-memory state into a StoredState.
// Callers must hold e.mu.
func (e *Engine) snapshotLocked() *model.StoredState {
	snap := &model.StoredState{
		Notifications:      make([]model.Notification, len(e.notifications)),
		LastSeenPerThread:  make(map[int64]time.Time, len(e.lastSeenPerThread)),
		SeenResourceIDs:    make([]int64, 0, len(e.seenResourceIDs)),
		ThreadsBaselined:   e.threadsBaselined,
		ResourcesBaselined: e.resourcesBaselined,
	}
	copy(snap.Notifications, e.notifications)
	for id, ts := range e.lastSeenPerThread {
		snap.LastSeenPerThread[id] = ts
	}
	for id := range e.seenResourceIDs {
		snap.SeenResourceIDs = append(snap.SeenResourceIDs, id)
	}
	sort.Slice(snap.SeenResourceIDs, func(i, j int) bool {
		return snap.SeenResourceIDs[i] < snap.SeenResourceIDs[j]
	})
	return snap
}

// runSaver is the single background persistence writer. The in-memory
// state stays authoritative for the running session; a failed save only
// risks durability across a restart, so it is logged and not retried.
func (e *Engine) runSaver() {
	defer e.saveWG.Done()

	for snap := range e.saveCh {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		if err := e.store.Save(ctx, e.userKey, snap); err != nil {
			log.Printf("persisting notification state for %s: %v", e.userKey, err)
		}
		cancel()
	}
}
