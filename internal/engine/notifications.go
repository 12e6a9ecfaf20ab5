package engine

import (
	"sort"

	"github.com/nhle/notify-engine/internal/model"
)

// addNotificationsLocked merges entries into the list: items whose id
// is already present are dropped (their existing read flag untouched),
// survivors are prepended, and the whole list is re-sorted by timestamp
// descending. Merging the same batch twice is a no-op the second time.
// Returns the number of entries actually added. Callers must hold e.mu.
func (e *Engine) addNotificationsLocked(entries []model.Notification) int {
	if len(entries) == 0 {
		return 0
	}

	existing := make(map[string]struct{}, len(e.notifications))
	for _, n := range e.notifications {
		existing[n.ID] = struct{}{}
	}

	added := 0
	merged := make([]model.Notification, 0, len(e.notifications)+len(entries))
	for _, n := range entries {
		if _, dup := existing[n.ID]; dup {
			continue
		}
		existing[n.ID] = struct{}{}
		merged = append(merged, n)
		added++
	}
	if added == 0 {
		return 0
	}
	merged = append(merged, e.notifications...)

	// Descending timestamp order is a presentation invariant,
	// re-established after every merge.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})

	e.notifications = merged
	return added
}

// Notifications returns a copy of the notification list, sorted by
// timestamp descending.
func (e *Engine) Notifications() []model.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]model.Notification, len(e.notifications))
	copy(out, e.notifications)
	return out
}

// UnreadCount returns the number of unread notifications. It is
// recomputed on every call rather than cached, so there is no second
// invariant to keep consistent.
func (e *Engine) UnreadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	count := 0
	for _, n := range e.notifications {
		if !n.Read {
			count++
		}
	}
	return count
}

// MarkNotificationRead marks the notification with the given id as
// read. Unknown ids are a no-op.
func (e *Engine) MarkNotificationRead(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	for i := range e.notifications {
		if e.notifications[i].ID == id {
			if !e.notifications[i].Read {
				e.notifications[i].Read = true
				e.persistLocked()
			}
			return
		}
	}
}

// MarkAllRead marks every notification as read.
func (e *Engine) MarkAllRead() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	changed := false
	for i := range e.notifications {
		if !e.notifications[i].Read {
			e.notifications[i].Read = true
			changed = true
		}
	}
	if changed {
		e.persistLocked()
	}
}

// MarkThreadRead records that the user opened a thread: its watermark
// advances to the last message timestamp even when no notification
// exists for it, and every stored notification for the thread is marked
// read. Threads with no messages are ignored.
func (e *Engine) MarkThreadRead(thread model.Thread) {
	last, ok := thread.LastMessage()
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	changed := false
	if prev, seen := e.lastSeenPerThread[thread.ID]; !seen || last.CreatedAt.After(prev) {
		e.lastSeenPerThread[thread.ID] = last.CreatedAt
		changed = true
	}

	for i := range e.notifications {
		if e.notifications[i].ThreadID == thread.ID && !e.notifications[i].Read {
			e.notifications[i].Read = true
			changed = true
		}
	}

	if changed {
		e.persistLocked()
	}
}
