package engine

import (
	"fmt"
	"strings"

	"github.com/nhle/notify-engine/internal/model"
)

const (
	// bodyLimit is the display truncation length for notification bodies.
	bodyLimit = 160

	fallbackThreadTitle = "Conversation update"
	fallbackThreadBody  = "New voice note waiting for you."
	resourceTitle       = "New library item"
)

// IngestThreads reconciles a full thread feed snapshot against the
// per-thread watermarks and merges a notification for every thread
// whose last message is genuinely new. The first snapshot after a
// fresh state runs a silent baseline instead: existing conversations
// are recorded as already seen so a new login is not retroactively
// notified about its whole history.
//
// A thread whose last message was authored by the current user advances
// its watermark without notifying; threads with no messages are skipped
// entirely. Safe to call from any code path holding a fresh snapshot,
// not just the poller.
func (e *Engine) IngestThreads(threads []model.Thread, route model.Route) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	// The baseline check conflates "never initialized" with
	// "initialized but legitimately empty"; preserved as observed.
	if !e.threadsBaselined && len(e.lastSeenPerThread) == 0 {
		for _, t := range threads {
			if last, ok := t.LastMessage(); ok {
				e.lastSeenPerThread[t.ID] = last.CreatedAt
			}
		}
		e.threadsBaselined = true
		e.persistLocked()
		return
	}

	var fresh []model.Notification
	changed := false

	for _, t := range threads {
		last, ok := t.LastMessage()
		if !ok {
			continue
		}
		ts := last.CreatedAt
		lastSeen, seen := e.lastSeenPerThread[t.ID]
		isNew := !seen || ts.After(lastSeen)

		// Watermarks only advance, never regress.
		if isNew {
			e.lastSeenPerThread[t.ID] = ts
			changed = true
		}

		// Self-authored messages are never notified to their author.
		if last.AuthorID == e.userID {
			continue
		}

		if isNew {
			fresh = append(fresh, threadNotification(t, last, route))
		}
	}

	if len(fresh) > 0 {
		changed = e.addNotificationsLocked(fresh) > 0 || changed
	}
	if changed {
		e.persistLocked()
	}
}

// IngestResources reconciles a full resource feed snapshot against the
// seen-id set and merges one notification per unseen item. The first
// non-empty snapshot after a fresh state runs a silent baseline.
// Resources carry no timestamp signal, so membership in the seen set is
// the dedup criterion and new items are stamped with the ingestion
// time. Items without an id are malformed and skipped.
func (e *Engine) IngestResources(resources []model.Resource, route model.Route) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	if !e.resourcesBaselined && len(e.seenResourceIDs) == 0 && len(resources) > 0 {
		for _, r := range resources {
			if r.ID == 0 {
				continue
			}
			e.seenResourceIDs[r.ID] = struct{}{}
		}
		e.resourcesBaselined = true
		e.persistLocked()
		return
	}

	var fresh []model.Notification
	timestamp := e.now()

	for _, r := range resources {
		if r.ID == 0 {
			continue
		}
		if _, seen := e.seenResourceIDs[r.ID]; seen {
			continue
		}
		e.seenResourceIDs[r.ID] = struct{}{}
		fresh = append(fresh, model.Notification{
			ID:         fmt.Sprintf("resource-%d", r.ID),
			Title:      resourceTitle,
			Body:       fmt.Sprintf("%s (%s) is now available.", r.Title, r.Kind),
			Kind:       model.KindResource,
			Timestamp:  timestamp,
			Route:      route,
			ResourceID: r.ID,
		})
	}

	if len(fresh) == 0 {
		return
	}

	e.addNotificationsLocked(fresh)
	e.persistLocked()
}

// threadNotification builds the notification for a thread whose last
// message crossed the watermark.
func threadNotification(
	t model.Thread,
	last model.Message,
	route model.Route,
) model.Notification {
	title := t.Subject
	if title == "" {
		title = t.CounterpartyName
	}
	if title == "" {
		title = fallbackThreadTitle
	}

	body := strings.TrimSpace(last.Body)
	if body == "" {
		body = strings.TrimSpace(last.Transcript)
	}
	if body == "" {
		body = fallbackThreadBody
	}

	return model.Notification{
		ID:        fmt.Sprintf("thread-%d-%d", t.ID, last.ID),
		Title:     title,
		Body:      truncateBody(body),
		Kind:      model.KindThread,
		Timestamp: last.CreatedAt,
		Route:     route,
		ThreadID:  t.ID,
	}
}

// truncateBody caps the body at bodyLimit runes, replacing the tail
// with an ellipsis when longer.
func truncateBody(body string) string {
	runes := []rune(body)
	if len(runes) <= bodyLimit {
		return body
	}
	return string(runes[:bodyLimit-3]) + "..."
}
