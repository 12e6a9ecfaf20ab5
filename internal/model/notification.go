package model

import "time"

// Kind identifies which feed produced a notification.
type Kind string

const (
	KindThread   Kind = "thread"
	KindResource Kind = "resource"
)

// Route is an opaque navigation target attached to a notification.
// The engine never interprets it; the consumer resolves it when the
// user opens the notification.
type Route struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params,omitempty"`
}

// Notification represents a single user-facing event surfaced from one
// of the upstream feeds.
type Notification struct {
	// ID is derived deterministically from the source event
	// ("thread-{threadID}-{messageID}" or "resource-{resourceID}")
	// and is the dedup key: the store never holds two entries with
	// the same ID.
	ID string `json:"id"`

	// Title is the headline shown to the user.
	Title string `json:"title"`

	// Body is the preview text, truncated for display.
	Body string `json:"body"`

	// Kind identifies the originating feed.
	Kind Kind `json:"kind"`

	// Timestamp orders the notification list (descending). Thread
	// notifications carry the message timestamp; resource
	// notifications carry their ingestion time.
	Timestamp time.Time `json:"timestamp"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read"`

	// Route is where the consumer navigates when the notification
	// is opened.
	Route Route `json:"route"`

	// ThreadID correlates a thread notification back to its
	// conversation. Zero for resource notifications.
	ThreadID int64 `json:"thread_id,omitempty"`

	// ResourceID correlates a resource notification back to its
	// library item. Zero for thread notifications.
	ResourceID int64 `json:"resource_id,omitempty"`
}
