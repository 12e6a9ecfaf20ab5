package model

import "time"

// Message is a single entry in a conversation thread.
type Message struct {
	ID         int64     `json:"id"`
	ThreadID   int64     `json:"thread"`
	AuthorID   int64     `json:"author_id"`
	SenderRole string    `json:"sender_role"`
	Body       string    `json:"body"`
	Transcript string    `json:"transcript,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Thread is a conversation between the current user and a counterparty,
// with its messages ordered oldest first.
type Thread struct {
	ID               int64     `json:"id"`
	Subject          string    `json:"subject"`
	CounterpartyName string    `json:"counterparty_name"`
	Messages         []Message `json:"messages"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// LastMessage returns the newest message in the thread, or false when
// the thread is empty.
func (t Thread) LastMessage() (Message, bool) {
	if len(t.Messages) == 0 {
		return Message{}, false
	}
	return t.Messages[len(t.Messages)-1], true
}
