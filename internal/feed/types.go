package feed

import (
	"time"

	"github.com/nhle/notify-engine/internal/model"
)

// apiUser is the backend's embedded user representation. Only the
// fields the engine needs are decoded.
type apiUser struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// apiMessage is a single message in a thread payload.
type apiMessage struct {
	ID           int64     `json:"id"`
	Thread       int64     `json:"thread"`
	Body         string    `json:"body"`
	Transcript   string    `json:"transcript"`
	SenderRole   string    `json:"sender_role"`
	CreatedAt    time.Time `json:"created_at"`
	AuthorDetail *apiUser  `json:"author_detail"`
}

// apiThread is the wire representation of a conversation thread.
// Messages arrive ordered oldest first.
type apiThread struct {
	ID            int64        `json:"id"`
	Subject       string       `json:"subject"`
	TeacherDetail *apiUser     `json:"teacher_detail"`
	Messages      []apiMessage `json:"messages"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// apiResource is the wire representation of a library item.
type apiResource struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Kind         string `json:"kind"`
	Description  string `json:"description"`
	CategoryName string `json:"category_name"`
	CourseName   string `json:"course_name"`
	URL          string `json:"url"`
}

func (t apiThread) toModel() model.Thread {
	messages := make([]model.Message, 0, len(t.Messages))
	for _, m := range t.Messages {
		msg := model.Message{
			ID:         m.ID,
			ThreadID:   m.Thread,
			Body:       m.Body,
			Transcript: m.Transcript,
			SenderRole: m.SenderRole,
			CreatedAt:  m.CreatedAt,
		}
		if m.AuthorDetail != nil {
			msg.AuthorID = m.AuthorDetail.ID
		}
		messages = append(messages, msg)
	}

	thread := model.Thread{
		ID:        t.ID,
		Subject:   t.Subject,
		Messages:  messages,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if t.TeacherDetail != nil {
		thread.CounterpartyName = t.TeacherDetail.DisplayName
	}
	return thread
}

func (r apiResource) toModel() model.Resource {
	return model.Resource{
		ID:           r.ID,
		Title:        r.Title,
		Kind:         r.Kind,
		Description:  r.Description,
		CategoryName: r.CategoryName,
		CourseName:   r.CourseName,
		URL:          r.URL,
	}
}
