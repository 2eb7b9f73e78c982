package models

import "time"

// Attachment describes a file attached to a message. Upload handling lives
// outside this core; messages only carry descriptors.
type Attachment struct {
	Name        string `json:"name,omitempty"`
	URL         string `json:"url"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// Message is a single chat message. Within a room the canonical ordering is
// CreatedAt ascending, ties broken by arrival order from the backend.
type Message struct {
	ID          string       `json:"id"`
	RoomID      string       `json:"roomId"`
	SenderID    string       `json:"senderId"`
	Content     string       `json:"content"`
	CreatedAt   time.Time    `json:"createdAt"`
	Attachments []Attachment `json:"attachments,omitempty"`

	// IsOptimistic marks a locally fabricated message that has not yet been
	// confirmed by the backend. Never serialized; an optimistic message must
	// be replaced by its canonical record or removed before it can be
	// treated as durable.
	IsOptimistic bool `json:"-"`
}
