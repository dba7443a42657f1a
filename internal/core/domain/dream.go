package domain

import (
	"errors"
	"time"
)

// MessageRole tags a dream message as authored by the user or the assistant.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

var ErrDreamNotFound = errors.New("dream not found")
var ErrForbidden = errors.New("access forbidden")
var ErrQuotaExceeded = errors.New("message quota exceeded")
var ErrEngineFailure = errors.New("conversation engine failure")

// Dream is the core resource: a recorded dream owned by exactly one user,
// linked to an upstream engine thread that carries its conversation.
type Dream struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Title     string    `json:"title,omitempty" bson:"title,omitempty"`
	Content   string    `json:"content" bson:"content"`
	DreamDate string    `json:"dream_date" bson:"dream_date"`
	ThreadID  string    `json:"thread_id" bson:"thread_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// DreamMessage is one turn of dialogue persisted against a dream.
// Messages are insert-only: never mutated, never deleted.
type DreamMessage struct {
	ID        string      `json:"id" bson:"_id"`
	DreamID   string      `json:"dream_id" bson:"dream_id"`
	UserID    string      `json:"user_id" bson:"user_id"`
	Role      MessageRole `json:"role" bson:"role"`
	Content   string      `json:"content" bson:"content"`
	CreatedAt time.Time   `json:"created_at" bson:"created_at"`
}
