package ports

import (
	"context"
	"time"
)

// CreateDreamInput carries all data needed to record a new dream.
type CreateDreamInput struct {
	UserID    string
	Title     string
	Content   string
	DreamDate string // ISO date; defaults to today when empty
}

// DreamResult is returned by the service after creating a dream.
type DreamResult struct {
	ID        string
	ThreadID  string
	Title     string
	DreamDate string
	CreatedAt time.Time
}

// DreamSummary is the lightweight view used in list responses.
type DreamSummary struct {
	ID        string
	Title     string
	Content   string
	DreamDate string
	CreatedAt time.Time
}

// MessageView is one dialogue turn as returned to the caller.
type MessageView struct {
	ID        string
	Role      string
	Content   string
	CreatedAt time.Time
}

// DreamService defines use-case operations for dreams.
type DreamService interface {
	CreateDream(ctx context.Context, input CreateDreamInput) (*DreamResult, error)
	// ListDreams returns the caller's dreams, newest first. Free-tier callers
	// see a capped window; paid callers get full history.
	ListDreams(ctx context.Context, userID string, tier string) ([]DreamSummary, error)
	// ListMessages returns all messages of a dream the caller owns.
	ListMessages(ctx context.Context, userID, dreamID string) ([]MessageView, error)
}

// ContextAssembler builds the optional natural-language context injected
// into engine runs for paid users. Assembly failures yield an empty string:
// context is an enhancement, never a gate.
type ContextAssembler interface {
	Assemble(ctx context.Context, userID, currentDreamID string) string
}
