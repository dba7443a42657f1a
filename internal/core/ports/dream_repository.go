package ports

import (
	"context"

	"github.com/somnialabs/dreamchat/internal/core/domain"
)

// DreamRepository defines persistence operations for dreams.
type DreamRepository interface {
	Insert(ctx context.Context, dream *domain.Dream) error
	// FindByID retrieves a dream regardless of owner. Callers that enforce
	// ownership must compare UserID themselves and collapse both "missing"
	// and "foreign" into the same forbidden result.
	FindByID(ctx context.Context, id string) (*domain.Dream, error)
	// ListByUser returns the caller's dreams, newest first. limit <= 0 means
	// no cap.
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Dream, error)
	// ListRecentExcluding returns up to limit of the user's dreams, newest
	// first, skipping excludeID. Used by the history context builder.
	ListRecentExcluding(ctx context.Context, userID, excludeID string, limit int) ([]*domain.Dream, error)
	// SetThreadID backfills the engine thread reference on a dream that
	// predates thread creation. The only mutation dreams ever receive.
	SetThreadID(ctx context.Context, dreamID, threadID string) error
}

// MessageRepository defines persistence operations for dream messages.
// Messages are insert-only.
type MessageRepository interface {
	Insert(ctx context.Context, msg *domain.DreamMessage) error
	// CountUserMessages counts role=user messages for a dream attributed to
	// a principal. Assistant messages never affect the count.
	CountUserMessages(ctx context.Context, dreamID, userID string) (int, error)
	// ListByDream returns all messages of a dream in creation order.
	ListByDream(ctx context.Context, dreamID string) ([]*domain.DreamMessage, error)
	// FirstAssistantMessage returns the first role=assistant message of a
	// dream (its interpretation), or nil when none exists yet.
	FirstAssistantMessage(ctx context.Context, dreamID string) (*domain.DreamMessage, error)
}
