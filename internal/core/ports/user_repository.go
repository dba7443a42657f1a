package ports

import (
	"context"

	"github.com/somnialabs/dreamchat/internal/core/domain"
)

// UserRepository defines persistence operations for users. The tier field is
// read-only here: billing owns tier mutations.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// UserContextRepository stores the optional personal context paid users
// maintain for their interpretations.
type UserContextRepository interface {
	Get(ctx context.Context, userID string) (*domain.UserContext, error)
	Upsert(ctx context.Context, userID, contextData string) error
}
