package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/somnialabs/dreamchat/internal/core/domain"
	"github.com/somnialabs/dreamchat/internal/core/ports"
)

// TierResolver resolves a user's subscription tier from the user store.
//
// This is the one deliberate fail-open lookup in the system: a degraded user
// store must not take chat down, so any failure resolves to the most
// restrictive tier instead of aborting the request.
type TierResolver struct {
	users  ports.UserRepository
	logger zerolog.Logger
}

func NewTierResolver(users ports.UserRepository, logger zerolog.Logger) *TierResolver {
	return &TierResolver{users: users, logger: logger}
}

// Resolve returns the user's tier, defaulting to free on any lookup failure.
func (r *TierResolver) Resolve(ctx context.Context, userID string) domain.Tier {
	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		r.logger.Warn().Err(err).Str("user_id", userID).Msg("tier lookup failed, defaulting to free")
		return domain.TierFree
	}
	if user == nil {
		r.logger.Warn().Str("user_id", userID).Msg("user profile missing, defaulting to free")
		return domain.TierFree
	}
	return domain.TierFromString(string(user.Tier))
}
