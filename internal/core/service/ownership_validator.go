package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/somnialabs/dreamchat/internal/core/ports"
)

// OwnershipValidator confirms a user owns a referenced dream.
type OwnershipValidator struct {
	dreams ports.DreamRepository
	logger zerolog.Logger
}

func NewOwnershipValidator(dreams ports.DreamRepository, logger zerolog.Logger) *OwnershipValidator {
	return &OwnershipValidator{dreams: dreams, logger: logger}
}

// Check reports whether userID owns dreamID. A missing dream, a foreign
// dream, and a lookup failure all yield false: callers learn nothing about
// whether the dream exists.
func (v *OwnershipValidator) Check(ctx context.Context, userID, dreamID string) bool {
	dream, err := v.dreams.FindByID(ctx, dreamID)
	if err != nil {
		v.logger.Debug().Err(err).Str("dream_id", dreamID).Msg("ownership lookup failed")
		return false
	}
	if dream == nil {
		return false
	}
	return dream.UserID == userID
}
