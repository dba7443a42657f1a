package service

import (
	"context"
	"fmt"

	"github.com/somnialabs/dreamchat/internal/core/domain"
	"github.com/somnialabs/dreamchat/internal/core/ports"
)

// QuotaLedger decides admission of a new user message under the static
// per-tier quota. Unlike tier resolution, quota fails closed: a broken count
// touches billing fairness, so a count error denies rather than admits.
type QuotaLedger struct {
	messages ports.MessageRepository
	tiers    ports.TierResolver
	limits   domain.Limits
}

func NewQuotaLedger(messages ports.MessageRepository, tiers ports.TierResolver, limits domain.Limits) *QuotaLedger {
	return &QuotaLedger{messages: messages, tiers: tiers, limits: limits}
}

// Evaluate computes a fresh AdmissionDecision for (userID, dreamID).
// Only role=user messages count toward the quota; a dream with no prior
// user messages always admits.
func (q *QuotaLedger) Evaluate(ctx context.Context, userID, dreamID string) (ports.AdmissionDecision, error) {
	tier := q.tiers.Resolve(ctx, userID)

	used, err := q.messages.CountUserMessages(ctx, dreamID, userID)
	if err != nil {
		return ports.AdmissionDecision{}, fmt.Errorf("count user messages: %w", err)
	}

	limit := q.limits.MessageLimit(string(tier))
	decision := ports.AdmissionDecision{
		Tier:          tier,
		MessagesUsed:  used,
		MessagesLimit: limit,
	}

	if limit == nil {
		decision.CanSendMessage = true
		return decision, nil
	}

	decision.CanSendMessage = used < *limit
	remaining := *limit - used
	if remaining < 0 {
		remaining = 0
	}
	decision.RemainingMessages = &remaining
	return decision, nil
}
