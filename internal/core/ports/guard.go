package ports

import (
	"context"

	"github.com/somnialabs/dreamchat/internal/core/domain"
)

// AdmissionDecision is the computed outcome of a quota check. It is derived
// fresh on every evaluation and never persisted or cached across requests.
type AdmissionDecision struct {
	Tier              domain.Tier `json:"tier"`
	MessagesUsed      int         `json:"messagesUsed"`
	MessagesLimit     *int        `json:"messagesLimit"`     // nil = unlimited
	CanSendMessage    bool        `json:"canSendMessage"`
	RemainingMessages *int        `json:"remainingMessages"` // nil = unlimited
}

// TierResolver resolves a principal's subscription tier. Resolution never
// fails: any lookup error yields the most restrictive tier.
type TierResolver interface {
	Resolve(ctx context.Context, userID string) domain.Tier
}

// OwnershipValidator reports whether a principal owns a dream. A missing
// dream and a dream owned by someone else are indistinguishable to callers.
type OwnershipValidator interface {
	Check(ctx context.Context, userID, dreamID string) bool
}

// QuotaLedger decides admission of a new user message under tier limits.
// A count-retrieval failure is a system error: quota fails closed.
type QuotaLedger interface {
	Evaluate(ctx context.Context, userID, dreamID string) (AdmissionDecision, error)
}

// QuotaReserver is the atomic admission slot the durable store cannot give
// us: count-then-insert is two operations with no enclosing transaction, so
// concurrent requests for the same dream could both pass the ledger check.
// Reserve claims one slot atomically; Release returns it when the subsequent
// insert fails.
type QuotaReserver interface {
	// Reserve claims a message slot for (userID, dreamID), seeding the
	// counter with used when no counter exists yet. limit nil = unlimited,
	// always granted.
	Reserve(ctx context.Context, userID, dreamID string, used int, limit *int) (bool, error)
	Release(ctx context.Context, userID, dreamID string) error
}
