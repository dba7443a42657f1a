package guard

import (
	"context"
	"net/http"

	"github.com/somnialabs/dreamchat/internal/core/domain"
	"github.com/somnialabs/dreamchat/internal/core/ports"
)

// RequirePrincipal fails the pipeline when no authenticated principal was
// resolved for the request.
func RequirePrincipal() Stage {
	return StageFunc(func(_ context.Context, gc *Context) *Failure {
		if gc.UserID == "" {
			return unauthenticated()
		}
		return nil
	})
}

// BindBody parses the request payload with the caller-supplied binder and
// resolves the dream reference via the extractor. Used only by guards that
// must inspect the resource reference before authorization.
func BindBody(bind func() (any, error), extract func(body any) string) Stage {
	return StageFunc(func(_ context.Context, gc *Context) *Failure {
		body, err := bind()
		if err != nil {
			return badRequest("invalid request payload")
		}
		gc.Body = body
		gc.DreamID = extract(body)
		if gc.DreamID == "" {
			return badRequest("dreamId is required")
		}
		return nil
	})
}

// RequireOwnership denies access to dreams the principal does not own. The
// validator collapses "missing" and "foreign" into the same opaque result, so
// no existence information leaks.
func RequireOwnership(owners ports.OwnershipValidator) Stage {
	return StageFunc(func(ctx context.Context, gc *Context) *Failure {
		if !owners.Check(ctx, gc.UserID, gc.DreamID) {
			return forbidden()
		}
		return nil
	})
}

// RequireQuota evaluates the admission decision and denies over-quota
// requests. An evaluation error fails closed.
func RequireQuota(ledger ports.QuotaLedger) Stage {
	return StageFunc(func(ctx context.Context, gc *Context) *Failure {
		decision, err := ledger.Evaluate(ctx, gc.UserID, gc.DreamID)
		if err != nil {
			return internal()
		}
		gc.Decision = &decision
		if !decision.CanSendMessage {
			return &Failure{
				Status:   http.StatusTooManyRequests,
				Message:  "you have reached the message limit for this dream",
				Decision: &decision,
			}
		}
		return nil
	})
}

// ResolveTier populates the principal's tier. It never fails: the resolver
// falls back to free on any lookup error.
func ResolveTier(tiers ports.TierResolver) Stage {
	return StageFunc(func(ctx context.Context, gc *Context) *Failure {
		gc.Tier = tiers.Resolve(ctx, gc.UserID)
		return nil
	})
}

// RequireTier enforces a static minimum tier. Used by the lighter pipeline
// variant for endpoints with no resource reference and no quota stage.
func RequireTier(min domain.Tier) Stage {
	return StageFunc(func(_ context.Context, gc *Context) *Failure {
		if !gc.Tier.AtLeast(min) {
			return &Failure{
				Status:       http.StatusForbidden,
				Message:      "this feature requires an upgraded plan",
				RequiredTier: min,
				CurrentTier:  gc.Tier,
			}
		}
		return nil
	})
}

// MessagePipeline is the full admission chain for sending a chat message:
// principal, body+reference, ownership, quota, tier.
func MessagePipeline(
	bind func() (any, error),
	extract func(body any) string,
	owners ports.OwnershipValidator,
	ledger ports.QuotaLedger,
	tiers ports.TierResolver,
) *Pipeline {
	return NewPipeline(
		RequirePrincipal(),
		BindBody(bind, extract),
		RequireOwnership(owners),
		RequireQuota(ledger),
		ResolveTier(tiers),
	)
}

// TierPipeline is the lighter variant: authentication plus an optional
// minimum-tier requirement, no resource reference, no quota stage.
func TierPipeline(min domain.Tier, tiers ports.TierResolver) *Pipeline {
	return NewPipeline(
		RequirePrincipal(),
		ResolveTier(tiers),
		RequireTier(min),
	)
}
