package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/somnialabs/dreamchat/internal/api/metrics"
	"github.com/somnialabs/dreamchat/internal/core/domain"
	"github.com/somnialabs/dreamchat/internal/core/guard"
	"github.com/somnialabs/dreamchat/internal/core/ports"
)

// Context keys the guard middleware populates on admission.
const (
	CtxGuardBody = "guard_body"
	CtxDreamID   = "dream_id"
	CtxDecision  = "admission_decision"
)

// quotaErrorResponse matches the wire contract for quota denials: the full
// admission decision rides along so the caller can render remaining
// allowance.
type quotaErrorResponse struct {
	Error           string                  `json:"error"`
	Limits          ports.AdmissionDecision `json:"limits"`
	UpgradeRequired bool                    `json:"upgradeRequired"`
}

type tierErrorResponse struct {
	Error        string `json:"error"`
	RequiredTier string `json:"requiredTier"`
	CurrentTier  string `json:"currentTier"`
}

// MessageGuard wraps a handler with the full admission chain for sending a
// chat message. newBody allocates the request payload; extract pulls the
// dream reference out of it. On admission the parsed body, dream id, tier,
// and decision are stored in context for the handler.
func MessageGuard(
	newBody func() any,
	extract func(body any) string,
	owners ports.OwnershipValidator,
	ledger ports.QuotaLedger,
	tiers ports.TierResolver,
) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			bind := func() (any, error) {
				body := newBody()
				if err := c.Bind(body); err != nil {
					return nil, err
				}
				return body, nil
			}

			pipeline := guard.MessagePipeline(bind, extract, owners, ledger, tiers)
			gc := &guard.Context{UserID: userID(c)}

			if fail := pipeline.Run(c.Request().Context(), gc); fail != nil {
				return renderFailure(c, fail)
			}

			if gc.Decision != nil {
				metrics.AdmissionDecisionsTotal.WithLabelValues(string(gc.Decision.Tier), "admit").Inc()
			}

			c.Set(CtxUserID, gc.UserID)
			c.Set(CtxTier, string(gc.Tier))
			c.Set(CtxGuardBody, gc.Body)
			c.Set(CtxDreamID, gc.DreamID)
			c.Set(CtxDecision, gc.Decision)
			return next(c)
		}
	}
}

// TierGuard wraps a handler with the lighter chain: authentication plus an
// optional minimum tier. Pass domain.TierFree for plain authenticated
// endpoints.
func TierGuard(min domain.Tier, tiers ports.TierResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			pipeline := guard.TierPipeline(min, tiers)
			gc := &guard.Context{UserID: userID(c)}

			if fail := pipeline.Run(c.Request().Context(), gc); fail != nil {
				return renderFailure(c, fail)
			}

			c.Set(CtxUserID, gc.UserID)
			c.Set(CtxTier, string(gc.Tier))
			return next(c)
		}
	}
}

func userID(c echo.Context) string {
	id, _ := c.Get(CtxUserID).(string)
	return id
}

func renderFailure(c echo.Context, fail *guard.Failure) error {
	metrics.GuardDenialsTotal.WithLabelValues(denialReason(fail)).Inc()

	switch {
	case fail.Decision != nil && fail.Status == http.StatusTooManyRequests:
		metrics.AdmissionDecisionsTotal.WithLabelValues(string(fail.Decision.Tier), "deny").Inc()
		return c.JSON(fail.Status, quotaErrorResponse{
			Error:           fail.Message,
			Limits:          *fail.Decision,
			UpgradeRequired: true,
		})
	case fail.RequiredTier != "":
		return c.JSON(fail.Status, tierErrorResponse{
			Error:        fail.Message,
			RequiredTier: string(fail.RequiredTier),
			CurrentTier:  string(fail.CurrentTier),
		})
	default:
		return c.JSON(fail.Status, map[string]string{"error": fail.Message})
	}
}

func denialReason(fail *guard.Failure) string {
	switch fail.Status {
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusForbidden:
		if fail.RequiredTier != "" {
			return "tier_required"
		}
		return "forbidden"
	case http.StatusTooManyRequests:
		return "quota_exceeded"
	case http.StatusBadRequest:
		return "bad_request"
	default:
		return "internal"
	}
}
