package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Limiter abstracts the fixed-window rate limiter (Redis).
type Limiter interface {
	Allow(ctx context.Context, clientKey string) (bool, error)
}

// RateLimit throttles unauthenticated callers by client IP. A limiter
// failure denies: the demo endpoint spends engine tokens, so ambiguity is
// not admission.
func RateLimit(limiter Limiter, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, err := limiter.Allow(c.Request().Context(), c.RealIP())
			if err != nil {
				log.Error().Err(err).Msg("rate limit check failed")
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "service temporarily unavailable"})
			}
			if !ok {
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "too many requests, try again later"})
			}
			return next(c)
		}
	}
}
