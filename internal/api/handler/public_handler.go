package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/somnialabs/dreamchat/internal/core/domain"
)

type publicInterpretRequest struct {
	Dream string `json:"dream"`
}

// PublicHandler serves the unauthenticated one-shot interpretation demo.
// Nothing it produces is persisted.
type PublicHandler struct {
	chat   ChatStreamer
	limits domain.Limits
}

func NewPublicHandler(chat ChatStreamer, limits domain.Limits) *PublicHandler {
	return &PublicHandler{chat: chat, limits: limits}
}

// Interpret handles POST /public/interpret.
func (h *PublicHandler) Interpret(c echo.Context) error {
	var req publicInterpretRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	dream := strings.TrimSpace(req.Dream)
	if n := len([]rune(dream)); n < h.limits.PublicDreamMin || n > h.limits.PublicDreamMax {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf(
			"dream must be between %d and %d characters",
			h.limits.PublicDreamMin, h.limits.PublicDreamMax))
	}

	sink := newSSESink(c)
	started := time.Now()

	result, err := h.chat.StreamOneShot(c.Request().Context(), dream, sink)
	if err != nil {
		return err
	}

	observeStream(c.Request().Context(), result, started)
	return nil
}
