package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/somnialabs/dreamchat/internal/api/middleware"
	"github.com/somnialabs/dreamchat/internal/core/domain"
	"github.com/somnialabs/dreamchat/internal/core/ports"
)

type updateContextRequest struct {
	Context string `json:"context"`
}

type contextResponse struct {
	Context   string     `json:"context"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// ContextHandler serves the personal context paid users attach to their
// engine runs.
type ContextHandler struct {
	contexts ports.UserContextRepository
	limits   domain.Limits
}

func NewContextHandler(contexts ports.UserContextRepository, limits domain.Limits) *ContextHandler {
	return &ContextHandler{contexts: contexts, limits: limits}
}

// Get handles GET /v1/profile/context. A user who never saved anything gets
// an empty context, not a 404.
func (h *ContextHandler) Get(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserID).(string)

	uc, err := h.contexts.Get(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	if uc == nil {
		return c.JSON(http.StatusOK, contextResponse{Context: ""})
	}
	return c.JSON(http.StatusOK, contextResponse{Context: uc.ContextData, UpdatedAt: &uc.UpdatedAt})
}

// Update handles PUT /v1/profile/context.
func (h *ContextHandler) Update(c echo.Context) error {
	var req updateContextRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len([]rune(req.Context)) > h.limits.UserContextMax {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf(
			"context must not exceed %d characters", h.limits.UserContextMax))
	}

	userID, _ := c.Get(middleware.CtxUserID).(string)
	if err := h.contexts.Upsert(c.Request().Context(), userID, req.Context); err != nil {
		return err
	}
	now := time.Now().UTC()
	return c.JSON(http.StatusOK, contextResponse{Context: req.Context, UpdatedAt: &now})
}
