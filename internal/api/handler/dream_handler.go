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

type createDreamRequest struct {
	Title     string `json:"title" validate:"required,max=200"`
	Content   string `json:"content" validate:"required"`
	DreamDate string `json:"dreamDate"`
}

type dreamResponse struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	Title     string    `json:"title"`
	DreamDate string    `json:"dreamDate"`
	CreatedAt time.Time `json:"createdAt"`
}

type dreamSummaryResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	DreamDate string    `json:"dreamDate"`
	CreatedAt time.Time `json:"createdAt"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// DreamHandler serves dream recording and browsing.
type DreamHandler struct {
	dreams ports.DreamService
	limits domain.Limits
}

func NewDreamHandler(dreams ports.DreamService, limits domain.Limits) *DreamHandler {
	return &DreamHandler{dreams: dreams, limits: limits}
}

// Create handles POST /v1/dreams.
func (h *DreamHandler) Create(c echo.Context) error {
	var req createDreamRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if n := len([]rune(req.Content)); n < h.limits.DreamContentMin || n > h.limits.DreamContentMax {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf(
			"content must be between %d and %d characters",
			h.limits.DreamContentMin, h.limits.DreamContentMax))
	}
	if req.DreamDate != "" {
		if _, err := time.Parse("2006-01-02", req.DreamDate); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "dreamDate must be YYYY-MM-DD")
		}
	}

	userID, _ := c.Get(middleware.CtxUserID).(string)

	result, err := h.dreams.CreateDream(c.Request().Context(), ports.CreateDreamInput{
		UserID:    userID,
		Title:     req.Title,
		Content:   req.Content,
		DreamDate: req.DreamDate,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, dreamResponse{
		ID:        result.ID,
		ThreadID:  result.ThreadID,
		Title:     result.Title,
		DreamDate: result.DreamDate,
		CreatedAt: result.CreatedAt,
	})
}

// List handles GET /v1/dreams.
func (h *DreamHandler) List(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserID).(string)
	tier, _ := c.Get(middleware.CtxTier).(string)

	summaries, err := h.dreams.ListDreams(c.Request().Context(), userID, tier)
	if err != nil {
		return err
	}

	out := make([]dreamSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, dreamSummaryResponse{
			ID:        s.ID,
			Title:     s.Title,
			Content:   s.Content,
			DreamDate: s.DreamDate,
			CreatedAt: s.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"dreams": out})
}

// Messages handles GET /v1/dreams/:dreamId/messages.
func (h *DreamHandler) Messages(c echo.Context) error {
	dreamID := c.Param("dreamId")
	if dreamID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "dreamId is required")
	}
	userID, _ := c.Get(middleware.CtxUserID).(string)

	views, err := h.dreams.ListMessages(c.Request().Context(), userID, dreamID)
	if err != nil {
		return err
	}

	out := make([]messageResponse, 0, len(views))
	for _, m := range views {
		out = append(out, messageResponse{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"messages": out})
}
