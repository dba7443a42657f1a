package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/somnialabs/dreamchat/internal/api/metrics"
	"github.com/somnialabs/dreamchat/internal/api/middleware"
	"github.com/somnialabs/dreamchat/internal/core/domain"
	"github.com/somnialabs/dreamchat/internal/core/ports"
	"github.com/somnialabs/dreamchat/internal/core/relay"
	"github.com/somnialabs/dreamchat/internal/core/service"
)

// ChatStreamer is the slice of the chat service this handler needs.
type ChatStreamer interface {
	StreamChat(ctx context.Context, in service.StreamChatInput, sink relay.Sink) (relay.Result, error)
	StreamOneShot(ctx context.Context, prompt string, sink relay.Sink) (relay.Result, error)
}

// ChatRequest is the payload for POST /v1/chat. Exported so the guard can
// extract the dream reference before authorization.
type ChatRequest struct {
	DreamID string `json:"dreamId"`
	Message string `json:"message"`
}

// ChatHandler streams assistant replies over SSE.
type ChatHandler struct {
	chat   ChatStreamer
	limits domain.Limits
}

func NewChatHandler(chat ChatStreamer, limits domain.Limits) *ChatHandler {
	return &ChatHandler{chat: chat, limits: limits}
}

// Send handles POST /v1/chat. The message-limit guard has already admitted
// the request: the parsed body, tier, and admission decision ride in
// context.
func (h *ChatHandler) Send(c echo.Context) error {
	body, _ := c.Get(middleware.CtxGuardBody).(*ChatRequest)
	if body == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing request body")
	}

	tierStr, _ := c.Get(middleware.CtxTier).(string)
	tier := domain.TierFromString(tierStr)

	message := strings.TrimSpace(body.Message)
	if message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message must not be empty")
	}
	if max := h.limits.MessageMax(string(tier)); len([]rune(message)) > max {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("message too long (max %d characters)", max))
	}

	userID, _ := c.Get(middleware.CtxUserID).(string)
	decision, _ := c.Get(middleware.CtxDecision).(*ports.AdmissionDecision)
	if decision == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "missing admission decision")
	}

	sink := newSSESink(c)
	started := time.Now()

	result, err := h.chat.StreamChat(c.Request().Context(), service.StreamChatInput{
		UserID:   userID,
		DreamID:  body.DreamID,
		Message:  message,
		Tier:     tier,
		Decision: *decision,
	}, sink)
	if err != nil {
		// Nothing was streamed yet; the central error handler can still
		// answer with a JSON body.
		return err
	}

	observeStream(c.Request().Context(), result, started)
	return nil
}

func observeStream(ctx context.Context, result relay.Result, started time.Time) {
	state := "failed"
	if result.State == relay.Completed {
		state = "completed"
	} else if ctx.Err() == nil {
		// A failure with a live caller means the engine gave up, not us.
		metrics.EngineFailuresTotal.Inc()
	}
	metrics.StreamsTotal.WithLabelValues(state).Inc()
	metrics.StreamChunksTotal.Add(float64(result.Chunks))
	metrics.StreamDuration.WithLabelValues(state).Observe(time.Since(started).Seconds())
	if result.PersistErr != nil {
		metrics.PersistenceFailuresTotal.Inc()
	}
}
