package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/somnialabs/dreamchat/internal/core/domain"
	"github.com/somnialabs/dreamchat/internal/core/ports"
)

// DreamService records new dreams and serves the caller's history. Each new
// dream gets its own engine thread so the conversation keeps its context.
type DreamService struct {
	dreams   ports.DreamRepository
	messages ports.MessageRepository
	engine   ports.ConversationEngine
	limits   domain.Limits
	logger   zerolog.Logger
}

func NewDreamService(
	dreams ports.DreamRepository,
	messages ports.MessageRepository,
	engine ports.ConversationEngine,
	limits domain.Limits,
	logger zerolog.Logger,
) *DreamService {
	return &DreamService{dreams: dreams, messages: messages, engine: engine, limits: limits, logger: logger}
}

// CreateDream creates an engine thread, seeds it with the dream content, and
// persists the dream record pointing at the thread.
func (s *DreamService) CreateDream(ctx context.Context, input ports.CreateDreamInput) (*ports.DreamResult, error) {
	threadID, err := s.engine.CreateThread(ctx)
	if err != nil {
		return nil, fmt.Errorf("create engine thread: %w", err)
	}

	title := input.Title
	if title == "" {
		title = "Untitled dream"
	}
	seed := fmt.Sprintf("Title: %s\n\nDream:\n%s", title, input.Content)
	if err := s.engine.AppendMessage(ctx, threadID, string(domain.RoleUser), seed); err != nil {
		return nil, fmt.Errorf("seed engine thread: %w", err)
	}

	now := time.Now().UTC()
	dreamDate := input.DreamDate
	if dreamDate == "" {
		dreamDate = now.Format("2006-01-02")
	}

	dream := &domain.Dream{
		ID:        uuid.NewString(),
		UserID:    input.UserID,
		Title:     input.Title,
		Content:   input.Content,
		DreamDate: dreamDate,
		ThreadID:  threadID,
		CreatedAt: now,
	}
	if err := s.dreams.Insert(ctx, dream); err != nil {
		s.logger.Error().Err(err).Str("thread_id", threadID).Msg("failed to persist dream")
		return nil, err
	}

	s.logger.Info().Str("dream_id", dream.ID).Str("thread_id", threadID).Msg("dream created")

	return &ports.DreamResult{
		ID:        dream.ID,
		ThreadID:  threadID,
		Title:     dream.Title,
		DreamDate: dream.DreamDate,
		CreatedAt: dream.CreatedAt,
	}, nil
}

// ListDreams returns the caller's dreams, newest first. Free users see a
// capped window; full journal history is a paid feature.
func (s *DreamService) ListDreams(ctx context.Context, userID string, tier string) ([]ports.DreamSummary, error) {
	limit := 0
	if domain.TierFromString(tier) != domain.TierPaid {
		limit = s.limits.FreeDreamListCap
	}

	dreams, err := s.dreams.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list dreams: %w", err)
	}

	out := make([]ports.DreamSummary, 0, len(dreams))
	for _, d := range dreams {
		out = append(out, ports.DreamSummary{
			ID:        d.ID,
			Title:     d.Title,
			Content:   d.Content,
			DreamDate: d.DreamDate,
			CreatedAt: d.CreatedAt,
		})
	}
	return out, nil
}

// ListMessages returns all messages of a dream the caller owns. Missing and
// foreign dreams are both forbidden, in that order of checks.
func (s *DreamService) ListMessages(ctx context.Context, userID, dreamID string) ([]ports.MessageView, error) {
	dream, err := s.dreams.FindByID(ctx, dreamID)
	if err != nil || dream == nil || dream.UserID != userID {
		return nil, domain.ErrForbidden
	}

	msgs, err := s.messages.ListByDream(ctx, dreamID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := make([]ports.MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ports.MessageView{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}
