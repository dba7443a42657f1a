package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/somnialabs/dreamchat/internal/core/domain"
	"github.com/somnialabs/dreamchat/internal/core/ports"
)

// ContextBuilder assembles the additional instructions injected into engine
// runs for paid users: the personal context plus a truncated window of recent
// dreams and their first interpretations.
//
// Assembly is pure enhancement. Every failure path degrades to "less
// context", never to a failed request.
type ContextBuilder struct {
	dreams      ports.DreamRepository
	messages    ports.MessageRepository
	userContext ports.UserContextRepository
	limits      domain.Limits
	logger      zerolog.Logger
}

func NewContextBuilder(
	dreams ports.DreamRepository,
	messages ports.MessageRepository,
	userContext ports.UserContextRepository,
	limits domain.Limits,
	logger zerolog.Logger,
) *ContextBuilder {
	return &ContextBuilder{
		dreams:      dreams,
		messages:    messages,
		userContext: userContext,
		limits:      limits,
		logger:      logger,
	}
}

// Assemble builds the context string for a run, excluding the current dream
// from the history window. Returns "" when there is nothing to contribute.
func (b *ContextBuilder) Assemble(ctx context.Context, userID, currentDreamID string) string {
	var sections []string

	if personal := b.personalContext(ctx, userID); personal != "" {
		sections = append(sections, fmt.Sprintf(
			"User context: %s\n\nUse this information to personalise the interpretation.", personal))
	}

	if history := b.dreamHistory(ctx, userID, currentDreamID); history != "" {
		sections = append(sections, history)
	}

	return strings.Join(sections, "\n\n")
}

func (b *ContextBuilder) personalContext(ctx context.Context, userID string) string {
	uc, err := b.userContext.Get(ctx, userID)
	if err != nil || uc == nil {
		return ""
	}
	return strings.TrimSpace(uc.ContextData)
}

func (b *ContextBuilder) dreamHistory(ctx context.Context, userID, currentDreamID string) string {
	dreams, err := b.dreams.ListRecentExcluding(ctx, userID, currentDreamID, b.limits.DreamHistoryCount)
	if err != nil {
		b.logger.Warn().Err(err).Str("user_id", userID).Msg("dream history lookup failed, skipping context")
		return ""
	}
	if len(dreams) == 0 {
		return ""
	}

	entries := make([]string, 0, len(dreams))
	for _, d := range dreams {
		title := d.Title
		if title == "" {
			title = "Untitled"
		}
		entry := fmt.Sprintf("[%s] %s\nDream: %s",
			d.DreamDate, title, truncate(d.Content, b.limits.HistoryContentMax))

		if first, err := b.messages.FirstAssistantMessage(ctx, d.ID); err == nil && first != nil {
			entry += fmt.Sprintf("\nPrevious interpretation: %s",
				truncate(first.Content, b.limits.HistoryInterpretationMax))
		}
		entries = append(entries, entry)
	}

	return fmt.Sprintf(
		"Recent dream history (last %d):\n\n%s\n\nUse this to spot patterns, recurring symbols, and personal evolution in the current interpretation.",
		len(entries), strings.Join(entries, "\n\n"))
}

// truncate cuts s to max runes, appending an ellipsis when something was cut.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
