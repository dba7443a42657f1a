package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/somnialabs/dreamchat/internal/core/domain"
	"github.com/somnialabs/dreamchat/internal/core/ports"
	"github.com/somnialabs/dreamchat/internal/core/relay"
)

// StreamChatInput carries an admitted chat request into the service. The
// guard has already verified ownership and quota; Decision is its admission
// decision, reused to seed the atomic reservation.
type StreamChatInput struct {
	UserID   string
	DreamID  string
	Message  string
	Tier     domain.Tier
	Decision ports.AdmissionDecision
}

// ChatService runs one admitted chat turn end to end: reserve the quota
// slot, persist the user message, extend the engine thread, start the run,
// and hand the event stream to the relay.
type ChatService struct {
	dreams    ports.DreamRepository
	messages  ports.MessageRepository
	engine    ports.ConversationEngine
	reserver  ports.QuotaReserver
	assembler ports.ContextAssembler
	relay     *relay.Relay
	logger    zerolog.Logger
}

func NewChatService(
	dreams ports.DreamRepository,
	messages ports.MessageRepository,
	engine ports.ConversationEngine,
	reserver ports.QuotaReserver,
	assembler ports.ContextAssembler,
	rel *relay.Relay,
	logger zerolog.Logger,
) *ChatService {
	return &ChatService{
		dreams:    dreams,
		messages:  messages,
		engine:    engine,
		reserver:  reserver,
		assembler: assembler,
		relay:     rel,
		logger:    logger,
	}
}

// StreamChat drives one chat turn. Errors returned here occur before any
// frame is written, so the transport can still answer with a structured
// error body; once the relay takes over, all failures travel as error
// frames on the sink.
func (s *ChatService) StreamChat(ctx context.Context, in StreamChatInput, sink relay.Sink) (relay.Result, error) {
	dream, err := s.dreams.FindByID(ctx, in.DreamID)
	if err != nil || dream == nil || dream.UserID != in.UserID {
		return relay.Result{}, domain.ErrForbidden
	}

	threadID := dream.ThreadID
	if threadID == "" {
		// Dreams recorded before thread support get one retroactively.
		threadID, err = s.engine.CreateThread(ctx)
		if err != nil {
			return relay.Result{}, fmt.Errorf("create engine thread: %w", err)
		}
		if err := s.dreams.SetThreadID(ctx, in.DreamID, threadID); err != nil {
			return relay.Result{}, fmt.Errorf("backfill thread id: %w", err)
		}
	}

	// The ledger's count-then-decide and our insert are separate store
	// operations; the reservation is the atomic slot between them.
	granted, err := s.reserver.Reserve(ctx, in.UserID, in.DreamID, in.Decision.MessagesUsed, in.Decision.MessagesLimit)
	if err != nil {
		return relay.Result{}, fmt.Errorf("reserve quota slot: %w", err)
	}
	if !granted {
		return relay.Result{}, domain.ErrQuotaExceeded
	}

	userMsg := &domain.DreamMessage{
		ID:        uuid.NewString(),
		DreamID:   in.DreamID,
		UserID:    in.UserID,
		Role:      domain.RoleUser,
		Content:   in.Message,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.messages.Insert(ctx, userMsg); err != nil {
		if relErr := s.reserver.Release(ctx, in.UserID, in.DreamID); relErr != nil {
			s.logger.Warn().Err(relErr).Str("dream_id", in.DreamID).Msg("failed to release quota slot")
		}
		return relay.Result{}, fmt.Errorf("persist user message: %w", err)
	}

	if err := s.engine.AppendMessage(ctx, threadID, string(domain.RoleUser), in.Message); err != nil {
		return relay.Result{}, fmt.Errorf("%w: append message", domain.ErrEngineFailure)
	}

	var instructions string
	if in.Tier == domain.TierPaid {
		instructions = s.assembler.Assemble(ctx, in.UserID, in.DreamID)
	}

	events, err := s.engine.Run(ctx, threadID, ports.RunOptions{
		Tier:                   string(in.Tier),
		AdditionalInstructions: instructions,
	})
	if err != nil {
		return relay.Result{}, fmt.Errorf("%w: start run", domain.ErrEngineFailure)
	}

	result := s.relay.Run(ctx, events, sink, &relay.PersistTarget{DreamID: in.DreamID, UserID: in.UserID})

	s.logger.Info().
		Str("dream_id", in.DreamID).
		Int("chunks", result.Chunks).
		Bool("persisted", result.Persisted).
		Msg("chat turn finished")
	return result, nil
}

// StreamOneShot runs a single prompt with no thread history and no
// persistence. Backs the public demo endpoint.
func (s *ChatService) StreamOneShot(ctx context.Context, prompt string, sink relay.Sink) (relay.Result, error) {
	threadID, err := s.engine.CreateThread(ctx)
	if err != nil {
		return relay.Result{}, fmt.Errorf("%w: create thread", domain.ErrEngineFailure)
	}
	if err := s.engine.AppendMessage(ctx, threadID, string(domain.RoleUser), prompt); err != nil {
		return relay.Result{}, fmt.Errorf("%w: append message", domain.ErrEngineFailure)
	}

	events, err := s.engine.Run(ctx, threadID, ports.RunOptions{Tier: string(domain.TierFree)})
	if err != nil {
		return relay.Result{}, fmt.Errorf("%w: start run", domain.ErrEngineFailure)
	}

	return s.relay.Run(ctx, events, sink, nil), nil
}
