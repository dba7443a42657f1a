// Package engine adapts an OpenAI-compatible LLM (via langchaingo) to the
// ConversationEngine port. Threads are transcripts kept in the durable
// store; a run replays the transcript and streams the reply as an ordered
// event sequence.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/somnialabs/dreamchat/internal/core/domain"
	"github.com/somnialabs/dreamchat/internal/core/ports"
	"github.com/somnialabs/dreamchat/internal/infrastructure/config"
)

var ErrThreadNotFound = errors.New("engine thread not found")

// ThreadMessage is one turn of a thread transcript.
type ThreadMessage struct {
	Role    string
	Content string
}

// ThreadStore persists thread transcripts.
type ThreadStore interface {
	Create(ctx context.Context, threadID string) error
	Append(ctx context.Context, threadID, role, content string) error
	Transcript(ctx context.Context, threadID string) ([]ThreadMessage, error)
}

// eventBuffer keeps the producer ahead of slow consumers without unbounded
// growth; deltas block once it fills.
const eventBuffer = 16

// LangChain implements ports.ConversationEngine on top of langchaingo.
type LangChain struct {
	llm       llms.Model
	threads   ThreadStore
	maxTokens int
	logger    zerolog.Logger
}

func NewLangChain(cfg config.EngineConfig, maxTokens int, threads ThreadStore, logger zerolog.Logger) (*LangChain, error) {
	llm, err := openai.New(
		openai.WithToken(cfg.Token),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("init engine client: %w", err)
	}
	return &LangChain{llm: llm, threads: threads, maxTokens: maxTokens, logger: logger}, nil
}

func (e *LangChain) CreateThread(ctx context.Context) (string, error) {
	threadID := uuid.NewString()
	if err := e.threads.Create(ctx, threadID); err != nil {
		return "", err
	}
	return threadID, nil
}

func (e *LangChain) AppendMessage(ctx context.Context, threadID, role, content string) error {
	return e.threads.Append(ctx, threadID, role, content)
}

// Run streams the assistant's reply for the thread's current transcript.
// The returned channel carries text deltas in emission order and is closed
// after the terminal event.
func (e *LangChain) Run(ctx context.Context, threadID string, opts ports.RunOptions) (<-chan ports.EngineEvent, error) {
	transcript, err := e.threads.Transcript(ctx, threadID)
	if err != nil {
		return nil, err
	}

	messages := e.buildMessages(transcript, opts)
	events := make(chan ports.EngineEvent, eventBuffer)

	go func() {
		defer close(events)

		resp, err := e.llm.GenerateContent(ctx, messages,
			llms.WithMaxTokens(e.maxTokens),
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				select {
				case events <- ports.EngineEvent{Kind: ports.EngineTextDelta, Text: string(chunk)}:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}),
		)
		if err != nil {
			emit(ctx, events, ports.EngineEvent{Kind: ports.EngineFailed, Err: err})
			return
		}
		if len(resp.Choices) == 0 {
			emit(ctx, events, ports.EngineEvent{Kind: ports.EngineFailed, Err: errors.New("engine returned no choices")})
			return
		}

		// Record the reply in the transcript so follow-ups keep context.
		// The relay owns durable persistence; this is conversational state.
		full := resp.Choices[0].Content
		if err := e.threads.Append(context.WithoutCancel(ctx), threadID, string(domain.RoleAssistant), full); err != nil {
			e.logger.Warn().Err(err).Str("thread_id", threadID).Msg("failed to record assistant reply in transcript")
		}

		emit(ctx, events, ports.EngineEvent{Kind: ports.EngineCompleted})
	}()

	return events, nil
}

// emit sends an event unless the run's context is gone. A cancelled caller
// stops reading the channel, so an unguarded send past a full buffer would
// strand the producer goroutine.
func emit(ctx context.Context, events chan<- ports.EngineEvent, ev ports.EngineEvent) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

func (e *LangChain) buildMessages(transcript []ThreadMessage, opts ports.RunOptions) []llms.MessageContent {
	system := systemPrompt(opts.Tier)
	if opts.AdditionalInstructions != "" {
		system += "\n\n" + opts.AdditionalInstructions
	}

	messages := make([]llms.MessageContent, 0, len(transcript)+1)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	for _, m := range transcript {
		role := llms.ChatMessageTypeHuman
		if m.Role == string(domain.RoleAssistant) {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, m.Content))
	}
	return messages
}
