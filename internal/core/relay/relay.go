// Package relay drives a single engine run to completion: it consumes the
// upstream event sequence, forwards normalized increment frames to the
// caller, accumulates the full reply, and persists it exactly once on
// success.
package relay

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/somnialabs/dreamchat/internal/core/domain"
	"github.com/somnialabs/dreamchat/internal/core/ports"
)

// FrameKind discriminates the outbound frames.
type FrameKind int

const (
	// FrameChunk carries one incremental piece of assistant text.
	FrameChunk FrameKind = iota
	// FrameDone is the terminal success marker.
	FrameDone
	// FrameError is the terminal error marker. No FrameDone follows it.
	FrameError
)

// Frame is one element of the outbound incremental protocol.
type Frame struct {
	Kind  FrameKind
	Chunk string
	Error string
}

// Sink is the outbound channel the relay writes to. Send returning an error
// means the consumer is gone; the relay abandons the run. Close is called on
// every exit path.
type Sink interface {
	Send(frame Frame) error
	Close() error
}

// PersistTarget identifies the dream and author the assistant reply is
// persisted against. A nil target disables persistence (public demo).
type PersistTarget struct {
	DreamID string
	UserID  string
}

// Result reports what a finished relay did, for logging and metrics.
type Result struct {
	State     State
	Chunks    int
	Persisted bool
	// PersistErr is the best-effort persistence failure, if any. The success
	// marker has already been sent when it occurs.
	PersistErr error
}

// State is the relay's lifecycle state.
type State int

const (
	Streaming State = iota
	Completed
	Failed
)

// callerSafeEngineError is the only error text that crosses the stream on an
// engine failure. The raw upstream detail stays in the logs.
const callerSafeEngineError = "the interpretation could not be completed"

// Relay persists completed replies through messages. It holds no per-request
// state; each Run carries its own accumulator.
type Relay struct {
	messages ports.MessageRepository
	logger   zerolog.Logger
}

func New(messages ports.MessageRepository, logger zerolog.Logger) *Relay {
	return &Relay{messages: messages, logger: logger}
}

// Run pulls events until a terminal event, the upstream channel closes, or
// ctx is cancelled (caller disconnect). The sink is closed on every exit
// path. Increments are forwarded strictly in emission order with no
// buffering or coalescing.
//
// Exactly one assistant message is inserted on the success path and none on
// any other; a persistence failure after Completed is logged and reported in
// Result but the already-sent success marker stands.
func (r *Relay) Run(ctx context.Context, events <-chan ports.EngineEvent, sink Sink, target *PersistTarget) Result {
	defer func() {
		if err := sink.Close(); err != nil {
			r.logger.Debug().Err(err).Msg("sink close failed")
		}
	}()

	var acc strings.Builder
	result := Result{State: Streaming}

	for {
		select {
		case <-ctx.Done():
			// Caller disconnected: abandon the upstream run. Nothing is
			// persisted and no terminal frame can reach anyone.
			result.State = Failed
			return result

		case ev, ok := <-events:
			if !ok {
				// Upstream ended without a terminal event. Treat as failure
				// so the caller never sees a silently truncated stream.
				r.logger.Error().Msg("engine stream ended without terminal event")
				r.sendError(sink)
				result.State = Failed
				return result
			}

			switch ev.Kind {
			case ports.EngineTextDelta:
				acc.WriteString(ev.Text)
				result.Chunks++
				if err := sink.Send(Frame{Kind: FrameChunk, Chunk: ev.Text}); err != nil {
					r.logger.Debug().Err(err).Msg("client gone mid-stream, abandoning run")
					result.State = Failed
					return result
				}

			case ports.EngineCompleted:
				result.State = Completed
				result.Persisted, result.PersistErr = r.persist(ctx, target, acc.String())
				if err := sink.Send(Frame{Kind: FrameDone}); err != nil {
					r.logger.Debug().Err(err).Msg("client gone before success marker")
				}
				return result

			case ports.EngineFailed:
				r.logger.Error().Err(ev.Err).Msg("engine run failed")
				r.sendError(sink)
				result.State = Failed
				return result
			}
		}
	}
}

func (r *Relay) sendError(sink Sink) {
	if err := sink.Send(Frame{Kind: FrameError, Error: callerSafeEngineError}); err != nil {
		r.logger.Debug().Err(err).Msg("failed to deliver error frame")
	}
}

// persist inserts the assembled assistant message. Best-effort: the caller
// has already decided the stream outcome by the time this runs.
func (r *Relay) persist(ctx context.Context, target *PersistTarget, content string) (bool, error) {
	if target == nil {
		return false, nil
	}
	msg := &domain.DreamMessage{
		ID:        uuid.NewString(),
		DreamID:   target.DreamID,
		UserID:    target.UserID,
		Role:      domain.RoleAssistant,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	// A client that disconnects right after the terminal event must not
	// abort the write; the run did complete.
	if err := r.messages.Insert(context.WithoutCancel(ctx), msg); err != nil {
		r.logger.Error().Err(err).
			Str("dream_id", target.DreamID).
			Msg("assistant message persistence failed after completed run")
		return false, err
	}
	return true, nil
}
