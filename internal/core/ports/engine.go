package ports

import "context"

// EngineEventKind discriminates the events the upstream conversation engine
// emits while a run is in flight.
type EngineEventKind int

const (
	// EngineTextDelta carries one incremental piece of assistant text.
	EngineTextDelta EngineEventKind = iota
	// EngineCompleted signals the run finished; no further events follow.
	EngineCompleted
	// EngineFailed signals the run failed terminally. Err carries the
	// engine-side cause and must never reach the caller verbatim.
	EngineFailed
)

// EngineEvent is one element of the ordered event sequence produced by a run.
type EngineEvent struct {
	Kind EngineEventKind
	Text string
	Err  error
}

// RunOptions parameterises a single engine run.
type RunOptions struct {
	Tier string
	// AdditionalInstructions is optional context injected into the run
	// (personal context, dream history) without becoming part of the thread.
	AdditionalInstructions string
}

// ConversationEngine is the upstream engine the relay consumes. Each dream
// owns one thread; a run streams the assistant's reply for the thread's
// current transcript as an ordered event sequence.
//
// Run returns a receive-only channel that is closed after the terminal event
// (Completed or Failed). Cancelling ctx abandons the run; the channel is
// still closed.
type ConversationEngine interface {
	CreateThread(ctx context.Context) (string, error)
	AppendMessage(ctx context.Context, threadID, role, content string) error
	Run(ctx context.Context, threadID string, opts RunOptions) (<-chan EngineEvent, error)
}
