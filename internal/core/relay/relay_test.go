package relay

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/somnialabs/dreamchat/internal/core/domain"
	"github.com/somnialabs/dreamchat/internal/core/ports"
)

type stubMessages struct {
	mu        sync.Mutex
	inserted  []*domain.DreamMessage
	insertErr error
}

func (s *stubMessages) Insert(_ context.Context, msg *domain.DreamMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	clone := *msg
	s.inserted = append(s.inserted, &clone)
	return nil
}

func (s *stubMessages) CountUserMessages(context.Context, string, string) (int, error) {
	return 0, nil
}

func (s *stubMessages) ListByDream(context.Context, string) ([]*domain.DreamMessage, error) {
	return nil, nil
}

func (s *stubMessages) FirstAssistantMessage(context.Context, string) (*domain.DreamMessage, error) {
	return nil, nil
}

// collectSink records frames; sendErr makes Send fail from the given call
// index onward, simulating a dropped consumer.
type collectSink struct {
	frames   []Frame
	closed   int
	failFrom int
	sendErr  error
}

func (s *collectSink) Send(frame Frame) error {
	if s.sendErr != nil && len(s.frames) >= s.failFrom {
		return s.sendErr
	}
	s.frames = append(s.frames, frame)
	return nil
}

func (s *collectSink) Close() error {
	s.closed++
	return nil
}

func eventsOf(evs ...ports.EngineEvent) <-chan ports.EngineEvent {
	ch := make(chan ports.EngineEvent, len(evs))
	for _, ev := range evs {
		ch <- ev
	}
	close(ch)
	return ch
}

func target() *PersistTarget {
	return &PersistTarget{DreamID: "d1", UserID: "u1"}
}

func TestRelay_CompletedRun(t *testing.T) {
	messages := &stubMessages{}
	r := New(messages, zerolog.Nop())
	sink := &collectSink{}

	result := r.Run(context.Background(), eventsOf(
		ports.EngineEvent{Kind: ports.EngineTextDelta, Text: "The "},
		ports.EngineEvent{Kind: ports.EngineTextDelta, Text: "sea."},
		ports.EngineEvent{Kind: ports.EngineCompleted},
	), sink, target())

	if result.State != Completed {
		t.Fatalf("expected Completed, got %v", result.State)
	}
	if result.Chunks != 2 {
		t.Fatalf("expected 2 chunks, got %d", result.Chunks)
	}
	if !result.Persisted {
		t.Fatalf("expected persisted reply")
	}
	if sink.closed != 1 {
		t.Fatalf("sink must be closed exactly once, got %d", sink.closed)
	}

	want := []Frame{
		{Kind: FrameChunk, Chunk: "The "},
		{Kind: FrameChunk, Chunk: "sea."},
		{Kind: FrameDone},
	}
	if len(sink.frames) != len(want) {
		t.Fatalf("expected %d frames, got %d", len(want), len(sink.frames))
	}
	for i, f := range want {
		if sink.frames[i] != f {
			t.Fatalf("frame %d: expected %+v, got %+v", i, f, sink.frames[i])
		}
	}

	if len(messages.inserted) != 1 {
		t.Fatalf("expected exactly one insert, got %d", len(messages.inserted))
	}
	msg := messages.inserted[0]
	if msg.Content != "The sea." || msg.Role != domain.RoleAssistant {
		t.Fatalf("unexpected persisted message: %+v", msg)
	}
	if msg.DreamID != "d1" || msg.UserID != "u1" {
		t.Fatalf("persisted message mis-attributed: %+v", msg)
	}
}

func TestRelay_FailedRunPersistsNothing(t *testing.T) {
	messages := &stubMessages{}
	r := New(messages, zerolog.Nop())
	sink := &collectSink{}

	result := r.Run(context.Background(), eventsOf(
		ports.EngineEvent{Kind: ports.EngineTextDelta, Text: "partial"},
		ports.EngineEvent{Kind: ports.EngineFailed, Err: errors.New("boom")},
	), sink, target())

	if result.State != Failed {
		t.Fatalf("expected Failed, got %v", result.State)
	}
	if len(messages.inserted) != 0 {
		t.Fatalf("failed run must persist nothing, got %d inserts", len(messages.inserted))
	}

	last := sink.frames[len(sink.frames)-1]
	if last.Kind != FrameError {
		t.Fatalf("expected terminal error frame, got %+v", last)
	}
	if last.Error != callerSafeEngineError {
		t.Fatalf("caller must see the safe message, got %q", last.Error)
	}
	for _, f := range sink.frames {
		if f.Kind == FrameDone {
			t.Fatalf("no success marker may follow an error")
		}
	}
	if sink.closed != 1 {
		t.Fatalf("sink must be closed exactly once, got %d", sink.closed)
	}
}

func TestRelay_ChannelClosedWithoutTerminalIsFailure(t *testing.T) {
	messages := &stubMessages{}
	r := New(messages, zerolog.Nop())
	sink := &collectSink{}

	result := r.Run(context.Background(), eventsOf(
		ports.EngineEvent{Kind: ports.EngineTextDelta, Text: "cut off"},
	), sink, target())

	if result.State != Failed {
		t.Fatalf("a silently truncated stream must fail, got %v", result.State)
	}
	if len(messages.inserted) != 0 {
		t.Fatalf("truncated run must persist nothing")
	}
	if sink.frames[len(sink.frames)-1].Kind != FrameError {
		t.Fatalf("expected trailing error frame, got %+v", sink.frames)
	}
}

func TestRelay_CancellationAbandonsRun(t *testing.T) {
	messages := &stubMessages{}
	r := New(messages, zerolog.Nop())
	sink := &collectSink{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Unbuffered and never written: only the cancelled context can end this.
	events := make(chan ports.EngineEvent)
	result := r.Run(ctx, events, sink, target())

	if result.State != Failed {
		t.Fatalf("expected Failed on cancellation, got %v", result.State)
	}
	if len(messages.inserted) != 0 {
		t.Fatalf("abandoned run must persist nothing")
	}
	if sink.closed != 1 {
		t.Fatalf("sink must still be closed, got %d", sink.closed)
	}
}

func TestRelay_ConsumerGoneAbandonsRun(t *testing.T) {
	messages := &stubMessages{}
	r := New(messages, zerolog.Nop())
	sink := &collectSink{failFrom: 1, sendErr: errors.New("broken pipe")}

	result := r.Run(context.Background(), eventsOf(
		ports.EngineEvent{Kind: ports.EngineTextDelta, Text: "one"},
		ports.EngineEvent{Kind: ports.EngineTextDelta, Text: "two"},
		ports.EngineEvent{Kind: ports.EngineCompleted},
	), sink, target())

	if result.State != Failed {
		t.Fatalf("expected Failed when the consumer drops, got %v", result.State)
	}
	if len(messages.inserted) != 0 {
		t.Fatalf("dropped-consumer run must persist nothing")
	}
}

func TestRelay_PersistFailureDoesNotRevokeSuccess(t *testing.T) {
	messages := &stubMessages{insertErr: errors.New("store unavailable")}
	r := New(messages, zerolog.Nop())
	sink := &collectSink{}

	result := r.Run(context.Background(), eventsOf(
		ports.EngineEvent{Kind: ports.EngineTextDelta, Text: "reply"},
		ports.EngineEvent{Kind: ports.EngineCompleted},
	), sink, target())

	if result.State != Completed {
		t.Fatalf("persistence is best-effort, run must stay Completed, got %v", result.State)
	}
	if result.Persisted {
		t.Fatalf("expected Persisted=false")
	}
	if result.PersistErr == nil {
		t.Fatalf("expected PersistErr reported")
	}
	if sink.frames[len(sink.frames)-1].Kind != FrameDone {
		t.Fatalf("success marker must still be sent, got %+v", sink.frames)
	}
}

func TestRelay_NilTargetDisablesPersistence(t *testing.T) {
	messages := &stubMessages{}
	r := New(messages, zerolog.Nop())
	sink := &collectSink{}

	result := r.Run(context.Background(), eventsOf(
		ports.EngineEvent{Kind: ports.EngineTextDelta, Text: "anonymous"},
		ports.EngineEvent{Kind: ports.EngineCompleted},
	), sink, nil)

	if result.State != Completed {
		t.Fatalf("expected Completed, got %v", result.State)
	}
	if result.Persisted || len(messages.inserted) != 0 {
		t.Fatalf("nil target must not persist")
	}
}
