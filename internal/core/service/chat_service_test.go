package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/somnialabs/dreamchat/internal/core/domain"
	"github.com/somnialabs/dreamchat/internal/core/ports"
	"github.com/somnialabs/dreamchat/internal/core/relay"
)

func chatServiceFor(dreams *memDreamRepo, msgs *memMessageRepo, eng *stubEngine, reserver *stubReserver) *ChatService {
	contexts := newMemContextRepo()
	assembler := NewContextBuilder(dreams, msgs, contexts, testLimits(), zerolog.Nop())
	return NewChatService(dreams, msgs, eng, reserver, assembler, relay.New(msgs, zerolog.Nop()), zerolog.Nop())
}

func admittedInput(tier domain.Tier) StreamChatInput {
	limit := intPtr(3)
	remaining := intPtr(2)
	if tier == domain.TierPaid {
		limit, remaining = nil, nil
	}
	return StreamChatInput{
		UserID:  "u1",
		DreamID: "d1",
		Message: "what does the ocean mean?",
		Tier:    tier,
		Decision: ports.AdmissionDecision{
			Tier:              tier,
			MessagesUsed:      1,
			MessagesLimit:     limit,
			CanSendMessage:    true,
			RemainingMessages: remaining,
		},
	}
}

func seededDream() *memDreamRepo {
	dreams := newMemDreamRepo()
	dreams.dreams["d1"] = &domain.Dream{
		ID: "d1", UserID: "u1", Title: "Ocean", Content: "a dream about the ocean",
		ThreadID: "thread-1", CreatedAt: time.Now().UTC(),
	}
	return dreams
}

func TestChatService_StreamChat_SuccessPersistsBothMessages(t *testing.T) {
	dreams := seededDream()
	msgs := newMemMessageRepo()
	eng := &stubEngine{events: []ports.EngineEvent{
		{Kind: ports.EngineTextDelta, Text: "The ocean "},
		{Kind: ports.EngineTextDelta, Text: "often stands for emotion."},
		{Kind: ports.EngineCompleted},
	}}
	reserver := &stubReserver{granted: true}
	svc := chatServiceFor(dreams, msgs, eng, reserver)

	sink := &memSink{}
	result, err := svc.StreamChat(context.Background(), admittedInput(domain.TierFree), sink)
	if err != nil {
		t.Fatalf("StreamChat returned error: %v", err)
	}
	if result.State != relay.Completed {
		t.Fatalf("expected completed run, got %v", result.State)
	}
	if !result.Persisted {
		t.Fatalf("expected assistant message persisted")
	}
	if !sink.closed {
		t.Fatalf("sink must be closed after the run")
	}

	var userCount, assistantCount int
	var assistant string
	for _, m := range msgs.msgs {
		switch m.Role {
		case domain.RoleUser:
			userCount++
		case domain.RoleAssistant:
			assistantCount++
			assistant = m.Content
		}
	}
	if userCount != 1 || assistantCount != 1 {
		t.Fatalf("expected exactly one message per role, got user=%d assistant=%d", userCount, assistantCount)
	}
	if assistant != "The ocean often stands for emotion." {
		t.Fatalf("assistant message must be the full accumulated reply, got %q", assistant)
	}
}

func TestChatService_StreamChat_ForeignDreamForbidden(t *testing.T) {
	dreams := newMemDreamRepo()
	dreams.dreams["d1"] = &domain.Dream{ID: "d1", UserID: "someone-else", ThreadID: "t"}
	svc := chatServiceFor(dreams, newMemMessageRepo(), &stubEngine{}, &stubReserver{granted: true})

	_, err := svc.StreamChat(context.Background(), admittedInput(domain.TierFree), &memSink{})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestChatService_StreamChat_ReservationDenied(t *testing.T) {
	msgs := newMemMessageRepo()
	svc := chatServiceFor(seededDream(), msgs, &stubEngine{}, &stubReserver{granted: false})

	_, err := svc.StreamChat(context.Background(), admittedInput(domain.TierFree), &memSink{})
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if len(msgs.msgs) != 0 {
		t.Fatalf("a denied reservation must not persist anything")
	}
}

func TestChatService_StreamChat_InsertFailureReleasesSlot(t *testing.T) {
	msgs := newMemMessageRepo()
	msgs.insertErr = errors.New("store unavailable")
	reserver := &stubReserver{granted: true}
	svc := chatServiceFor(seededDream(), msgs, &stubEngine{}, reserver)

	if _, err := svc.StreamChat(context.Background(), admittedInput(domain.TierFree), &memSink{}); err == nil {
		t.Fatalf("expected error from failed insert")
	}
	if reserver.releases != 1 {
		t.Fatalf("expected reservation released once, got %d", reserver.releases)
	}
}

func TestChatService_StreamChat_EngineFailureStreamsErrorFrame(t *testing.T) {
	msgs := newMemMessageRepo()
	eng := &stubEngine{events: []ports.EngineEvent{
		{Kind: ports.EngineTextDelta, Text: "partial"},
		{Kind: ports.EngineFailed, Err: errors.New("upstream blew up")},
	}}
	svc := chatServiceFor(seededDream(), msgs, eng, &stubReserver{granted: true})

	sink := &memSink{}
	result, err := svc.StreamChat(context.Background(), admittedInput(domain.TierFree), sink)
	if err != nil {
		t.Fatalf("mid-stream failures travel on the sink, got error %v", err)
	}
	if result.State != relay.Failed {
		t.Fatalf("expected failed run, got %v", result.State)
	}

	last := sink.frames[len(sink.frames)-1]
	if last.Kind != relay.FrameError {
		t.Fatalf("expected terminal error frame, got %+v", last)
	}
	if last.Error == "" || last.Error == "upstream blew up" {
		t.Fatalf("raw engine error must not reach the caller, got %q", last.Error)
	}
	for _, f := range sink.frames {
		if f.Kind == relay.FrameDone {
			t.Fatalf("no success marker may follow a failure")
		}
	}

	for _, m := range msgs.msgs {
		if m.Role == domain.RoleAssistant {
			t.Fatalf("a failed run must not persist an assistant message")
		}
	}
}

func TestChatService_StreamChat_BackfillsMissingThread(t *testing.T) {
	dreams := newMemDreamRepo()
	dreams.dreams["d1"] = &domain.Dream{ID: "d1", UserID: "u1", Content: "old dream"}
	eng := &stubEngine{events: []ports.EngineEvent{{Kind: ports.EngineCompleted}}}
	svc := chatServiceFor(dreams, newMemMessageRepo(), eng, &stubReserver{granted: true})

	if _, err := svc.StreamChat(context.Background(), admittedInput(domain.TierFree), &memSink{}); err != nil {
		t.Fatalf("StreamChat returned error: %v", err)
	}
	if dreams.dreams["d1"].ThreadID == "" {
		t.Fatalf("expected thread id backfilled on the dream")
	}
}

func TestChatService_StreamChat_PaidTierGetsInstructions(t *testing.T) {
	dreams := seededDream()
	dreams.dreams["old"] = &domain.Dream{
		ID: "old", UserID: "u1", Title: "Falling", Content: "an older dream",
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	eng := &stubEngine{events: []ports.EngineEvent{{Kind: ports.EngineCompleted}}}
	svc := chatServiceFor(dreams, newMemMessageRepo(), eng, &stubReserver{granted: true})

	if _, err := svc.StreamChat(context.Background(), admittedInput(domain.TierPaid), &memSink{}); err != nil {
		t.Fatalf("StreamChat returned error: %v", err)
	}
	if eng.runOpts.AdditionalInstructions == "" {
		t.Fatalf("paid run must carry assembled context")
	}
}

func TestChatService_StreamChat_FreeTierGetsNoInstructions(t *testing.T) {
	dreams := seededDream()
	dreams.dreams["old"] = &domain.Dream{
		ID: "old", UserID: "u1", Title: "Falling", Content: "an older dream",
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	eng := &stubEngine{events: []ports.EngineEvent{{Kind: ports.EngineCompleted}}}
	svc := chatServiceFor(dreams, newMemMessageRepo(), eng, &stubReserver{granted: true})

	if _, err := svc.StreamChat(context.Background(), admittedInput(domain.TierFree), &memSink{}); err != nil {
		t.Fatalf("StreamChat returned error: %v", err)
	}
	if eng.runOpts.AdditionalInstructions != "" {
		t.Fatalf("free run must not carry personalised context")
	}
}

func TestChatService_StreamOneShot_NoPersistence(t *testing.T) {
	msgs := newMemMessageRepo()
	eng := &stubEngine{events: []ports.EngineEvent{
		{Kind: ports.EngineTextDelta, Text: "A short reading."},
		{Kind: ports.EngineCompleted},
	}}
	svc := chatServiceFor(newMemDreamRepo(), msgs, eng, &stubReserver{granted: true})

	sink := &memSink{}
	result, err := svc.StreamOneShot(context.Background(), "I dreamt of a lighthouse", sink)
	if err != nil {
		t.Fatalf("StreamOneShot returned error: %v", err)
	}
	if result.State != relay.Completed {
		t.Fatalf("expected completed run, got %v", result.State)
	}
	if result.Persisted {
		t.Fatalf("one-shot runs must not persist")
	}
	if len(msgs.msgs) != 0 {
		t.Fatalf("no messages may be stored for the public demo")
	}
}
