package service

import (
	"context"
	"sort"
	"sync"

	"github.com/somnialabs/dreamchat/internal/core/domain"
	"github.com/somnialabs/dreamchat/internal/core/ports"
	"github.com/somnialabs/dreamchat/internal/core/relay"
)

// In-memory repository stubs shared by the service tests. Each returns
// clones so tests cannot mutate stored state by accident. Setting the err
// fields forces the corresponding calls to fail.

func testLimits() domain.Limits {
	return domain.Limits{
		FreeFollowUps:            3,
		FreeMessageMax:           2000,
		PaidMessageMax:           10000,
		UserContextMax:           15000,
		DreamContentMin:          50,
		DreamContentMax:          10000,
		PublicDreamMin:           50,
		PublicDreamMax:           2000,
		ResponseMaxTokens:        500,
		DreamHistoryCount:        3,
		HistoryContentMax:        1000,
		HistoryInterpretationMax: 300,
		FreeDreamListCap:         20,
	}
}

func intPtr(n int) *int { return &n }

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
	err   error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.users[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return cloneUser(r.users[id]), nil
}

type memDreamRepo struct {
	mu      sync.Mutex
	dreams  map[string]*domain.Dream
	findErr error
}

func newMemDreamRepo() *memDreamRepo {
	return &memDreamRepo{dreams: make(map[string]*domain.Dream)}
}

func cloneDream(d *domain.Dream) *domain.Dream {
	if d == nil {
		return nil
	}
	clone := *d
	return &clone
}

func (r *memDreamRepo) Insert(_ context.Context, dream *domain.Dream) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dreams[dream.ID] = cloneDream(dream)
	return nil
}

func (r *memDreamRepo) FindByID(_ context.Context, id string) (*domain.Dream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	return cloneDream(r.dreams[id]), nil
}

func (r *memDreamRepo) sortedByUser(userID, excludeID string) []*domain.Dream {
	var out []*domain.Dream
	for _, d := range r.dreams {
		if d.UserID == userID && d.ID != excludeID {
			out = append(out, cloneDream(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *memDreamRepo) ListByUser(_ context.Context, userID string, limit int) ([]*domain.Dream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sortedByUser(userID, "")
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memDreamRepo) ListRecentExcluding(_ context.Context, userID, excludeID string, limit int) ([]*domain.Dream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sortedByUser(userID, excludeID)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memDreamRepo) SetThreadID(_ context.Context, dreamID, threadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dreams[dreamID]
	if !ok {
		return domain.ErrDreamNotFound
	}
	d.ThreadID = threadID
	return nil
}

type memMessageRepo struct {
	mu        sync.Mutex
	msgs      []*domain.DreamMessage
	insertErr error
	countErr  error
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{}
}

func cloneMessage(m *domain.DreamMessage) *domain.DreamMessage {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

func (r *memMessageRepo) Insert(_ context.Context, msg *domain.DreamMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	r.msgs = append(r.msgs, cloneMessage(msg))
	return nil
}

func (r *memMessageRepo) CountUserMessages(_ context.Context, dreamID, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.countErr != nil {
		return 0, r.countErr
	}
	n := 0
	for _, m := range r.msgs {
		if m.DreamID == dreamID && m.UserID == userID && m.Role == domain.RoleUser {
			n++
		}
	}
	return n, nil
}

func (r *memMessageRepo) ListByDream(_ context.Context, dreamID string) ([]*domain.DreamMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.DreamMessage
	for _, m := range r.msgs {
		if m.DreamID == dreamID {
			out = append(out, cloneMessage(m))
		}
	}
	return out, nil
}

func (r *memMessageRepo) FirstAssistantMessage(_ context.Context, dreamID string) (*domain.DreamMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.DreamID == dreamID && m.Role == domain.RoleAssistant {
			return cloneMessage(m), nil
		}
	}
	return nil, nil
}

type memContextRepo struct {
	mu       sync.Mutex
	contexts map[string]*domain.UserContext
	getErr   error
}

func newMemContextRepo() *memContextRepo {
	return &memContextRepo{contexts: make(map[string]*domain.UserContext)}
}

func (r *memContextRepo) Get(_ context.Context, userID string) (*domain.UserContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	uc, ok := r.contexts[userID]
	if !ok {
		return nil, nil
	}
	clone := *uc
	return &clone, nil
}

func (r *memContextRepo) Upsert(_ context.Context, userID, contextData string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts[userID] = &domain.UserContext{UserID: userID, ContextData: contextData}
	return nil
}

// stubEngine scripts a conversation engine run. Events are replayed onto the
// channel the service consumes.
type stubEngine struct {
	mu        sync.Mutex
	threads   int
	appended  []string
	runOpts   ports.RunOptions
	events    []ports.EngineEvent
	createErr error
	appendErr error
	runErr    error
}

func (e *stubEngine) CreateThread(_ context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.createErr != nil {
		return "", e.createErr
	}
	e.threads++
	return "thread-1", nil
}

func (e *stubEngine) AppendMessage(_ context.Context, _, _, content string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.appendErr != nil {
		return e.appendErr
	}
	e.appended = append(e.appended, content)
	return nil
}

func (e *stubEngine) Run(_ context.Context, _ string, opts ports.RunOptions) (<-chan ports.EngineEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runErr != nil {
		return nil, e.runErr
	}
	e.runOpts = opts
	ch := make(chan ports.EngineEvent, len(e.events))
	for _, ev := range e.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type stubReserver struct {
	mu       sync.Mutex
	granted  bool
	err      error
	reserves int
	releases int
}

func (s *stubReserver) Reserve(_ context.Context, _, _ string, _ int, _ *int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reserves++
	if s.err != nil {
		return false, s.err
	}
	return s.granted, nil
}

func (s *stubReserver) Release(_ context.Context, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases++
	return nil
}

// memSink records the frames a relay run emits.
type memSink struct {
	mu     sync.Mutex
	frames []relay.Frame
	closed bool
}

func (s *memSink) Send(frame relay.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return nil
}

func (s *memSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
