package domain

// Limits holds every static quota and length ceiling the services enforce.
// Loaded once at startup; nothing in the request path mutates these. The env
// tags are consumed by the configuration loader.
type Limits struct {
	// FreeFollowUps is the per-dream message quota for free users. Paid
	// users are unbounded.
	FreeFollowUps int `env:"LIMIT_FREE_FOLLOW_UPS, default=3"`

	FreeMessageMax int `env:"LIMIT_FREE_MESSAGE_MAX, default=2000"`
	PaidMessageMax int `env:"LIMIT_PAID_MESSAGE_MAX, default=10000"`
	UserContextMax int `env:"LIMIT_USER_CONTEXT_MAX, default=15000"`

	DreamContentMin int `env:"LIMIT_DREAM_CONTENT_MIN, default=50"`
	DreamContentMax int `env:"LIMIT_DREAM_CONTENT_MAX, default=10000"`

	PublicDreamMin int `env:"LIMIT_PUBLIC_DREAM_MIN, default=50"`
	PublicDreamMax int `env:"LIMIT_PUBLIC_DREAM_MAX, default=2000"`

	// ResponseMaxTokens bounds the engine's reply. Enforced by the engine,
	// not by the relay.
	ResponseMaxTokens int `env:"LIMIT_RESPONSE_MAX_TOKENS, default=500"`

	// Dream-history context window (paid tier only).
	DreamHistoryCount        int `env:"LIMIT_DREAM_HISTORY_COUNT, default=3"`
	HistoryContentMax        int `env:"LIMIT_HISTORY_CONTENT_MAX, default=1000"`
	HistoryInterpretationMax int `env:"LIMIT_HISTORY_INTERPRETATION_MAX, default=300"`

	// FreeDreamListCap caps how far back free users can browse.
	FreeDreamListCap int `env:"LIMIT_FREE_DREAM_LIST_CAP, default=20"`
}

// MessageLimit returns the per-dream user-message quota for a tier.
// nil means unlimited.
func (l Limits) MessageLimit(tier string) *int {
	if tier == "paid" {
		return nil
	}
	n := l.FreeFollowUps
	return &n
}

// MessageMax returns the content length ceiling for a tier.
func (l Limits) MessageMax(tier string) int {
	if tier == "paid" {
		return l.PaidMessageMax
	}
	return l.FreeMessageMax
}
