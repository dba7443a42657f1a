package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const reservationTTL = 24 * time.Hour

// reserveScript seeds the counter from the store-derived count when absent,
// then claims one slot if and only if the counter is still under the limit.
// Single EVAL, so concurrent requests for the same dream serialize here.
var reserveScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '-1')
if current < 0 then
  current = tonumber(ARGV[1])
  redis.call('SET', KEYS[1], current, 'EX', ARGV[3])
end
if current >= tonumber(ARGV[2]) then
  return 0
end
redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], ARGV[3])
return 1
`)

// releaseScript returns a claimed slot without ever going negative.
var releaseScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current > 0 then
  redis.call('DECR', KEYS[1])
end
return current
`)

// QuotaReserver provides the atomic admission slot the durable store cannot:
// its count-then-insert is two operations with no enclosing transaction.
// Key format: quota:<dream_id>:<user_id>
type QuotaReserver struct {
	client *redis.Client
}

func NewQuotaReserver(client *redis.Client) *QuotaReserver {
	return &QuotaReserver{client: client}
}

// Reserve claims one message slot. used seeds the counter when no counter
// exists yet (first contested request after a restart). A nil limit means
// unlimited and is granted without touching Redis.
func (q *QuotaReserver) Reserve(ctx context.Context, userID, dreamID string, used int, limit *int) (bool, error) {
	if limit == nil {
		return true, nil
	}

	n, err := reserveScript.Run(ctx, q.client,
		[]string{q.key(dreamID, userID)},
		used, *limit, int(reservationTTL.Seconds()),
	).Int()
	if err != nil {
		return false, fmt.Errorf("reserve quota slot: %w", err)
	}
	return n == 1, nil
}

// Release returns a slot claimed by a request whose message insert failed.
func (q *QuotaReserver) Release(ctx context.Context, userID, dreamID string) error {
	if err := releaseScript.Run(ctx, q.client, []string{q.key(dreamID, userID)}).Err(); err != nil {
		return fmt.Errorf("release quota slot: %w", err)
	}
	return nil
}

func (q *QuotaReserver) key(dreamID, userID string) string {
	return fmt.Sprintf("quota:%s:%s", dreamID, userID)
}
