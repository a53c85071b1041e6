package orderwatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pending is one order awaiting status resolution: either acknowledged and
// not yet filled, or possibly submitted with an unknown outcome.
type Pending struct {
	ClientOrderID string    `json:"client_order_id"`
	Symbol        string    `json:"symbol"`
	TrackedAt     time.Time `json:"tracked_at"`
}

// Journal persists the pending set so unknown-outcome submissions survive a
// restart and get reconciled instead of resubmitted.
type Journal interface {
	Add(ctx context.Context, p Pending) error
	List(ctx context.Context) ([]Pending, error)
	Remove(ctx context.Context, clientOrderID string) error
}

const redisPendingKey = "tradepulse:orders:pending"

type redisJournal struct {
	rdb *redis.Client
}

// NewRedisJournal stores pending orders in a Redis hash keyed by client
// order ID.
func NewRedisJournal(rdb *redis.Client) Journal {
	return &redisJournal{rdb: rdb}
}

func (j *redisJournal) Add(ctx context.Context, p Pending) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := j.rdb.HSet(ctx, redisPendingKey, p.ClientOrderID, b).Err(); err != nil {
		return fmt.Errorf("journal pending order %s: %w", p.ClientOrderID, err)
	}
	return nil
}

func (j *redisJournal) List(ctx context.Context) ([]Pending, error) {
	entries, err := j.rdb.HGetAll(ctx, redisPendingKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	out := make([]Pending, 0, len(entries))
	for id, raw := range entries {
		var p Pending
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			// Corrupt entry, drop it rather than poison every poll.
			_ = j.rdb.HDel(ctx, redisPendingKey, id).Err()
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (j *redisJournal) Remove(ctx context.Context, clientOrderID string) error {
	return j.rdb.HDel(ctx, redisPendingKey, clientOrderID).Err()
}

type memoryJournal struct {
	mu      sync.Mutex
	pending map[string]Pending
}

// NewMemoryJournal keeps the pending set in process memory. Used in DRY_RUN
// mode where nothing outlives the process anyway.
func NewMemoryJournal() Journal {
	return &memoryJournal{pending: map[string]Pending{}}
}

func (j *memoryJournal) Add(ctx context.Context, p Pending) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pending[p.ClientOrderID] = p
	return nil
}

func (j *memoryJournal) List(ctx context.Context) ([]Pending, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Pending, 0, len(j.pending))
	for _, p := range j.pending {
		out = append(out, p)
	}
	return out, nil
}

func (j *memoryJournal) Remove(ctx context.Context, clientOrderID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.pending, clientOrderID)
	return nil
}
