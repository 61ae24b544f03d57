// Package budget persists token budget counters in the KV store.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/listbot/internal/db"
	"github.com/kailas-cloud/listbot/internal/domain"
	"github.com/kailas-cloud/listbot/internal/usecase/budget"
)

// Counters outlive their window by a margin so late writers still land.
const (
	DailyTTL   = 48 * time.Hour
	MonthlyTTL = 62 * 24 * time.Hour
)

type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store keeps one INCRBY counter per scope, period and bucket under
// listbot:budget:{scope}:{period}:{bucket}.
type Store struct {
	kv   kv
	ttls map[budget.Period]time.Duration
}

// New creates a budget store with the default TTLs.
func New(s kv) *Store {
	return &Store{
		kv: s,
		ttls: map[budget.Period]time.Duration{
			budget.PeriodDaily:   DailyTTL,
			budget.PeriodMonthly: MonthlyTTL,
		},
	}
}

// Add increments the counter. The TTL is only set on the first write of a bucket.
func (s *Store) Add(ctx context.Context, scope string, p budget.Period, bucket string, tokens int64) error {
	key := Key(scope, p, bucket)
	if err := s.kv.IncrBy(ctx, key, tokens); err != nil {
		return fmt.Errorf("add to %s: %w", key, err)
	}
	ttl, ok := s.ttls[p]
	if !ok {
		return fmt.Errorf("unknown budget period %q", p)
	}
	if err := s.kv.Expire(ctx, key, ttl, true); err != nil {
		return fmt.Errorf("expire %s: %w", key, err)
	}
	return nil
}

// Used returns the counter value, 0 for a bucket nobody wrote to.
func (s *Store) Used(ctx context.Context, scope string, p budget.Period, bucket string) (int64, error) {
	key := Key(scope, p, bucket)
	raw, err := s.kv.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read %s: %w", key, err)
	}

	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("counter %s is not an integer: %w", key, err)
	}
	return n, nil
}

// Key returns the KV key of a counter.
func Key(scope string, p budget.Period, bucket string) string {
	return domain.KeyPrefix + "budget:" + scope + ":" + string(p) + ":" + bucket
}
