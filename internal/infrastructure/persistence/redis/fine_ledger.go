package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FineLedger remembers which overdue items were already fined, one set per
// student. Entries expire with the set after ttl of inactivity.
type FineLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewFineLedger creates a new FineLedger.
func NewFineLedger(cache *Cache, ttl time.Duration) *FineLedger {
	return &FineLedger{client: cache.Client(), ttl: ttl}
}

// Seen reports whether key was already recorded for the student.
func (l *FineLedger) Seen(ctx context.Context, studentID int64, key string) (bool, error) {
	ok, err := l.client.SIsMember(ctx, FineKey(studentID), key).Result()
	if err != nil {
		return false, fmt.Errorf("fine ledger lookup: %w", err)
	}
	return ok, nil
}

// Mark records key for the student.
func (l *FineLedger) Mark(ctx context.Context, studentID int64, key string) error {
	setKey := FineKey(studentID)

	pipe := l.client.TxPipeline()
	pipe.SAdd(ctx, setKey, key)
	if l.ttl > 0 {
		pipe.Expire(ctx, setKey, l.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("fine ledger mark: %w", err)
	}
	return nil
}
