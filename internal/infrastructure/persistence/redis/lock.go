package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/campus-ledger/student-service/internal/domain/shared"
)

// releaseScript deletes the lock only if it still holds our token, so an
// expired lock re-acquired by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the TTL only while the lock still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// StudentLocker serializes operations on one student across processes.
// A held lock is renewed every ttl/3 until released.
type StudentLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
	logger *slog.Logger
}

// NewStudentLocker creates a locker. ttl bounds how long a crashed holder can
// block others; wait bounds how long Lock retries before giving up.
func NewStudentLocker(cache *Cache, ttl, wait time.Duration, logger *slog.Logger) *StudentLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StudentLocker{
		client: cache.Client(),
		ttl:    ttl,
		wait:   wait,
		poll:   50 * time.Millisecond,
		logger: logger.With("component", "student_locker"),
	}
}

// Lock acquires the lock for studentID. The returned func releases it and
// is safe to call more than once.
func (l *StudentLocker) Lock(ctx context.Context, studentID int64) (func(), error) {
	key := LockKey(studentID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return l.hold(ctx, key, token), nil
		}

		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("lock %s: %w", key, shared.ErrLockUnavailable)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}
}

// hold starts renewing an acquired lock and returns its release func.
func (l *StudentLocker) hold(ctx context.Context, key, token string) func() {
	log := l.logger.With("key", key)

	// Renewal and release outlive the caller's ctx.
	renewCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepAlive(renewCtx, l.ttl/3, func(ctx context.Context) (bool, error) {
			return l.extend(ctx, key, token)
		}, log)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			<-done
			l.release(renewCtx, key, token, log)
		})
	}
}

func (l *StudentLocker) extend(ctx context.Context, key, token string) (bool, error) {
	n, err := extendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (l *StudentLocker) release(ctx context.Context, key, token string, log *slog.Logger) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
		log.Warn("lock release failed, key held until ttl expires", "ttl", l.ttl.String(), "error", err)
	}
}

// keepAlive calls extend every interval until ctx is done or extend reports
// the lock is no longer ours. Transient errors are logged and retried on the
// next tick.
func keepAlive(ctx context.Context, interval time.Duration, extend func(context.Context) (bool, error), log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		held, err := extend(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("lock renewal failed", "error", err)
			continue
		}
		if !held {
			log.Error("lock lost before release")
			return
		}
	}
}
