package redis

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func bufferLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, nil)), buf
}

func TestKeepAlive_ExtendsUntilStopped(t *testing.T) {
	log, _ := bufferLogger()
	ctx, cancel := context.WithCancel(context.Background())

	var (
		mu    sync.Mutex
		calls int
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepAlive(ctx, 5*time.Millisecond, func(context.Context) (bool, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			return true, nil
		}, log)
	}()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keepAlive did not stop after cancel")
	}
}

func TestKeepAlive_StopsWhenLockLost(t *testing.T) {
	log, buf := bufferLogger()

	calls := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepAlive(context.Background(), time.Millisecond, func(context.Context) (bool, error) {
			calls++
			return false, nil
		}, log)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keepAlive kept running after the lock was lost")
	}
	assert.Equal(t, 1, calls)
	assert.Contains(t, buf.String(), "lock lost before release")
}

func TestKeepAlive_RetriesTransientErrors(t *testing.T) {
	log, buf := bufferLogger()

	calls := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepAlive(context.Background(), time.Millisecond, func(context.Context) (bool, error) {
			calls++
			if calls < 3 {
				return false, errors.New("connection reset")
			}
			return false, nil
		}, log)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keepAlive did not finish")
	}
	assert.Equal(t, 3, calls)
	assert.Contains(t, buf.String(), "lock renewal failed")
}

func TestStudentLocker_ReleaseFailureIsLogged(t *testing.T) {
	log, buf := bufferLogger()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	l := &StudentLocker{client: client, ttl: time.Second, logger: log}
	l.release(context.Background(), LockKey(7), "token", log)

	assert.Contains(t, buf.String(), "lock release failed")
	assert.Contains(t, buf.String(), "error=")
}
