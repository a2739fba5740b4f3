package memory

import (
	"context"
	"sync"
)

// KeyedLocker is a per-student mutex for a single process. Waiting honours
// ctx cancellation.
type KeyedLocker struct {
	mu    sync.Mutex
	slots map[int64]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewKeyedLocker creates a new KeyedLocker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{slots: make(map[int64]*slot)}
}

// Lock blocks until the student's lock is free or ctx is done.
func (l *KeyedLocker) Lock(ctx context.Context, studentID int64) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[studentID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[studentID] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(studentID, s, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(studentID, s, true) })
	}, nil
}

func (l *KeyedLocker) release(studentID int64, s *slot, held bool) {
	if held {
		<-s.ch
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(l.slots, studentID)
	}
}
