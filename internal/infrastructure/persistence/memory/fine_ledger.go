package memory

import (
	"context"
	"sync"
)

// FineLedger is the in-process fine dedup ledger.
type FineLedger struct {
	mu   sync.Mutex
	seen map[int64]map[string]struct{}
}

// NewFineLedger creates a new FineLedger.
func NewFineLedger() *FineLedger {
	return &FineLedger{seen: make(map[int64]map[string]struct{})}
}

func (l *FineLedger) Seen(_ context.Context, studentID int64, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.seen[studentID][key]
	return ok, nil
}

func (l *FineLedger) Mark(_ context.Context, studentID int64, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	set, ok := l.seen[studentID]
	if !ok {
		set = make(map[string]struct{})
		l.seen[studentID] = set
	}
	set[key] = struct{}{}
	return nil
}
