package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger keeps submission claims in process memory
type MemoryLedger struct {
	mu     sync.RWMutex
	claims map[string]time.Time
	now    func() time.Time
	stop   chan struct{}
	once   sync.Once
}

// NewMemoryLedger creates a ledger and starts its expiry sweeper
func NewMemoryLedger() *MemoryLedger {
	l := &MemoryLedger{
		claims: make(map[string]time.Time),
		now:    time.Now,
		stop:   make(chan struct{}),
	}

	go l.cleanupExpired()

	return l
}

// Claim records submissionID unless an unexpired claim exists
func (l *MemoryLedger) Claim(ctx context.Context, submissionID string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expiresAt, exists := l.claims[submissionID]; exists && now.Before(expiresAt) {
		return false, nil
	}
	l.claims[submissionID] = now.Add(ttl)
	return true, nil
}

// Release removes a claim
func (l *MemoryLedger) Release(ctx context.Context, submissionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.claims, submissionID)
	return nil
}

// Len returns the number of live claims
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.claims)
}

// Close stops the sweeper
func (l *MemoryLedger) Close() error {
	l.once.Do(func() { close(l.stop) })
	return nil
}

// cleanupExpired periodically removes expired claims
func (l *MemoryLedger) cleanupExpired() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *MemoryLedger) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, expiresAt := range l.claims {
		if !now.Before(expiresAt) {
			delete(l.claims, id)
		}
	}
}
