package resilience

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"killrvideo/infrastructure/persistence/abstractions"
	"killrvideo/infrastructure/persistence/schema"
	"killrvideo/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds circuit breaker settings shared by every table
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the default breaker settings
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// BreakerSession wraps a session with one circuit breaker per table, so a
// failing table stops taking traffic without affecting the others.
type BreakerSession struct {
	next   abstractions.Session
	config BreakerConfig
	logger *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerSession decorates next
func NewBreakerSession(next abstractions.Session, config BreakerConfig, logger *zap.Logger) *BreakerSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreakerSession{
		next:     next,
		config:   config,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (b *BreakerSession) breaker(table string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[table]; ok {
		return cb
	}

	cfg := b.config
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        table,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			b.logger.Warn("Circuit breaker state changed",
				zap.String("table", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: isHealthy,
	})
	b.breakers[table] = cb
	return cb
}

// isHealthy separates store failures from outcomes that say nothing about
// the store's health
func isHealthy(err error) bool {
	switch {
	case err == nil:
		return true
	case stderrors.Is(err, abstractions.ErrRowExists),
		stderrors.Is(err, context.Canceled),
		errors.IsSchemaViolation(err),
		errors.IsUnsupportedQueryShape(err):
		return true
	}
	return false
}

func (b *BreakerSession) run(table string, fn func() error) error {
	_, err := b.breaker(table).Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.NewUnavailableError("table " + table).WithCause(err)
	}
	return err
}

// State reports the breaker state of a table
func (b *BreakerSession) State(table string) gobreaker.State {
	return b.breaker(table).State()
}

func (b *BreakerSession) CreateType(ctx context.Context, ut *schema.UserType) error {
	return b.next.CreateType(ctx, ut)
}

func (b *BreakerSession) CreateTable(ctx context.Context, t *schema.Table) error {
	return b.next.CreateTable(ctx, t)
}

func (b *BreakerSession) Upsert(ctx context.Context, table string, row abstractions.Row) error {
	return b.run(table, func() error { return b.next.Upsert(ctx, table, row) })
}

func (b *BreakerSession) Append(ctx context.Context, table string, row abstractions.Row) error {
	return b.run(table, func() error { return b.next.Append(ctx, table, row) })
}

func (b *BreakerSession) Delete(ctx context.Context, table string, key abstractions.Row) error {
	return b.run(table, func() error { return b.next.Delete(ctx, table, key) })
}

func (b *BreakerSession) Increment(ctx context.Context, table string, key abstractions.Row, deltas map[string]int64) error {
	return b.run(table, func() error { return b.next.Increment(ctx, table, key, deltas) })
}

// Batch is guarded by the breaker of its first table
func (b *BreakerSession) Batch(ctx context.Context, stmts []abstractions.Statement) error {
	if len(stmts) == 0 {
		return b.next.Batch(ctx, stmts)
	}
	return b.run(stmts[0].Table, func() error { return b.next.Batch(ctx, stmts) })
}

func (b *BreakerSession) Query(ctx context.Context, q abstractions.Query) (abstractions.Iterator, error) {
	var it abstractions.Iterator
	err := b.run(q.Table, func() error {
		var err error
		it, err = b.next.Query(ctx, q)
		return err
	})
	return it, err
}

func (b *BreakerSession) Close() error {
	return b.next.Close()
}
