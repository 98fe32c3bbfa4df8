package fanout

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"killrvideo/application/counters"
	"killrvideo/application/ports"
	"killrvideo/infrastructure/persistence/abstractions"
	"killrvideo/infrastructure/persistence/schema"
	"killrvideo/pkg/errors"
	"killrvideo/pkg/observability"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config holds coordinator settings
type Config struct {
	// WriteTimeout bounds each physical write, not the whole mutation
	WriteTimeout time.Duration

	// SubmissionTTL is how long a rating submission id is remembered
	SubmissionTTL time.Duration

	// MaxConcurrentWrites bounds the in-flight units of one mutation
	MaxConcurrentWrites int
}

// DefaultConfig returns the default coordinator settings
func DefaultConfig() Config {
	return Config{
		WriteTimeout:        5 * time.Second,
		SubmissionTTL:       24 * time.Hour,
		MaxConcurrentWrites: 16,
	}
}

// Coordinator turns logical mutations into physical writes. Writes of one
// mutation run concurrently; a failed independent write never undoes the
// others, and the outcome names exactly which targets need a retry.
type Coordinator struct {
	session   abstractions.Session
	validator *abstractions.Validator
	counters  *counters.Aggregator
	dedup     ports.Deduplicator
	publisher ports.EventPublisher
	tracer    *observability.Tracer
	metrics   *observability.Collector
	config    Config
	logger    *zap.Logger
	now       func() time.Time
}

// NewCoordinator creates a coordinator. dedup, publisher, tracer and metrics
// may be nil.
func NewCoordinator(
	reg *schema.Registry,
	session abstractions.Session,
	aggregator *counters.Aggregator,
	dedup ports.Deduplicator,
	publisher ports.EventPublisher,
	tracer *observability.Tracer,
	metrics *observability.Collector,
	config Config,
	logger *zap.Logger,
) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = ports.NoopPublisher{}
	}
	if aggregator == nil {
		aggregator = counters.NewAggregator(session, logger)
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if config.SubmissionTTL <= 0 {
		config.SubmissionTTL = DefaultConfig().SubmissionTTL
	}
	if config.MaxConcurrentWrites <= 0 {
		config.MaxConcurrentWrites = DefaultConfig().MaxConcurrentWrites
	}
	return &Coordinator{
		session:   session,
		validator: abstractions.NewValidator(reg),
		counters:  aggregator,
		dedup:     dedup,
		publisher: publisher,
		tracer:    tracer,
		metrics:   metrics,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// Apply plans and applies m. The outcome is returned whenever a plan was
// built, together with a partial fan-out or atomic group error if any
// target failed. Precondition and schema errors return no outcome and
// leave the store untouched.
func (c *Coordinator) Apply(ctx context.Context, m Mutation) (*Outcome, error) {
	plan, err := c.Plan(ctx, m)
	if err != nil {
		c.metrics.ObserveMutation(m.Name(), "rejected")
		return nil, err
	}

	outcome := newOutcome(plan)
	c.run(ctx, plan, plan.Units, outcome)
	// a unique key claimed by someone else between planning and writing
	if err := outcome.rejection(); err != nil {
		c.metrics.ObserveMutation(m.Name(), "rejected")
		return nil, err
	}
	return outcome, c.finish(ctx, outcome)
}

// Retry re-applies only the failed units of a previous outcome. Atomic groups
// are always retried whole.
func (c *Coordinator) Retry(ctx context.Context, prev *Outcome) (*Outcome, error) {
	if prev == nil || prev.plan == nil {
		return nil, errors.NewValidationError("outcome has no plan to retry")
	}
	units := prev.failedUnits()
	outcome := &Outcome{
		Mutation: prev.Mutation,
		Results:  make(map[string]TargetResult, len(prev.Results)),
		plan:     prev.plan,
	}
	outcome.record(prev.Results)
	if len(units) == 0 {
		return outcome, nil
	}

	c.logger.Info("Retrying failed fan-out targets",
		zap.String("mutation", prev.Mutation),
		zap.Strings("targets", prev.Failed()),
	)
	c.run(ctx, prev.plan, units, outcome)
	return outcome, c.finish(ctx, outcome)
}

func (c *Coordinator) finish(ctx context.Context, outcome *Outcome) error {
	err := outcome.Err()
	c.metrics.ObserveMutation(outcome.Mutation, outcome.result())
	if err != nil {
		c.logger.Warn("Fan-out incomplete",
			zap.String("mutation", outcome.Mutation),
			zap.Strings("failed", outcome.Failed()),
			zap.Strings("applied", outcome.Applied()),
			zap.Error(err),
		)
		return err
	}

	if evts := outcome.plan.Events; len(evts) > 0 {
		if err := c.publisher.PublishBatch(ctx, evts); err != nil {
			// Log error but don't fail - the writes are durable
			c.logger.Error("Failed to publish domain events",
				zap.String("mutation", outcome.Mutation),
				zap.Int("event_count", len(evts)),
				zap.Error(err),
			)
		}
	}
	c.logger.Debug("Fan-out applied",
		zap.String("mutation", outcome.Mutation),
		zap.Int("targets", len(outcome.Results)),
	)
	return nil
}

// run applies the gate units in order, then every other unit concurrently,
// and records their results in outcome. A failed gate leaves the remaining
// units unattempted and reported as failed.
func (c *Coordinator) run(ctx context.Context, plan *Plan, units []Unit, outcome *Outcome) {
	var rest []Unit
	for _, u := range units {
		if !u.Gate {
			rest = append(rest, u)
			continue
		}
		outcome.record(c.runUnit(ctx, plan.Mutation, u))
		if outcome.Results[u.Writes[0].Target].Status == StatusFailed {
			blocked := fmt.Errorf("not attempted: %s failed", u.Name)
			for _, v := range units {
				if !v.Gate {
					outcome.record(unitResults(v, failed(blocked)))
				}
			}
			return
		}
	}

	results := make([]map[string]TargetResult, len(rest))
	g := new(errgroup.Group)
	g.SetLimit(c.config.MaxConcurrentWrites)
	for i, u := range rest {
		g.Go(func() error {
			results[i] = c.runUnit(ctx, plan.Mutation, u)
			return nil
		})
	}
	// units report failures through their results, never through the group
	_ = g.Wait()
	for _, r := range results {
		outcome.record(r)
	}
}

func (c *Coordinator) runUnit(ctx context.Context, mutation string, u Unit) map[string]TargetResult {
	results := make(map[string]TargetResult, len(u.Writes))
	start := time.Now()

	var result TargetResult
	_ = c.tracer.Span(ctx, "fanout."+u.Name, map[string]string{"mutation": mutation, "unit": u.Name}, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.config.WriteTimeout)
		defer cancel()

		switch {
		case u.Atomic:
			result = c.applyBatch(ctx, u)
		case u.Writes[0].Stmt.Kind == abstractions.KindIncrement:
			result = c.applyCounter(ctx, u)
		default:
			result = c.applyWrite(ctx, u)
		}
		return result.err
	})

	elapsed := time.Since(start)
	for _, w := range u.Writes {
		results[w.Target] = result
		c.metrics.ObserveWrite(mutation, w.Stmt.Table, string(result.Status), elapsed)
	}
	return results
}

func unitResults(u Unit, r TargetResult) map[string]TargetResult {
	out := make(map[string]TargetResult, len(u.Writes))
	for _, w := range u.Writes {
		out[w.Target] = r
	}
	return out
}

// storeError classifies a failed write. Errors the store already typed,
// such as an open breaker, are kept.
func storeError(op string, st abstractions.Statement, err error) error {
	if errors.GetAppError(err) != nil {
		return err
	}
	name := op + " " + st.Table
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewTimeoutError(name).WithCause(err)
	}
	return errors.NewDatabaseError(name, err)
}

func (c *Coordinator) applyWrite(ctx context.Context, u Unit) TargetResult {
	st := u.Writes[0].Stmt
	err := abstractions.Exec(ctx, c.session, st)
	if err == nil {
		return applied()
	}
	if st.Kind != abstractions.KindAppend || !stderrors.Is(err, abstractions.ErrRowExists) {
		return failed(storeError(st.Kind.String(), st, err))
	}
	if u.Claim == nil {
		// the row was appended by an earlier attempt
		return applied()
	}
	return c.checkClaim(ctx, st, u.Claim)
}

// checkClaim reads back the row an append found in place and compares its
// owner with the claim
func (c *Coordinator) checkClaim(ctx context.Context, st abstractions.Statement, claim *Claim) TargetResult {
	table, ok := c.validator.Registry().Table(st.Table)
	if !ok {
		return failed(errors.NewSchemaViolationError(st.Table, "unknown table"))
	}
	key := make(abstractions.Row, len(table.PrimaryKey()))
	for _, col := range table.PrimaryKey() {
		key[col] = st.Row[col]
	}
	row, err := c.lookup(ctx, st.Table, key)
	if err != nil {
		return failed(storeError("read", st, err))
	}
	if row != nil && row[claim.Column] == claim.Owner {
		return applied()
	}
	return failed(errors.NewConflictError(fmt.Sprintf("%s is already claimed in %s", describeKey(key), st.Table)).
		WithCode("KEY_CLAIMED"))
}

func describeKey(key abstractions.Row) string {
	if len(key) == 1 {
		for _, v := range key {
			return fmt.Sprint(v)
		}
	}
	return fmt.Sprint(map[string]interface{}(key))
}

func (c *Coordinator) applyBatch(ctx context.Context, u Unit) TargetResult {
	stmts := make([]abstractions.Statement, 0, len(u.Writes))
	for _, w := range u.Writes {
		stmts = append(stmts, w.Stmt)
	}
	err := c.session.Batch(ctx, stmts)
	if err == nil || stderrors.Is(err, abstractions.ErrRowExists) {
		return applied()
	}
	return failed(storeError("batch", stmts[0], err))
}

// applyCounter claims the submission before incrementing and gives the
// claim back if the increment fails, so a retry can apply it.
func (c *Coordinator) applyCounter(ctx context.Context, u Unit) TargetResult {
	st := u.Writes[0].Stmt
	if u.SubmissionID == "" || c.dedup == nil {
		if err := c.counters.Apply(ctx, st); err != nil {
			return failed(storeError("increment", st, err))
		}
		return applied()
	}

	claimed, err := c.dedup.Claim(ctx, u.SubmissionID, c.config.SubmissionTTL)
	if err != nil {
		return failed(errors.NewExternalError("submission ledger", err))
	}
	if !claimed {
		c.logger.Info("Skipping duplicate rating submission", zap.String("submission_id", u.SubmissionID))
		return skipped(errors.NewDuplicateDeliveryError(u.SubmissionID))
	}

	if err := c.counters.Apply(ctx, st); err != nil {
		if relErr := c.dedup.Release(context.WithoutCancel(ctx), u.SubmissionID); relErr != nil {
			c.logger.Error("Failed to release submission claim",
				zap.String("submission_id", u.SubmissionID),
				zap.Error(relErr),
			)
			err = fmt.Errorf("%w (claim release failed: %v)", err, relErr)
		}
		return failed(storeError("increment", st, err))
	}
	return applied()
}
