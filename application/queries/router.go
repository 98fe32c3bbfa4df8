package queries

import (
	"context"
	"fmt"

	"killrvideo/domain/config"
	"killrvideo/infrastructure/persistence/abstractions"
	"killrvideo/infrastructure/persistence/schema"
	"killrvideo/pkg/errors"
	"killrvideo/pkg/observability"

	"go.uber.org/zap"
)

// Rows is a lazy, forward-only cursor over the result of one read
type Rows = abstractions.Iterator

// Request is a raw read against a query shape. Equal must name every
// partition column of the serving table and may continue with a prefix of
// its clustering columns; Range may restrict the next clustering column.
type Request struct {
	Shape   schema.QueryShape
	Equal   abstractions.Row
	Range   *abstractions.Range
	Limit   int
	Reverse bool
}

// Shape is a typed read that knows how to express itself as a request
type Shape interface {
	Request() Request
}

// Router resolves reads to the single table that serves their shape. It
// never scans across partitions.
type Router struct {
	registry  *schema.Registry
	validator *abstractions.Validator
	session   abstractions.Session
	config    *config.DomainConfig
	metrics   *observability.Collector
	logger    *zap.Logger
}

// NewRouter creates a query router. metrics may be nil.
func NewRouter(
	reg *schema.Registry,
	session abstractions.Session,
	cfg *config.DomainConfig,
	metrics *observability.Collector,
	logger *zap.Logger,
) *Router {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		registry:  reg,
		validator: abstractions.NewValidator(reg),
		session:   session,
		config:    cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

// Read executes a typed shape
func (r *Router) Read(ctx context.Context, shape Shape) (Rows, error) {
	if shape == nil {
		return nil, errors.NewUnsupportedQueryShapeError("", "no shape given")
	}
	return r.Execute(ctx, shape.Request())
}

// Execute validates req against the serving table and opens a cursor. A
// missing or negative limit reads the default page; larger limits are cut
// to the configured maximum.
func (r *Router) Execute(ctx context.Context, req Request) (Rows, error) {
	table, ok := r.registry.TableFor(req.Shape)
	if !ok {
		r.metrics.ObserveQuery(string(req.Shape), "rejected")
		return nil, errors.NewUnsupportedQueryShapeError(string(req.Shape), "no table serves this shape")
	}

	q := abstractions.Query{
		Table:   table.Name,
		Equal:   req.Equal,
		Range:   req.Range,
		Limit:   r.config.ClampLimit(req.Limit),
		Reverse: req.Reverse,
	}
	if _, err := r.validator.Prepare(q); err != nil {
		r.metrics.ObserveQuery(string(req.Shape), "rejected")
		return nil, err
	}

	it, err := r.session.Query(ctx, q)
	if err != nil {
		r.metrics.ObserveQuery(string(req.Shape), "error")
		r.logger.Error("Query failed",
			zap.String("shape", string(req.Shape)),
			zap.String("table", table.Name),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to read %s: %w", req.Shape, err)
	}
	r.metrics.ObserveQuery(string(req.Shape), "ok")
	return it, nil
}

// Collect drains up to max rows (all rows when max <= 0) and closes rows
func Collect(rows Rows, max int) ([]abstractions.Row, error) {
	return abstractions.Collect(rows, max)
}

// first runs shape and returns its first row, or nil when there is none
func (r *Router) first(ctx context.Context, shape Shape) (abstractions.Row, error) {
	req := shape.Request()
	req.Limit = 1
	rows, err := r.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	out, err := Collect(rows, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", req.Shape, err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// all runs shape and collects every row it yields
func (r *Router) all(ctx context.Context, shape Shape) ([]abstractions.Row, error) {
	rows, err := r.Read(ctx, shape)
	if err != nil {
		return nil, err
	}
	out, err := Collect(rows, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", shape.Request().Shape, err)
	}
	return out, nil
}
