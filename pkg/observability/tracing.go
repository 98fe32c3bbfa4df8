package observability

import (
	"context"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer records X-Ray subsegments for commands and fan-out units. Spans are
// only opened beneath a segment already on the context (Lambda, or the X-Ray
// HTTP handler); otherwise the traced function runs untouched.
type Tracer struct {
	prefix  string
	enabled bool
}

// NewTracer creates a tracer whose span names start with prefix
func NewTracer(prefix string, enabled bool) *Tracer {
	return &Tracer{prefix: prefix, enabled: enabled}
}

// Enabled reports whether spans are recorded
func (t *Tracer) Enabled() bool {
	return t != nil && t.enabled
}

// Span runs fn inside a subsegment annotated with attrs and the outcome.
// A nil tracer is valid.
func (t *Tracer) Span(ctx context.Context, name string, attrs map[string]string, fn func(context.Context) error) error {
	if !t.Enabled() || xray.GetSegment(ctx) == nil {
		return fn(ctx)
	}

	ctx, seg := xray.BeginSubsegment(ctx, t.prefix+"."+name)
	if seg == nil {
		return fn(ctx)
	}
	for k, v := range attrs {
		_ = seg.AddAnnotation(k, v)
	}

	err := fn(ctx)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	_ = seg.AddAnnotation("outcome", outcome)
	seg.Close(err)
	return err
}
