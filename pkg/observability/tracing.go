package observability

import (
	"context"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer wraps X-Ray segments around orchestration work. A nil *Tracer is a
// no-op so tracing can be switched off by configuration.
type Tracer struct {
	serviceName string
}

// NewTracer creates a tracer for the given service name
func NewTracer(serviceName string) *Tracer {
	return &Tracer{serviceName: serviceName}
}

// TraceRun wraps one orchestration run in a segment annotated with the user
func (t *Tracer) TraceRun(ctx context.Context, userID string, fn func(context.Context) error) error {
	if t == nil {
		return fn(ctx)
	}

	ctx, seg := xray.BeginSegment(ctx, fmt.Sprintf("%s.run", t.serviceName))
	seg.AddAnnotation("user_id", userID)
	err := fn(ctx)
	if err != nil {
		seg.AddError(err)
	}
	seg.Close(err)
	return err
}

// TraceStage wraps one workflow stage in a subsegment
func (t *Tracer) TraceStage(ctx context.Context, stage string, fn func(context.Context) error) error {
	if t == nil {
		return fn(ctx)
	}

	ctx, seg := xray.BeginSubsegment(ctx, stage)
	err := fn(ctx)
	if err != nil {
		seg.AddError(err)
	}
	seg.Close(err)
	return err
}

// AddAnnotation adds an indexed annotation to the current segment
func (t *Tracer) AddAnnotation(ctx context.Context, key, value string) {
	if t == nil {
		return
	}
	if seg := xray.GetSegment(ctx); seg != nil {
		seg.AddAnnotation(key, value)
	}
}

// RecordError records an error on the current segment
func (t *Tracer) RecordError(ctx context.Context, err error) {
	if t == nil {
		return
	}
	if seg := xray.GetSegment(ctx); seg != nil {
		seg.AddError(err)
	}
}
