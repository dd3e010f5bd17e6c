package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metrics publishes orchestration metrics to CloudWatch. A nil *Metrics is a
// no-op so callers never need to guard their instrumentation.
type Metrics struct {
	namespace string
	client    *cloudwatch.Client
}

// NewMetrics creates a metrics instance for the given namespace
func NewMetrics(namespace string, client *cloudwatch.Client) *Metrics {
	return &Metrics{
		namespace: namespace,
		client:    client,
	}
}

// RecordRunStarted counts an orchestration run entering the pipeline
func (m *Metrics) RecordRunStarted(ctx context.Context, userID string) {
	m.putCount(ctx, "RunStarted", 1, map[string]string{"UserID": userID})
}

// RecordRunCompleted counts a run reaching the Completed state
func (m *Metrics) RecordRunCompleted(ctx context.Context, userID string) {
	m.putCount(ctx, "RunCompleted", 1, map[string]string{"UserID": userID})
}

// RecordRunFailed counts a terminal failure, dimensioned by the last reached state
func (m *Metrics) RecordRunFailed(ctx context.Context, lastState string) {
	m.putCount(ctx, "RunFailed", 1, map[string]string{"LastState": lastState})
}

// RecordStageDuration publishes how long one workflow stage took
func (m *Metrics) RecordStageDuration(ctx context.Context, workflow, stage string, d time.Duration) {
	if m == nil || m.client == nil {
		return
	}

	datum := types.MetricDatum{
		MetricName: aws.String("StageDuration"),
		Unit:       types.StandardUnitMilliseconds,
		Value:      aws.Float64(float64(d.Milliseconds())),
		Timestamp:  aws.Time(time.Now()),
		Dimensions: []types.Dimension{
			{Name: aws.String("Workflow"), Value: aws.String(workflow)},
			{Name: aws.String("Stage"), Value: aws.String(stage)},
		},
	}

	// Metric delivery is best-effort; a publish failure never affects the run.
	_, _ = m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []types.MetricDatum{datum},
	})
}

// RecordRetry counts a bounded retry firing, dimensioned by kind
// (contract, verify, capability)
func (m *Metrics) RecordRetry(ctx context.Context, kind, stage string) {
	m.putCount(ctx, "RetryAttempt", 1, map[string]string{"Kind": kind, "Stage": stage})
}

// RecordDroppedGraphEntry counts a node or edge rejected by the consistency engine
func (m *Metrics) RecordDroppedGraphEntry(ctx context.Context, reason string) {
	m.putCount(ctx, "GraphEntryDropped", 1, map[string]string{"Reason": reason})
}

func (m *Metrics) putCount(ctx context.Context, name string, value float64, dims map[string]string) {
	if m == nil || m.client == nil {
		return
	}

	dimensions := make([]types.Dimension, 0, len(dims))
	for k, v := range dims {
		dimensions = append(dimensions, types.Dimension{
			Name:  aws.String(k),
			Value: aws.String(v),
		})
	}

	datum := types.MetricDatum{
		MetricName: aws.String(name),
		Unit:       types.StandardUnitCount,
		Value:      aws.Float64(value),
		Timestamp:  aws.Time(time.Now()),
		Dimensions: dimensions,
	}

	_, _ = m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []types.MetricDatum{datum},
	})
}
