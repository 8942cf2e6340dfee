package telemetry

import (
	"context"
	"fmt"

	"github.com/groceryshare/backend/internal/domain/delivery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys for service metrics. Identifiers are never used as
// attributes: they would make every series unique.
var (
	AttrOutcome = attribute.Key("outcome")
	AttrFrom    = attribute.Key("from")
	AttrTo      = attribute.Key("to")
	AttrJob     = attribute.Key("job")
	AttrResult  = attribute.Key("result")
)

// DeliveryMetrics records claim contention, lifecycle transitions and
// retention sweep results.
type DeliveryMetrics struct {
	claimAttempts metric.Int64Counter
	transitions   metric.Int64Counter
	sweepItems    metric.Int64Counter
	sweepRuns     metric.Int64Counter
}

// NewDeliveryMetrics creates the instruments on meter
func NewDeliveryMetrics(meter metric.Meter) (*DeliveryMetrics, error) {
	claimAttempts, err := meter.Int64Counter("delivery.claim.attempts",
		metric.WithDescription("Claim attempts by outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create claim counter: %w", err)
	}
	transitions, err := meter.Int64Counter("delivery.transitions",
		metric.WithDescription("Delivery request status transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transition counter: %w", err)
	}
	sweepItems, err := meter.Int64Counter("retention.items",
		metric.WithDescription("Records handled by retention jobs"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retention counter: %w", err)
	}
	sweepRuns, err := meter.Int64Counter("retention.runs",
		metric.WithDescription("Retention job runs by result"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retention run counter: %w", err)
	}
	return &DeliveryMetrics{
		claimAttempts: claimAttempts,
		transitions:   transitions,
		sweepItems:    sweepItems,
		sweepRuns:     sweepRuns,
	}, nil
}

// ClaimAttempted counts one claim attempt
func (m *DeliveryMetrics) ClaimAttempted(ctx context.Context, outcome string) {
	m.claimAttempts.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(outcome)))
}

// Transitioned counts one committed status change
func (m *DeliveryMetrics) Transitioned(ctx context.Context, from, to delivery.Status) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(AttrFrom.String(string(from)), AttrTo.String(string(to))))
}

// Swept records a retention job run and how many records it handled
func (m *DeliveryMetrics) Swept(ctx context.Context, job string, affected int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sweepRuns.Add(ctx, 1, metric.WithAttributes(AttrJob.String(job), AttrResult.String(result)))
	if affected > 0 {
		m.sweepItems.Add(ctx, int64(affected), metric.WithAttributes(AttrJob.String(job)))
	}
}
