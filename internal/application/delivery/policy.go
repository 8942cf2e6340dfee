package delivery

import (
	"context"
	"time"

	"github.com/groceryshare/backend/internal/domain/delivery"
)

// Policy holds the deployment knobs the claim lifecycle reads
type Policy struct {
	MaxActiveClaims     int
	AdminCancelRequeues bool
	MessagePollInterval time.Duration
}

// DefaultPolicy returns the stock policy values
func DefaultPolicy() Policy {
	return Policy{
		MaxActiveClaims:     2,
		MessagePollInterval: 10 * time.Second,
	}
}

func (p Policy) cancelPolicy() delivery.CancelPolicy {
	return delivery.CancelPolicy{AdminRequeues: p.AdminCancelRequeues}
}

func (p Policy) maxActiveClaims() int64 {
	if p.MaxActiveClaims < 1 {
		return 1
	}
	return int64(p.MaxActiveClaims)
}

// Claim attempt outcomes reported to Metrics
const (
	ClaimOutcomeWon            = "won"
	ClaimOutcomeAlreadyClaimed = "already_claimed"
	ClaimOutcomeCapExceeded    = "cap_exceeded"
	ClaimOutcomeNotApproved    = "not_approved"
	ClaimOutcomeError          = "error"
)

// Metrics receives lifecycle counters. The telemetry package provides the
// OpenTelemetry implementation.
type Metrics interface {
	ClaimAttempted(ctx context.Context, outcome string)
	Transitioned(ctx context.Context, from, to delivery.Status)
}

type noopMetrics struct{}

func (noopMetrics) ClaimAttempted(context.Context, string)                         {}
func (noopMetrics) Transitioned(context.Context, delivery.Status, delivery.Status) {}
