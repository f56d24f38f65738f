package domain

import (
	"context"

	buyerdomain "github.com/brushline/leadrail/internal/buyer/domain"
	leaddomain "github.com/brushline/leadrail/internal/lead/domain"
	routingdomain "github.com/brushline/leadrail/internal/routing/domain"
)

// Result describes a completed notification attempt.
type Result struct {
	Method    Method
	LatencyMS int64
}

// Notifier pushes a lead to a buyer over whatever channel the buyer is
// configured for.
type Notifier interface {
	Notify(ctx context.Context, buyer buyerdomain.Buyer, lead leaddomain.Lead) (Result, error)
}

// Service routes and delivers a single lead end to end: buyer selection,
// notification, delivery record, delivery counter and charge.
type Service interface {
	Dispatch(ctx context.Context, lead leaddomain.Lead, rctx routingdomain.Context) error
	// List returns delivery attempts newest first, optionally filtered by lead.
	List(ctx context.Context, leadID string, limit int) ([]Delivery, error)
}

// Dispatcher accepts leads for background delivery. Enqueue never blocks the
// caller; a full queue drops the job and reports it through metrics.
type Dispatcher interface {
	Enqueue(lead leaddomain.Lead, rctx routingdomain.Context)
}
