package domain

import (
	"context"
	"errors"
	"time"
)

// ProcessResult summarizes one processing pass over due events.
type ProcessResult struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
}

type Service interface {
	// Schedule enqueues the standard follow-up sequence for a lead in one
	// atomic append.
	Schedule(ctx context.Context, leadID string) error
	// Enqueue appends a single event. Schedule is built on top of it; tools
	// and tests can enqueue ad-hoc events directly.
	Enqueue(ctx context.Context, event Event) error
	// ListPending returns events due at or before now that have not been
	// sent, oldest first.
	ListPending(ctx context.Context, now time.Time) ([]Event, error)
	MarkSent(ctx context.Context, id string) error
	// ProcessDue sends every due follow-up. Send failures are recorded and
	// skipped; the pass itself only fails when the queue cannot be read.
	ProcessDue(ctx context.Context) (ProcessResult, error)
}

var ErrNotFound = errors.New("not_found")
