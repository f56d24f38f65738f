package ledgerstore

import (
	"context"
	"time"
)

// Kind names one append-only record stream.
type Kind string

const (
	KindLeads       Kind = "leads"
	KindBuyers      Kind = "buyers"
	KindBillingTxns Kind = "billing_transactions"
	KindDeliveries  Kind = "lead_deliveries"
	KindDripEvents  Kind = "drip_events"
)

// Record is one snapshot to append. Payload is the JSON-encoded entity.
type Record struct {
	Kind     Kind
	EntityID string
	Payload  []byte
}

// Snapshot is one appended record read back from the store. Seq orders the
// global log; for a given (kind, entity id) the snapshot with the highest Seq
// is the entity's current state.
type Snapshot struct {
	Seq       int64
	Kind      Kind
	EntityID  string
	Payload   []byte
	CreatedAt time.Time
}

// Store is the append-only snapshot log behind every entity. All reads
// reconstruct state from history; all writes append. A multi-record Append is
// atomic: either every record in the batch becomes visible or none does.
type Store interface {
	Append(ctx context.Context, records ...Record) error
	// Latest returns the newest snapshot per entity id for a kind.
	Latest(ctx context.Context, kind Kind) ([]Snapshot, error)
	// Get returns the newest snapshot for one entity, or nil when the entity
	// has never been written.
	Get(ctx context.Context, kind Kind, entityID string) (*Snapshot, error)
	// History returns the ordered log for a kind, newest first. limit <= 0
	// returns everything.
	History(ctx context.Context, kind Kind, limit int) ([]Snapshot, error)
}
