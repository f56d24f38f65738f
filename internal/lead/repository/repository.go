package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/brushline/leadrail/internal/lead/domain"
	"github.com/brushline/leadrail/internal/ledgerstore"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Store ledgerstore.Store
	Log   *zap.Logger
}

// Repository reads and appends lead snapshots. It carries no intake logic so
// downstream consumers (drip processing, admin reads) can depend on it
// without pulling in the whole intake pipeline.
type Repository struct {
	store ledgerstore.Store
	log   *zap.Logger
}

func New(p Params) *Repository {
	return &Repository{
		store: p.Store,
		log:   p.Log.Named("lead.repository"),
	}
}

func (r *Repository) Append(ctx context.Context, lead domain.Lead) error {
	payload, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("marshal lead: %w", err)
	}
	return r.store.Append(ctx, ledgerstore.Record{
		Kind:     ledgerstore.KindLeads,
		EntityID: lead.ID,
		Payload:  payload,
	})
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Lead, error) {
	if id == "" {
		return domain.Lead{}, domain.ErrInvalidID
	}
	snap, err := r.store.Get(ctx, ledgerstore.KindLeads, id)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("load lead %s: %w", id, err)
	}
	if snap == nil {
		return domain.Lead{}, domain.ErrNotFound
	}
	var lead domain.Lead
	if err := json.Unmarshal(snap.Payload, &lead); err != nil {
		return domain.Lead{}, fmt.Errorf("decode lead %s: %w", id, err)
	}
	return lead, nil
}

// List returns current lead states newest first, with optional status,
// minimum score and count filters.
func (r *Repository) List(ctx context.Context, req domain.ListLeadsRequest) ([]domain.Lead, error) {
	snaps, err := r.store.Latest(ctx, ledgerstore.KindLeads)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}

	out := make([]domain.Lead, 0, len(snaps))
	for _, snap := range snaps {
		var lead domain.Lead
		if err := json.Unmarshal(snap.Payload, &lead); err != nil {
			r.log.Warn("skipping undecodable lead snapshot",
				zap.Int64("seq", snap.Seq), zap.Error(err))
			continue
		}
		if req.Status != "" && lead.Status != req.Status {
			continue
		}
		if req.MinScore > 0 && lead.NormalizedScore < req.MinScore {
			continue
		}
		out = append(out, lead)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

// UpdateStatus appends a snapshot of the lead with the new status. The status
// value itself is validated by callers.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status domain.Status) (domain.Lead, error) {
	lead, err := r.Get(ctx, id)
	if err != nil {
		return domain.Lead{}, err
	}
	lead.Status = status
	if err := r.Append(ctx, lead); err != nil {
		return domain.Lead{}, fmt.Errorf("append lead %s: %w", id, err)
	}
	return lead, nil
}
