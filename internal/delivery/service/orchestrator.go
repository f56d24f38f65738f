package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/brushline/leadrail/internal/analytics"
	billingdomain "github.com/brushline/leadrail/internal/billing/domain"
	buyerdomain "github.com/brushline/leadrail/internal/buyer/domain"
	"github.com/brushline/leadrail/internal/clock"
	"github.com/brushline/leadrail/internal/delivery/domain"
	leaddomain "github.com/brushline/leadrail/internal/lead/domain"
	"github.com/brushline/leadrail/internal/ledgerstore"
	"github.com/brushline/leadrail/internal/observability/metrics"
	routingdomain "github.com/brushline/leadrail/internal/routing/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Store    ledgerstore.Store
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Router   routingdomain.Service
	Buyers   buyerdomain.Service
	Billing  billingdomain.Service
	Notifier domain.Notifier
	Metrics  *metrics.Metrics
	Tracker  *analytics.Tracker
}

// Orchestrator is the single path from a scored lead to a paid delivery.
// Selection, notification, the delivery record, the counter bump and the
// charge all happen here so no other component can skip a step.
type Orchestrator struct {
	store    ledgerstore.Store
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	router   routingdomain.Service
	buyers   buyerdomain.Service
	billing  billingdomain.Service
	notifier domain.Notifier
	metrics  *metrics.Metrics
	tracker  *analytics.Tracker
}

func New(p Params) domain.Service {
	return &Orchestrator{
		store:    p.Store,
		log:      p.Log.Named("delivery.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		router:   p.Router,
		buyers:   p.Buyers,
		billing:  p.Billing,
		notifier: p.Notifier,
		metrics:  p.Metrics,
		tracker:  p.Tracker,
	}
}

func (o *Orchestrator) Dispatch(ctx context.Context, lead leaddomain.Lead, rctx routingdomain.Context) error {
	buyer, err := o.router.SelectBuyer(ctx, lead, rctx)
	if err != nil {
		o.tracker.Track(ctx, "lead.routing.exception", map[string]any{"lead_id": lead.ID})
		return fmt.Errorf("select buyer: %w", err)
	}
	if buyer == nil {
		o.metrics.RoutingOutcomes.WithLabelValues(metrics.RoutingOutcomeNoRoute).Inc()
		o.tracker.Track(ctx, "lead.routing.none", map[string]any{
			"lead_id": lead.ID,
			"score":   lead.NormalizedScore,
		})
		o.log.Info("no buyer matched lead",
			zap.String("lead_id", lead.ID),
			zap.Int("score", lead.NormalizedScore))
		return nil
	}

	res, notifyErr := o.notifier.Notify(ctx, *buyer, lead)
	if notifyErr != nil {
		o.recordAttempt(ctx, lead, *buyer, res, notifyErr)
		o.metrics.RoutingOutcomes.WithLabelValues(metrics.RoutingOutcomeFailed).Inc()
		o.tracker.Track(ctx, "lead.routing.error", map[string]any{
			"lead_id":  lead.ID,
			"buyer_id": buyer.ID,
		})
		return fmt.Errorf("notify buyer %s: %w", buyer.ID, notifyErr)
	}

	if _, err := o.buyers.IncrementDelivery(ctx, buyer.ID); err != nil {
		o.log.Error("increment delivery failed",
			zap.String("buyer_id", buyer.ID), zap.Error(err))
	}
	if buyer.PricePerLeadCents > 0 {
		txn, chargeErr := o.billing.ChargeLead(ctx, billingdomain.ChargeLeadRequest{
			BuyerID:    buyer.ID,
			PriceCents: buyer.PricePerLeadCents,
			LeadID:     lead.ID,
			Score:      lead.NormalizedScore,
		})
		if chargeErr != nil {
			o.log.Error("lead charge failed",
				zap.String("buyer_id", buyer.ID),
				zap.String("lead_id", lead.ID),
				zap.Error(chargeErr))
		} else {
			o.metrics.ChargesTotal.Inc()
			o.metrics.ChargedCents.Add(float64(buyer.PricePerLeadCents))
			o.log.Info("lead charged",
				zap.String("buyer_id", buyer.ID),
				zap.String("lead_id", lead.ID),
				zap.Int64("amount_cents", txn.AmountCents),
				zap.Int64("balance_after_cents", txn.BalanceAfterCents))
		}
	}

	o.recordAttempt(ctx, lead, *buyer, res, nil)
	o.metrics.RoutingOutcomes.WithLabelValues(metrics.RoutingOutcomeDelivered).Inc()
	o.tracker.Track(ctx, "lead.routing.delivered", map[string]any{
		"lead_id":  lead.ID,
		"buyer_id": buyer.ID,
		"method":   string(res.Method),
	})
	return nil
}

func (o *Orchestrator) List(ctx context.Context, leadID string, limit int) ([]domain.Delivery, error) {
	fetch := limit
	if leadID != "" {
		fetch = 0
	}
	snaps, err := o.store.History(ctx, ledgerstore.KindDeliveries, fetch)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}

	out := make([]domain.Delivery, 0, len(snaps))
	for _, snap := range snaps {
		var d domain.Delivery
		if err := json.Unmarshal(snap.Payload, &d); err != nil {
			o.log.Warn("skipping undecodable delivery snapshot",
				zap.Int64("seq", snap.Seq), zap.Error(err))
			continue
		}
		if leadID != "" && d.LeadID != leadID {
			continue
		}
		out = append(out, d)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (o *Orchestrator) recordAttempt(ctx context.Context, lead leaddomain.Lead, buyer buyerdomain.Buyer, res domain.Result, attemptErr error) {
	d := domain.Delivery{
		ID:        o.genID.Generate().String(),
		LeadID:    lead.ID,
		BuyerID:   buyer.ID,
		Method:    res.Method,
		Status:    domain.StatusSent,
		LatencyMS: res.LatencyMS,
		CreatedAt: o.clock.Now(),
	}
	if attemptErr != nil {
		d.Status = domain.StatusFailed
		d.Error = attemptErr.Error()
	}

	payload, err := json.Marshal(d)
	if err != nil {
		o.log.Error("marshal delivery failed", zap.Error(err))
		return
	}
	if err := o.store.Append(ctx, ledgerstore.Record{
		Kind:     ledgerstore.KindDeliveries,
		EntityID: d.ID,
		Payload:  payload,
	}); err != nil {
		o.log.Error("append delivery failed",
			zap.String("delivery_id", d.ID), zap.Error(err))
	}
	o.metrics.Deliveries.WithLabelValues(string(d.Method), string(d.Status)).Inc()
}
