package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/brushline/leadrail/internal/billing/domain"
	buyerdomain "github.com/brushline/leadrail/internal/buyer/domain"
	"github.com/brushline/leadrail/internal/clock"
	"github.com/brushline/leadrail/internal/config"
	"github.com/brushline/leadrail/internal/ledgerstore"
	"github.com/brushline/leadrail/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const lowBalanceAlertInterval = 24 * time.Hour

type Params struct {
	fx.In

	Store    ledgerstore.Store
	Log      *zap.Logger
	Clock    clock.Clock
	Config   config.Config
	BuyerSvc buyerdomain.Service
	Email    email.Provider
}

type Service struct {
	store    ledgerstore.Store
	log      *zap.Logger
	clock    clock.Clock
	cfg      config.Config
	buyerSvc buyerdomain.Service
	email    email.Provider
}

func New(p Params) domain.Service {
	return &Service{
		store:    p.Store,
		log:      p.Log.Named("billing.service"),
		clock:    p.Clock,
		cfg:      p.Config,
		buyerSvc: p.BuyerSvc,
		email:    p.Email,
	}
}

func (s *Service) Fund(ctx context.Context, req domain.FundRequest) (domain.Transaction, error) {
	if req.AmountCents <= 0 {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}
	meta := map[string]any{}
	if strings.TrimSpace(req.Note) != "" {
		meta["note"] = strings.TrimSpace(req.Note)
	}
	_, txn, err := s.buyerSvc.AdjustCredit(ctx, buyerdomain.AdjustCreditRequest{
		BuyerID:    req.BuyerID,
		DeltaCents: req.AmountCents,
		Entry:      &domain.Entry{Kind: domain.KindFund, Meta: meta},
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	s.log.Info("buyer funded",
		zap.String("buyer_id", req.BuyerID),
		zap.Int64("amount_cents", req.AmountCents),
		zap.Int64("balance_after_cents", txn.BalanceAfterCents),
	)
	return *txn, nil
}

func (s *Service) Refund(ctx context.Context, req domain.RefundRequest) (domain.Transaction, error) {
	if req.AmountCents <= 0 {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}
	meta := map[string]any{}
	if strings.TrimSpace(req.Note) != "" {
		meta["note"] = strings.TrimSpace(req.Note)
	}
	if strings.TrimSpace(req.LeadID) != "" {
		meta["reference_lead_id"] = strings.TrimSpace(req.LeadID)
	}
	_, txn, err := s.buyerSvc.AdjustCredit(ctx, buyerdomain.AdjustCreditRequest{
		BuyerID:    req.BuyerID,
		DeltaCents: req.AmountCents,
		Entry:      &domain.Entry{Kind: domain.KindRefund, Meta: meta},
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	s.log.Info("buyer refunded",
		zap.String("buyer_id", req.BuyerID),
		zap.Int64("amount_cents", req.AmountCents),
	)
	return *txn, nil
}

func (s *Service) ChargeLead(ctx context.Context, req domain.ChargeLeadRequest) (domain.Transaction, error) {
	if req.PriceCents <= 0 {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}
	_, txn, err := s.buyerSvc.AdjustCredit(ctx, buyerdomain.AdjustCreditRequest{
		BuyerID:    req.BuyerID,
		DeltaCents: -req.PriceCents,
		Entry: &domain.Entry{
			Kind: domain.KindLeadCharge,
			Meta: map[string]any{"lead_id": req.LeadID, "score": req.Score},
		},
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	s.log.Info("lead charged",
		zap.String("buyer_id", req.BuyerID),
		zap.String("lead_id", req.LeadID),
		zap.Int64("amount_cents", txn.AmountCents),
		zap.Int64("balance_after_cents", txn.BalanceAfterCents),
	)
	return *txn, nil
}

func (s *Service) List(ctx context.Context, req domain.ListTransactionsRequest) ([]domain.Transaction, error) {
	// Transactions are append-once, so the raw history is already one row per
	// transaction, newest first. The buyer filter has to scan before capping.
	limit := req.Limit
	if req.BuyerID != "" {
		limit = 0
	}
	snaps, err := s.store.History(ctx, ledgerstore.KindBillingTxns, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Transaction, 0, len(snaps))
	for _, snap := range snaps {
		var txn domain.Transaction
		if err := json.Unmarshal(snap.Payload, &txn); err != nil {
			s.log.Warn("skipping undecodable billing transaction", zap.String("entity_id", snap.EntityID), zap.Error(err))
			continue
		}
		if req.BuyerID != "" && txn.BuyerID != req.BuyerID {
			continue
		}
		out = append(out, txn)
		if req.Limit > 0 && len(out) >= req.Limit {
			break
		}
	}
	return out, nil
}

func (s *Service) CheckLowBalances(ctx context.Context) ([]string, error) {
	buyers, err := s.buyerSvc.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	alerted := make([]string, 0)
	for _, b := range buyers {
		if b.CreditCents > b.LowBalanceThresholdCents {
			continue
		}
		if b.LastLowBalanceAlertAt != nil && now.Sub(*b.LastLowBalanceAlertAt) <= lowBalanceAlertInterval {
			continue
		}

		subject := fmt.Sprintf("Low Balance: $%.2f remaining", float64(b.CreditCents)/100)
		body := fmt.Sprintf(
			"Hi %s,\n\nYour prepaid balance is low ($%.2f). Please top up to avoid lead pauses.\nThreshold: $%.2f\n\nThanks",
			b.Name, float64(b.CreditCents)/100, float64(b.LowBalanceThresholdCents)/100,
		)
		if err := s.email.Send(ctx, []string{b.ContactEmail}, subject, body); err != nil {
			s.log.Warn("low balance email failed", zap.String("buyer_id", b.ID), zap.Error(err))
			continue
		}
		if operator := strings.TrimSpace(s.cfg.Email.OperatorTo); operator != "" {
			opSubject := fmt.Sprintf("Buyer Low Balance: %s $%.2f", b.Name, float64(b.CreditCents)/100)
			opBody := fmt.Sprintf("Buyer %s (id %s) balance $%.2f <= threshold $%.2f",
				b.Name, b.ID, float64(b.CreditCents)/100, float64(b.LowBalanceThresholdCents)/100)
			if err := s.email.Send(ctx, []string{operator}, opSubject, opBody); err != nil {
				s.log.Warn("operator low balance email failed", zap.String("buyer_id", b.ID), zap.Error(err))
			}
		}

		stamp := now.UTC().Format(time.RFC3339)
		if _, err := s.buyerSvc.Update(ctx, b.ID, buyerdomain.UpdateBuyerRequest{LastLowBalanceAlertAt: &stamp}); err != nil {
			s.log.Warn("failed to stamp low balance alert", zap.String("buyer_id", b.ID), zap.Error(err))
			continue
		}
		alerted = append(alerted, b.ID)
	}
	return alerted, nil
}
