package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	billingdomain "github.com/brushline/leadrail/internal/billing/domain"
	"github.com/brushline/leadrail/internal/buyer/domain"
	"github.com/brushline/leadrail/internal/clock"
	"github.com/brushline/leadrail/internal/ledgerstore"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Params struct {
	fx.In

	Store ledgerstore.Store
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	store ledgerstore.Store
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	// locks serializes read-modify-write per buyer so concurrent deliveries
	// cannot lose credit updates.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(p Params) domain.Service {
	return &Service{
		store: p.Store,
		log:   p.Log.Named("buyer.service"),
		genID: p.GenID,
		clock: p.Clock,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateBuyerRequest) (domain.Buyer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Buyer{}, domain.ErrInvalidName
	}
	email := strings.TrimSpace(req.ContactEmail)
	if email == "" || !strings.Contains(email, "@") {
		return domain.Buyer{}, domain.ErrInvalidEmail
	}

	now := s.clock.Now()
	buyer := domain.Buyer{
		ID:                       s.genID.Generate().String(),
		Name:                     name,
		ContactEmail:             email,
		Active:                   req.Active,
		MinScore:                 req.MinScore,
		Services:                 normalizeSet(req.Services),
		PostalPrefixes:           normalizeSet(req.PostalPrefixes),
		DailyCap:                 req.DailyCap,
		DeliveredToday:           0,
		WebhookURL:               strings.TrimSpace(req.WebhookURL),
		PricePerLeadCents:        domain.DefaultPricePerLeadCents,
		CreditCents:              0,
		LowBalanceThresholdCents: domain.DefaultLowBalanceThresholdCents,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if req.PricePerLeadCents != nil {
		buyer.PricePerLeadCents = *req.PricePerLeadCents
	}
	if req.CreditCents != nil {
		buyer.CreditCents = *req.CreditCents
	}
	if req.LowBalanceThresholdCents != nil {
		buyer.LowBalanceThresholdCents = *req.LowBalanceThresholdCents
	}

	if err := s.appendSnapshot(ctx, buyer); err != nil {
		return domain.Buyer{}, err
	}
	return buyer, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Buyer, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Buyer{}, domain.ErrInvalidID
	}
	snap, err := s.store.Get(ctx, ledgerstore.KindBuyers, id)
	if err != nil {
		return domain.Buyer{}, err
	}
	if snap == nil {
		return domain.Buyer{}, domain.ErrNotFound
	}
	return decodeBuyer(snap.Payload)
}

func (s *Service) List(ctx context.Context) ([]domain.Buyer, error) {
	snaps, err := s.store.Latest(ctx, ledgerstore.KindBuyers)
	if err != nil {
		return nil, err
	}
	buyers := make([]domain.Buyer, 0, len(snaps))
	for _, snap := range snaps {
		buyer, err := decodeBuyer(snap.Payload)
		if err != nil {
			s.log.Warn("skipping undecodable buyer snapshot", zap.String("entity_id", snap.EntityID), zap.Error(err))
			continue
		}
		buyers = append(buyers, buyer)
	}
	sort.SliceStable(buyers, func(i, j int) bool { return buyers[i].Name < buyers[j].Name })
	return buyers, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateBuyerRequest) (domain.Buyer, error) {
	unlock := s.lock(id)
	defer unlock()

	buyer, err := s.Get(ctx, id)
	if err != nil {
		return domain.Buyer{}, err
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		buyer.Name = strings.TrimSpace(*req.Name)
	}
	if req.ContactEmail != nil && strings.Contains(*req.ContactEmail, "@") {
		buyer.ContactEmail = strings.TrimSpace(*req.ContactEmail)
	}
	if req.Active != nil {
		buyer.Active = *req.Active
	}
	if req.MinScore != nil {
		buyer.MinScore = *req.MinScore
	}
	if req.Services != nil {
		buyer.Services = normalizeSet(*req.Services)
	}
	if req.PostalPrefixes != nil {
		buyer.PostalPrefixes = normalizeSet(*req.PostalPrefixes)
	}
	if req.DailyCap != nil {
		buyer.DailyCap = *req.DailyCap
	}
	if req.WebhookURL != nil {
		buyer.WebhookURL = strings.TrimSpace(*req.WebhookURL)
	}
	if req.PricePerLeadCents != nil {
		buyer.PricePerLeadCents = *req.PricePerLeadCents
	}
	if req.LowBalanceThresholdCents != nil {
		buyer.LowBalanceThresholdCents = *req.LowBalanceThresholdCents
	}
	if req.LastLowBalanceAlertAt != nil {
		if t, err := time.Parse(time.RFC3339, *req.LastLowBalanceAlertAt); err == nil {
			utc := t.UTC()
			buyer.LastLowBalanceAlertAt = &utc
		}
	}
	buyer.UpdatedAt = s.clock.Now()

	if err := s.appendSnapshot(ctx, buyer); err != nil {
		return domain.Buyer{}, err
	}
	return buyer, nil
}

func (s *Service) IncrementDelivery(ctx context.Context, id string) (domain.Buyer, error) {
	unlock := s.lock(id)
	defer unlock()

	buyer, err := s.Get(ctx, id)
	if err != nil {
		return domain.Buyer{}, err
	}

	today := s.clock.Now().Format(domain.DateLayout)
	if buyer.LastDeliveryDate != today {
		buyer.DeliveredToday = 0
	}
	buyer.DeliveredToday++
	buyer.LastDeliveryDate = today
	buyer.UpdatedAt = s.clock.Now()

	if err := s.appendSnapshot(ctx, buyer); err != nil {
		return domain.Buyer{}, err
	}
	return buyer, nil
}

func (s *Service) AdjustCredit(ctx context.Context, req domain.AdjustCreditRequest) (domain.Buyer, *billingdomain.Transaction, error) {
	unlock := s.lock(req.BuyerID)
	defer unlock()

	buyer, err := s.Get(ctx, req.BuyerID)
	if err != nil {
		return domain.Buyer{}, nil, err
	}

	buyer.CreditCents += req.DeltaCents
	buyer.UpdatedAt = s.clock.Now()

	payload, err := json.Marshal(buyer)
	if err != nil {
		return domain.Buyer{}, nil, fmt.Errorf("encode buyer snapshot: %w", err)
	}
	records := []ledgerstore.Record{{
		Kind:     ledgerstore.KindBuyers,
		EntityID: buyer.ID,
		Payload:  payload,
	}}

	var txn *billingdomain.Transaction
	if req.Entry != nil {
		if !billingdomain.ValidKind(req.Entry.Kind) {
			return domain.Buyer{}, nil, domain.ErrInvalidEntry
		}
		txn = &billingdomain.Transaction{
			ID:                s.genID.Generate().String(),
			BuyerID:           buyer.ID,
			Kind:              req.Entry.Kind,
			AmountCents:       billingdomain.SignedAmount(req.Entry.Kind, req.DeltaCents),
			BalanceAfterCents: buyer.CreditCents,
			Meta:              datatypes.JSONMap(req.Entry.Meta),
			CreatedAt:         s.clock.Now(),
		}
		txnPayload, err := json.Marshal(txn)
		if err != nil {
			return domain.Buyer{}, nil, fmt.Errorf("encode billing transaction: %w", err)
		}
		records = append(records, ledgerstore.Record{
			Kind:     ledgerstore.KindBillingTxns,
			EntityID: txn.ID,
			Payload:  txnPayload,
		})
	}

	// The snapshot and its paired transaction land in one atomic batch so the
	// buyer's balance and the ledger's balance-after can never diverge.
	if err := s.store.Append(ctx, records...); err != nil {
		return domain.Buyer{}, nil, err
	}
	return buyer, txn, nil
}

func (s *Service) appendSnapshot(ctx context.Context, buyer domain.Buyer) error {
	payload, err := json.Marshal(buyer)
	if err != nil {
		return fmt.Errorf("encode buyer snapshot: %w", err)
	}
	return s.store.Append(ctx, ledgerstore.Record{
		Kind:     ledgerstore.KindBuyers,
		EntityID: buyer.ID,
		Payload:  payload,
	})
}

func (s *Service) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// persistedBuyer distinguishes absent monetization fields from explicit zeros
// so snapshots written before monetization existed pick up the defaults.
type persistedBuyer struct {
	domain.Buyer
	PricePerLeadCents        *int64 `json:"price_per_lead_cents"`
	CreditCents              *int64 `json:"credit_cents"`
	LowBalanceThresholdCents *int64 `json:"low_balance_threshold_cents"`
}

func decodeBuyer(payload []byte) (domain.Buyer, error) {
	var p persistedBuyer
	if err := json.Unmarshal(payload, &p); err != nil {
		return domain.Buyer{}, fmt.Errorf("decode buyer snapshot: %w", err)
	}
	buyer := p.Buyer
	buyer.PricePerLeadCents = domain.DefaultPricePerLeadCents
	if p.PricePerLeadCents != nil {
		buyer.PricePerLeadCents = *p.PricePerLeadCents
	}
	buyer.CreditCents = 0
	if p.CreditCents != nil {
		buyer.CreditCents = *p.CreditCents
	}
	buyer.LowBalanceThresholdCents = domain.DefaultLowBalanceThresholdCents
	if p.LowBalanceThresholdCents != nil {
		buyer.LowBalanceThresholdCents = *p.LowBalanceThresholdCents
	}
	return buyer, nil
}

func normalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
