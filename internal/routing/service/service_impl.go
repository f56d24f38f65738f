package service

import (
	"context"
	"strings"

	buyerdomain "github.com/brushline/leadrail/internal/buyer/domain"
	"github.com/brushline/leadrail/internal/clock"
	leaddomain "github.com/brushline/leadrail/internal/lead/domain"
	"github.com/brushline/leadrail/internal/routing/domain"
	"github.com/brushline/leadrail/internal/scoring"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	BuyerSvc buyerdomain.Service
}

type Service struct {
	log      *zap.Logger
	clock    clock.Clock
	buyerSvc buyerdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("routing.service"),
		clock:    p.Clock,
		buyerSvc: p.BuyerSvc,
	}
}

func (s *Service) SelectBuyer(ctx context.Context, lead leaddomain.Lead, rctx domain.Context) (*buyerdomain.Buyer, error) {
	buyers, err := s.buyerSvc.List(ctx)
	if err != nil {
		return nil, err
	}

	today := s.clock.Now().Format(buyerdomain.DateLayout)
	serviceKey := scoring.NormalizeServiceKey(lead.Service)

	var best *buyerdomain.Buyer
	bestPriority := 0
	for i := range buyers {
		b := buyers[i]
		if !b.Active {
			continue
		}
		if lead.NormalizedScore < b.MinScore {
			continue
		}
		if len(b.Services) > 0 && !containsString(b.Services, serviceKey) {
			continue
		}
		delivered := b.EffectiveDeliveredToday(today)
		if b.DailyCap > 0 && delivered >= b.DailyCap {
			continue
		}
		if b.CreditCents < b.PricePerLeadCents {
			continue
		}
		if rctx.PostalCode != "" && len(b.PostalPrefixes) > 0 && !matchesPostal(b.PostalPrefixes, rctx.PostalCode) {
			continue
		}

		// Prefer buyers configured for higher-quality leads; among equally
		// strict buyers, spread volume toward those with fewer deliveries
		// today. Ties keep the earlier candidate: the name-sorted buyer list
		// is the explicit, deterministic tie-break.
		priority := b.MinScore*100 - delivered
		if best == nil || priority > bestPriority {
			best = &buyers[i]
			bestPriority = priority
		}
	}

	if best != nil {
		s.log.Debug("buyer selected",
			zap.String("lead_id", lead.ID),
			zap.String("buyer_id", best.ID),
			zap.Int("priority", bestPriority),
		)
	}
	return best, nil
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func matchesPostal(prefixes []string, postalCode string) bool {
	code := strings.ToUpper(strings.TrimSpace(postalCode))
	for _, p := range prefixes {
		if strings.HasPrefix(code, strings.ToUpper(strings.TrimSpace(p))) {
			return true
		}
	}
	return false
}
