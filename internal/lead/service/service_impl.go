package service

import (
	"context"
	"strings"
	"time"

	"github.com/brushline/leadrail/internal/analytics"
	"github.com/brushline/leadrail/internal/clock"
	deliverydomain "github.com/brushline/leadrail/internal/delivery/domain"
	dripdomain "github.com/brushline/leadrail/internal/drip/domain"
	"github.com/brushline/leadrail/internal/lead/domain"
	"github.com/brushline/leadrail/internal/lead/repository"
	"github.com/brushline/leadrail/internal/observability/metrics"
	routingdomain "github.com/brushline/leadrail/internal/routing/domain"
	"github.com/brushline/leadrail/internal/scoring"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// duplicateWindow is how far back intake looks for a repeat submitter.
const duplicateWindow = 14 * 24 * time.Hour

type Params struct {
	fx.In

	Repo       *repository.Repository
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Drip       dripdomain.Service
	Dispatcher deliverydomain.Dispatcher
	Metrics    *metrics.Metrics
	Tracker    *analytics.Tracker
}

type Service struct {
	repo       *repository.Repository
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	drip       dripdomain.Service
	dispatcher deliverydomain.Dispatcher
	metrics    *metrics.Metrics
	tracker    *analytics.Tracker
}

func New(p Params) domain.Service {
	return &Service{
		repo:       p.Repo,
		log:        p.Log.Named("lead.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		drip:       p.Drip,
		dispatcher: p.Dispatcher,
		metrics:    p.Metrics,
		tracker:    p.Tracker,
	}
}

func (s *Service) Intake(ctx context.Context, req domain.IntakeRequest) (domain.Lead, error) {
	if missing := firstMissing(req); missing != "" {
		s.tracker.Track(ctx, "lead.validation_error", map[string]any{"missing": missing})
		return domain.Lead{}, domain.ErrMissingField
	}
	if !req.ConsentShare {
		return domain.Lead{}, domain.ErrConsentRequired
	}

	score := scoring.Score(scoring.Input{
		Urgency:    req.Urgency,
		BudgetBand: req.BudgetBand,
		Photos:     req.Photos,
		Addons:     len(req.Addons),
	})

	now := s.clock.Now()
	lead := domain.Lead{
		ID:              s.genID.Generate().String(),
		CreatedAt:       now,
		Name:            strings.TrimSpace(req.Name),
		Email:           strings.TrimSpace(req.Email),
		Phone:           strings.TrimSpace(req.Phone),
		Service:         strings.TrimSpace(req.Service),
		Message:         req.Message,
		Urgency:         req.Urgency,
		BudgetBand:      req.BudgetBand,
		Addons:          req.Addons,
		UTM:             req.UTM,
		Photos:          req.Photos,
		ConsentShare:    req.ConsentShare,
		DuplicateRecent: s.detectDuplicate(ctx, req, now),
		RawScore:        score.Raw,
		NormalizedScore: score.Normalized,
		Status:          domain.StatusNew,
	}

	if err := s.repo.Append(ctx, lead); err != nil {
		return domain.Lead{}, err
	}
	s.metrics.LeadsReceived.Inc()
	s.log.Info("lead accepted",
		zap.String("lead_id", lead.ID),
		zap.String("service", lead.Service),
		zap.Int("score", lead.NormalizedScore),
		zap.Bool("duplicate_recent", lead.DuplicateRecent))

	// Follow-ups and delivery are detached: their failures never reach the
	// submitter once the lead is durable.
	if err := s.drip.Schedule(ctx, lead.ID); err != nil {
		s.log.Error("schedule drip failed",
			zap.String("lead_id", lead.ID), zap.Error(err))
	}
	s.dispatcher.Enqueue(lead, routingdomain.Context{PostalCode: req.PostalCode})

	return lead, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Lead, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req domain.ListLeadsRequest) ([]domain.Lead, error) {
	if req.Status != "" && !domain.ValidStatus(req.Status) {
		return nil, domain.ErrInvalidStatus
	}
	return s.repo.List(ctx, req)
}

func (s *Service) UpdateStatus(ctx context.Context, req domain.UpdateStatusRequest) (domain.Lead, error) {
	if !domain.ValidStatus(req.Status) {
		return domain.Lead{}, domain.ErrInvalidStatus
	}
	return s.repo.UpdateStatus(ctx, req.ID, req.Status)
}

// detectDuplicate flags a lead when the same phone or email (case-insensitive)
// appeared within the duplicate window. Lookup failures only log: duplicates
// are advisory and must not block intake.
func (s *Service) detectDuplicate(ctx context.Context, req domain.IntakeRequest, now time.Time) bool {
	existing, err := s.repo.List(ctx, domain.ListLeadsRequest{})
	if err != nil {
		s.log.Error("duplicate detection failed", zap.Error(err))
		return false
	}

	cutoff := now.Add(-duplicateWindow)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	phone := strings.TrimSpace(req.Phone)
	matches := 0
	for _, l := range existing {
		if l.CreatedAt.Before(cutoff) {
			continue
		}
		if l.Phone == phone || strings.ToLower(l.Email) == email {
			matches++
		}
	}
	if matches == 0 {
		return false
	}
	s.tracker.Track(ctx, "lead.duplicate_detected", map[string]any{
		"phone":        phone,
		"email":        email,
		"recent_count": matches,
	})
	return true
}

func firstMissing(req domain.IntakeRequest) string {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return "name"
	case strings.TrimSpace(req.Email) == "":
		return "email"
	case strings.TrimSpace(req.Phone) == "":
		return "phone"
	case strings.TrimSpace(req.Service) == "":
		return "service"
	case strings.TrimSpace(req.Message) == "":
		return "message"
	default:
		return ""
	}
}
