package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/brushline/leadrail/internal/analytics"
	"github.com/brushline/leadrail/internal/clock"
	"github.com/brushline/leadrail/internal/config"
	"github.com/brushline/leadrail/internal/drip/domain"
	leaddomain "github.com/brushline/leadrail/internal/lead/domain"
	leadrepository "github.com/brushline/leadrail/internal/lead/repository"
	"github.com/brushline/leadrail/internal/ledgerstore"
	"github.com/brushline/leadrail/internal/observability/metrics"
	"github.com/brushline/leadrail/internal/providers/email"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Store   ledgerstore.Store
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Config  config.Config
	Leads   *leadrepository.Repository
	Email   email.Provider
	Metrics *metrics.Metrics
	Tracker *analytics.Tracker
}

type Service struct {
	store   ledgerstore.Store
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	company string
	leads   *leadrepository.Repository
	email   email.Provider
	metrics *metrics.Metrics
	tracker *analytics.Tracker
}

func New(p Params) domain.Service {
	return &Service{
		store:   p.Store,
		log:     p.Log.Named("drip.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		company: p.Config.Email.CompanyName,
		leads:   p.Leads,
		email:   p.Email,
		metrics: p.Metrics,
		tracker: p.Tracker,
	}
}

func (s *Service) Schedule(ctx context.Context, leadID string) error {
	now := s.clock.Now()
	events := []domain.Event{
		{
			ID:       s.genID.Generate().String(),
			LeadID:   leadID,
			RunAt:    now.Add(domain.Follow24hDelay),
			Template: domain.TemplateFollow24h,
		},
		{
			ID:       s.genID.Generate().String(),
			LeadID:   leadID,
			RunAt:    now.Add(domain.Follow72hDelay),
			Template: domain.TemplateFollow72h,
		},
	}

	records := make([]ledgerstore.Record, 0, len(events))
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal drip event: %w", err)
		}
		records = append(records, ledgerstore.Record{
			Kind:     ledgerstore.KindDripEvents,
			EntityID: ev.ID,
			Payload:  payload,
		})
	}
	if err := s.store.Append(ctx, records...); err != nil {
		return fmt.Errorf("enqueue drip events: %w", err)
	}
	return nil
}

func (s *Service) Enqueue(ctx context.Context, ev domain.Event) error {
	if !domain.ValidTemplate(ev.Template) {
		return fmt.Errorf("unknown drip template %q", ev.Template)
	}
	if ev.ID == "" {
		ev.ID = s.genID.Generate().String()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal drip event: %w", err)
	}
	return s.store.Append(ctx, ledgerstore.Record{
		Kind:     ledgerstore.KindDripEvents,
		EntityID: ev.ID,
		Payload:  payload,
	})
}

func (s *Service) ListPending(ctx context.Context, now time.Time) ([]domain.Event, error) {
	snaps, err := s.store.Latest(ctx, ledgerstore.KindDripEvents)
	if err != nil {
		return nil, fmt.Errorf("list drip events: %w", err)
	}

	out := make([]domain.Event, 0)
	for _, snap := range snaps {
		var ev domain.Event
		if err := json.Unmarshal(snap.Payload, &ev); err != nil {
			s.log.Warn("skipping undecodable drip snapshot",
				zap.Int64("seq", snap.Seq), zap.Error(err))
			continue
		}
		if ev.SentAt != nil || ev.RunAt.After(now) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunAt.Before(out[j].RunAt) })
	return out, nil
}

func (s *Service) MarkSent(ctx context.Context, id string) error {
	snap, err := s.store.Get(ctx, ledgerstore.KindDripEvents, id)
	if err != nil {
		return fmt.Errorf("load drip event %s: %w", id, err)
	}
	if snap == nil {
		return domain.ErrNotFound
	}

	var ev domain.Event
	if err := json.Unmarshal(snap.Payload, &ev); err != nil {
		return fmt.Errorf("decode drip event %s: %w", id, err)
	}
	if ev.SentAt != nil {
		return nil
	}
	now := s.clock.Now()
	ev.SentAt = &now

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal drip event: %w", err)
	}
	return s.store.Append(ctx, ledgerstore.Record{
		Kind:     ledgerstore.KindDripEvents,
		EntityID: ev.ID,
		Payload:  payload,
	})
}

func (s *Service) ProcessDue(ctx context.Context) (domain.ProcessResult, error) {
	pending, err := s.ListPending(ctx, s.clock.Now())
	if err != nil {
		return domain.ProcessResult{}, err
	}
	result := domain.ProcessResult{Processed: len(pending)}
	if len(pending) == 0 {
		return result, nil
	}

	leads, err := s.leads.List(ctx, leaddomain.ListLeadsRequest{})
	if err != nil {
		return result, fmt.Errorf("load leads: %w", err)
	}
	byID := make(map[string]leaddomain.Lead, len(leads))
	for _, l := range leads {
		byID[l.ID] = l
	}

	for _, ev := range pending {
		lead, ok := byID[ev.LeadID]
		if !ok {
			// The lead was never persisted or the queue outlived it; retire
			// the event so it stops coming due.
			if err := s.MarkSent(ctx, ev.ID); err != nil {
				s.log.Error("retire orphan drip event failed",
					zap.String("event_id", ev.ID), zap.Error(err))
			}
			continue
		}

		subject, body := s.compose(ev.Template, lead)
		if err := s.email.Send(ctx, []string{lead.Email}, subject, body); err != nil {
			s.metrics.DripEvents.WithLabelValues(string(ev.Template), "error").Inc()
			s.tracker.Track(ctx, "lead.drip_error", map[string]any{
				"id":      ev.ID,
				"lead_id": ev.LeadID,
			})
			s.log.Error("drip send failed",
				zap.String("event_id", ev.ID),
				zap.String("lead_id", ev.LeadID),
				zap.Error(err))
			continue
		}

		if err := s.MarkSent(ctx, ev.ID); err != nil {
			s.log.Error("mark drip event sent failed",
				zap.String("event_id", ev.ID), zap.Error(err))
			continue
		}
		result.Sent++
		s.metrics.DripEvents.WithLabelValues(string(ev.Template), "sent").Inc()
		s.tracker.Track(ctx, "lead.drip_sent", map[string]any{
			"template": string(ev.Template),
			"lead_id":  lead.ID,
			"score":    lead.NormalizedScore,
		})

		if lead.Status == leaddomain.StatusNew {
			if _, err := s.leads.UpdateStatus(ctx, lead.ID, leaddomain.StatusContacted); err != nil {
				s.log.Warn("drip status bump failed",
					zap.String("lead_id", lead.ID), zap.Error(err))
			}
		}
	}
	return result, nil
}

func (s *Service) compose(template domain.Template, lead leaddomain.Lead) (string, string) {
	if template == domain.TemplateFollow24h {
		subject := fmt.Sprintf("Following up on your %s project", lead.Service)
		body := fmt.Sprintf(
			"Hi %s,\n\nJust a quick follow-up on your %s project inquiry. Happy to answer any questions or schedule a quick call.\n\nThanks!\n%s",
			lead.Name, lead.Service, s.company)
		return subject, body
	}
	subject := fmt.Sprintf("Still interested in a quote for %s?", lead.Service)
	body := fmt.Sprintf(
		"Hi %s,\n\nChecking back regarding your %s project. If you're still exploring quotes we can usually get you a firm estimate fast. Just reply here and we can move forward.\n\n%s",
		lead.Name, lead.Service, s.company)
	return subject, body
}
