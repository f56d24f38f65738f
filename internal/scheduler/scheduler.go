package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	billingdomain "github.com/brushline/leadrail/internal/billing/domain"
	"github.com/brushline/leadrail/internal/clock"
	dripdomain "github.com/brushline/leadrail/internal/drip/domain"
	"github.com/brushline/leadrail/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const jobTimeout = 30 * time.Second

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	DripSvc    dripdomain.Service
	BillingSvc billingdomain.Service
	Metrics    *metrics.Metrics
	Config     Config `optional:"true"`
}

// Scheduler drives the periodic background work: sending due drip follow-ups
// and checking buyer balances. One ticker, sequential jobs, errors joined so
// a failing job never hides the others.
type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	dripSvc    dripdomain.Service
	billingSvc billingdomain.Service
	metrics    *metrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.DripSvc == nil || p.BillingSvc == nil || p.Metrics == nil {
		return nil, errors.New("scheduler: missing dependency")
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler"),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		dripSvc:    p.DripSvc,
		billingSvc: p.BillingSvc,
		metrics:    p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	err := fn(ctx)
	s.metrics.ObserveJob(name, time.Since(start), err)
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err))
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	err = errors.Join(err, s.runJob(parent, "process_drip", jobTimeout, s.ProcessDripJob))
	err = errors.Join(err, s.runJob(parent, "low_balance_check", jobTimeout, s.LowBalanceJob))

	return err
}

func (s *Scheduler) ProcessDripJob(ctx context.Context) error {
	result, err := s.dripSvc.ProcessDue(ctx)
	if err != nil {
		return err
	}
	if result.Processed > 0 {
		s.log.Info("drip pass complete",
			zap.Int("processed", result.Processed),
			zap.Int("sent", result.Sent))
	}
	return nil
}

func (s *Scheduler) LowBalanceJob(ctx context.Context) error {
	alerted, err := s.billingSvc.CheckLowBalances(ctx)
	if err != nil {
		return err
	}
	if len(alerted) > 0 {
		s.log.Info("low balance alerts sent",
			zap.Strings("buyer_ids", alerted))
	}
	return nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
