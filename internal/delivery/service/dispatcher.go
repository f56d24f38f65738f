package service

import (
	"context"
	"sync"
	"time"

	"github.com/brushline/leadrail/internal/config"
	"github.com/brushline/leadrail/internal/delivery/domain"
	leaddomain "github.com/brushline/leadrail/internal/lead/domain"
	"github.com/brushline/leadrail/internal/observability/metrics"
	routingdomain "github.com/brushline/leadrail/internal/routing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const dispatchTimeout = 30 * time.Second

type dispatchJob struct {
	lead leaddomain.Lead
	rctx routingdomain.Context
}

// Dispatcher runs deliveries on a fixed worker pool so intake can return to
// the submitter before routing, notification and charging complete.
type Dispatcher struct {
	svc     domain.Service
	log     *zap.Logger
	metrics *metrics.Metrics

	jobs chan dispatchJob
	wg   sync.WaitGroup
}

type DispatcherParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Service   domain.Service
	Log       *zap.Logger
	Metrics   *metrics.Metrics
}

func NewDispatcher(p DispatcherParams) domain.Dispatcher {
	workers := p.Config.Intake.DispatchWorkers
	if workers <= 0 {
		workers = 1
	}
	queue := p.Config.Intake.DispatchQueue
	if queue <= 0 {
		queue = 1
	}

	d := &Dispatcher{
		svc:     p.Service,
		log:     p.Log.Named("delivery.dispatcher"),
		metrics: p.Metrics,
		jobs:    make(chan dispatchJob, queue),
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			for i := 0; i < workers; i++ {
				d.wg.Add(1)
				go d.worker()
			}
			d.log.Info("dispatcher started",
				zap.Int("workers", workers), zap.Int("queue", queue))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(d.jobs)
			done := make(chan struct{})
			go func() {
				d.wg.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})

	return d
}

func (d *Dispatcher) Enqueue(lead leaddomain.Lead, rctx routingdomain.Context) {
	select {
	case d.jobs <- dispatchJob{lead: lead, rctx: rctx}:
	default:
		d.metrics.DispatchErrors.Inc()
		d.log.Warn("dispatch queue full, dropping lead",
			zap.String("lead_id", lead.ID))
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		if err := d.svc.Dispatch(ctx, job.lead, job.rctx); err != nil {
			d.metrics.DispatchErrors.Inc()
			d.log.Error("background dispatch failed",
				zap.String("lead_id", job.lead.ID), zap.Error(err))
		}
		cancel()
	}
}
