package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	billingdomain "github.com/brushline/leadrail/internal/billing/domain"
	"github.com/brushline/leadrail/internal/clock"
	dripdomain "github.com/brushline/leadrail/internal/drip/domain"
	"github.com/brushline/leadrail/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type dripServiceStub struct {
	mu     sync.Mutex
	err    error
	result dripdomain.ProcessResult
	calls  int
}

func (d *dripServiceStub) Schedule(context.Context, string) error { return nil }

func (d *dripServiceStub) Enqueue(context.Context, dripdomain.Event) error { return nil }
func (d *dripServiceStub) ListPending(context.Context, time.Time) ([]dripdomain.Event, error) {
	return nil, nil
}
func (d *dripServiceStub) MarkSent(context.Context, string) error { return nil }

func (d *dripServiceStub) ProcessDue(context.Context) (dripdomain.ProcessResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.result, d.err
}

type billingServiceStub struct {
	mu      sync.Mutex
	err     error
	alerted []string
	calls   int
}

func (b *billingServiceStub) Fund(context.Context, billingdomain.FundRequest) (billingdomain.Transaction, error) {
	return billingdomain.Transaction{}, nil
}

func (b *billingServiceStub) Refund(context.Context, billingdomain.RefundRequest) (billingdomain.Transaction, error) {
	return billingdomain.Transaction{}, nil
}

func (b *billingServiceStub) ChargeLead(context.Context, billingdomain.ChargeLeadRequest) (billingdomain.Transaction, error) {
	return billingdomain.Transaction{}, nil
}

func (b *billingServiceStub) List(context.Context, billingdomain.ListTransactionsRequest) ([]billingdomain.Transaction, error) {
	return nil, nil
}

func (b *billingServiceStub) CheckLowBalances(context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return b.alerted, b.err
}

func newTestScheduler(t *testing.T, drip *dripServiceStub, billing *billingServiceStub) *Scheduler {
	t.Helper()
	s, err := New(Params{
		Log:        zap.NewNop(),
		Clock:      clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
		DripSvc:    drip,
		BillingSvc: billing,
		Metrics:    metrics.New(metrics.NewRegistry()),
	})
	require.NoError(t, err)
	return s
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	require.Error(t, err)
}

func TestRunOnceRunsAllJobs(t *testing.T) {
	drip := &dripServiceStub{result: dripdomain.ProcessResult{Processed: 2, Sent: 2}}
	billing := &billingServiceStub{alerted: []string{"buyer-1"}}
	s := newTestScheduler(t, drip, billing)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1, drip.calls)
	assert.Equal(t, 1, billing.calls)
}

func TestRunOnceJoinsErrorsWithoutShortCircuit(t *testing.T) {
	drip := &dripServiceStub{err: errors.New("queue unreadable")}
	billing := &billingServiceStub{err: errors.New("smtp down")}
	s := newTestScheduler(t, drip, billing)

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "process_drip")
	assert.Contains(t, err.Error(), "low_balance_check")

	// Both jobs still ran despite the first failing.
	assert.Equal(t, 1, drip.calls)
	assert.Equal(t, 1, billing.calls)
}

func TestRunOnceTreatsTimeoutAsSoft(t *testing.T) {
	drip := &dripServiceStub{err: context.DeadlineExceeded}
	billing := &billingServiceStub{}
	s := newTestScheduler(t, drip, billing)

	require.NoError(t, s.RunOnce(context.Background()))
}

func TestConfigDefaults(t *testing.T) {
	assert.Equal(t, time.Minute, Config{}.withDefaults().RunInterval)
	assert.Equal(t, 5*time.Second, Config{RunInterval: 5 * time.Second}.withDefaults().RunInterval)
}

var _ dripdomain.Service = (*dripServiceStub)(nil)
var _ billingdomain.Service = (*billingServiceStub)(nil)
