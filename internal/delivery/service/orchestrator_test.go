package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brushline/leadrail/internal/analytics"
	billingdomain "github.com/brushline/leadrail/internal/billing/domain"
	billingservice "github.com/brushline/leadrail/internal/billing/service"
	buyerdomain "github.com/brushline/leadrail/internal/buyer/domain"
	buyerservice "github.com/brushline/leadrail/internal/buyer/service"
	"github.com/brushline/leadrail/internal/clock"
	"github.com/brushline/leadrail/internal/config"
	"github.com/brushline/leadrail/internal/delivery/domain"
	leaddomain "github.com/brushline/leadrail/internal/lead/domain"
	"github.com/brushline/leadrail/internal/ledgerstore"
	"github.com/brushline/leadrail/internal/observability/metrics"
	routingdomain "github.com/brushline/leadrail/internal/routing/domain"
	routingservice "github.com/brushline/leadrail/internal/routing/service"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type notifierStub struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (n *notifierStub) Notify(_ context.Context, _ buyerdomain.Buyer, _ leaddomain.Lead) (domain.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.err != nil {
		return domain.Result{Method: domain.MethodEmail}, n.err
	}
	return domain.Result{Method: domain.MethodEmail, LatencyMS: 12}, nil
}

func (n *notifierStub) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

type nullEmail struct{}

func (nullEmail) Send(context.Context, []string, string, string) error { return nil }

type dispatchFixture struct {
	delivery domain.Service
	buyers   buyerdomain.Service
	billing  billingdomain.Service
	notifier *notifierStub
}

func setupDispatch(t *testing.T) *dispatchFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&ledgerstore.SnapshotRow{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	store := ledgerstore.NewGormStore(db, node)
	buyers := buyerservice.New(buyerservice.Params{
		Store: store,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
	})
	billing := billingservice.New(billingservice.Params{
		Store:    store,
		Log:      zap.NewNop(),
		Clock:    clk,
		Config:   config.Config{},
		BuyerSvc: buyers,
		Email:    nullEmail{},
	})
	router := routingservice.New(routingservice.Params{
		Log:      zap.NewNop(),
		Clock:    clk,
		BuyerSvc: buyers,
	})
	notifier := &notifierStub{}
	delivery := New(Params{
		Store:    store,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Router:   router,
		Buyers:   buyers,
		Billing:  billing,
		Notifier: notifier,
		Metrics:  metrics.New(metrics.NewRegistry()),
		Tracker:  analytics.NewTracker(zap.NewNop(), nil, 100),
	})
	return &dispatchFixture{delivery: delivery, buyers: buyers, billing: billing, notifier: notifier}
}

func (f *dispatchFixture) createBuyer(t *testing.T, creditCents int64) buyerdomain.Buyer {
	t.Helper()
	price := int64(2500)
	buyer, err := f.buyers.Create(context.Background(), buyerdomain.CreateBuyerRequest{
		Name:              "Acme Painting",
		ContactEmail:      "acme@test.test",
		Active:            true,
		Services:          []string{"interior_painting"},
		PricePerLeadCents: &price,
		CreditCents:       &creditCents,
	})
	require.NoError(t, err)
	return buyer
}

func scoredLead() leaddomain.Lead {
	return leaddomain.Lead{
		ID:              "lead-1",
		Name:            "Jane Doe",
		Service:         "Interior Painting",
		NormalizedScore: 72,
	}
}

func TestDispatchDeliversChargesAndRecords(t *testing.T) {
	f := setupDispatch(t)
	ctx := context.Background()
	buyer := f.createBuyer(t, 10000)

	require.NoError(t, f.delivery.Dispatch(ctx, scoredLead(), routingdomain.Context{}))
	assert.Equal(t, 1, f.notifier.callCount())

	deliveries, err := f.delivery.List(ctx, "lead-1", 0)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, domain.StatusSent, deliveries[0].Status)
	assert.Equal(t, domain.MethodEmail, deliveries[0].Method)
	assert.Equal(t, buyer.ID, deliveries[0].BuyerID)
	assert.Empty(t, deliveries[0].Error)

	after, err := f.buyers.Get(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.DeliveredToday)
	assert.Equal(t, int64(7500), after.CreditCents)

	txns, err := f.billing.List(ctx, billingdomain.ListTransactionsRequest{BuyerID: buyer.ID})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, billingdomain.KindLeadCharge, txns[0].Kind)
	assert.Equal(t, int64(-2500), txns[0].AmountCents)
	assert.Equal(t, "lead-1", txns[0].Meta["lead_id"])
}

func TestDispatchNotifyFailureRecordsWithoutCharging(t *testing.T) {
	f := setupDispatch(t)
	ctx := context.Background()
	buyer := f.createBuyer(t, 10000)
	f.notifier.err = errors.New("smtp: connection refused")

	err := f.delivery.Dispatch(ctx, scoredLead(), routingdomain.Context{})
	require.Error(t, err)

	deliveries, err := f.delivery.List(ctx, "lead-1", 0)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, domain.StatusFailed, deliveries[0].Status)
	assert.Contains(t, deliveries[0].Error, "connection refused")

	// The failed attempt neither counts against the cap nor bills the buyer.
	after, err := f.buyers.Get(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.DeliveredToday)
	assert.Equal(t, int64(10000), after.CreditCents)

	txns, err := f.billing.List(ctx, billingdomain.ListTransactionsRequest{BuyerID: buyer.ID})
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestDispatchWithoutCandidateIsTerminal(t *testing.T) {
	f := setupDispatch(t)
	ctx := context.Background()

	require.NoError(t, f.delivery.Dispatch(ctx, scoredLead(), routingdomain.Context{}))
	assert.Equal(t, 0, f.notifier.callCount())

	deliveries, err := f.delivery.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, deliveries)
}

func TestDispatchFreeBuyerSkipsCharge(t *testing.T) {
	f := setupDispatch(t)
	ctx := context.Background()
	price := int64(0)
	buyer, err := f.buyers.Create(ctx, buyerdomain.CreateBuyerRequest{
		Name:              "Pro Bono Painters",
		ContactEmail:      "free@test.test",
		Active:            true,
		PricePerLeadCents: &price,
	})
	require.NoError(t, err)

	require.NoError(t, f.delivery.Dispatch(ctx, scoredLead(), routingdomain.Context{}))

	txns, err := f.billing.List(ctx, billingdomain.ListTransactionsRequest{BuyerID: buyer.ID})
	require.NoError(t, err)
	assert.Empty(t, txns)

	after, err := f.buyers.Get(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.DeliveredToday)
}

func TestListDeliveriesFiltersByLead(t *testing.T) {
	f := setupDispatch(t)
	ctx := context.Background()
	f.createBuyer(t, 100000)

	first := scoredLead()
	second := scoredLead()
	second.ID = "lead-2"
	require.NoError(t, f.delivery.Dispatch(ctx, first, routingdomain.Context{}))
	require.NoError(t, f.delivery.Dispatch(ctx, second, routingdomain.Context{}))

	all, err := f.delivery.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	only, err := f.delivery.List(ctx, "lead-2", 0)
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "lead-2", only[0].LeadID)
}
