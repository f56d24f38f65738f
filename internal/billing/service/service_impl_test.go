package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brushline/leadrail/internal/billing/domain"
	buyerdomain "github.com/brushline/leadrail/internal/buyer/domain"
	buyerservice "github.com/brushline/leadrail/internal/buyer/service"
	"github.com/brushline/leadrail/internal/clock"
	"github.com/brushline/leadrail/internal/config"
	"github.com/brushline/leadrail/internal/ledgerstore"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type captureEmail struct {
	mu    sync.Mutex
	sends []capturedSend
}

type capturedSend struct {
	To      []string
	Subject string
}

func (c *captureEmail) Send(_ context.Context, to []string, subject string, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends = append(c.sends, capturedSend{To: to, Subject: subject})
	return nil
}

func (c *captureEmail) Sent() []capturedSend {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]capturedSend, len(c.sends))
	copy(out, c.sends)
	return out
}

type billingFixture struct {
	billing domain.Service
	buyers  buyerdomain.Service
	store   ledgerstore.Store
	clk     *clock.FakeClock
	email   *captureEmail
}

func setupBilling(t *testing.T) *billingFixture {
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
	mail := &captureEmail{}
	billing := New(Params{
		Store:    store,
		Log:      zap.NewNop(),
		Clock:    clk,
		Config:   config.Config{Email: config.EmailConfig{OperatorTo: "ops@brushline.test"}},
		BuyerSvc: buyers,
		Email:    mail,
	})
	return &billingFixture{billing: billing, buyers: buyers, store: store, clk: clk, email: mail}
}

func (f *billingFixture) createBuyer(t *testing.T, name string, creditCents int64) buyerdomain.Buyer {
	t.Helper()
	buyer, err := f.buyers.Create(context.Background(), buyerdomain.CreateBuyerRequest{
		Name:         name,
		ContactEmail: "buyer@test.test",
		Active:       true,
		CreditCents:  &creditCents,
	})
	require.NoError(t, err)
	return buyer
}

func TestFundThenChargeKeepsLedgerConsistent(t *testing.T) {
	f := setupBilling(t)
	ctx := context.Background()
	buyer := f.createBuyer(t, "Acme", 0)

	fund, err := f.billing.Fund(ctx, domain.FundRequest{BuyerID: buyer.ID, AmountCents: 10000, Note: "initial"})
	require.NoError(t, err)
	assert.Equal(t, domain.KindFund, fund.Kind)
	assert.Equal(t, int64(10000), fund.AmountCents)
	assert.Equal(t, int64(10000), fund.BalanceAfterCents)

	charge, err := f.billing.ChargeLead(ctx, domain.ChargeLeadRequest{
		BuyerID:    buyer.ID,
		PriceCents: 2500,
		LeadID:     "lead-1",
		Score:      72,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.KindLeadCharge, charge.Kind)
	assert.Equal(t, int64(-2500), charge.AmountCents)
	assert.Equal(t, int64(7500), charge.BalanceAfterCents)
	assert.Equal(t, "lead-1", charge.Meta["lead_id"])

	// The newest transaction's balance-after always equals the buyer's credit.
	current, err := f.buyers.Get(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, charge.BalanceAfterCents, current.CreditCents)
}

func TestRefundRecordsLeadReference(t *testing.T) {
	f := setupBilling(t)
	ctx := context.Background()
	buyer := f.createBuyer(t, "Acme", 5000)

	refund, err := f.billing.Refund(ctx, domain.RefundRequest{
		BuyerID:     buyer.ID,
		AmountCents: 2500,
		Note:        "bad lead",
		LeadID:      "lead-9",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.KindRefund, refund.Kind)
	assert.Equal(t, int64(2500), refund.AmountCents)
	assert.Equal(t, int64(7500), refund.BalanceAfterCents)
	assert.Equal(t, "lead-9", refund.Meta["reference_lead_id"])
}

func TestAmountValidation(t *testing.T) {
	f := setupBilling(t)
	ctx := context.Background()
	buyer := f.createBuyer(t, "Acme", 0)

	_, err := f.billing.Fund(ctx, domain.FundRequest{BuyerID: buyer.ID, AmountCents: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = f.billing.Refund(ctx, domain.RefundRequest{BuyerID: buyer.ID, AmountCents: -5})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = f.billing.ChargeLead(ctx, domain.ChargeLeadRequest{BuyerID: buyer.ID, PriceCents: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestListFiltersByBuyerAndCaps(t *testing.T) {
	f := setupBilling(t)
	ctx := context.Background()
	first := f.createBuyer(t, "Acme", 0)
	second := f.createBuyer(t, "Beta", 0)

	for i := 0; i < 3; i++ {
		_, err := f.billing.Fund(ctx, domain.FundRequest{BuyerID: first.ID, AmountCents: 1000})
		require.NoError(t, err)
	}
	_, err := f.billing.Fund(ctx, domain.FundRequest{BuyerID: second.ID, AmountCents: 9000})
	require.NoError(t, err)

	all, err := f.billing.List(ctx, domain.ListTransactionsRequest{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	// Newest first.
	assert.Equal(t, second.ID, all[0].BuyerID)

	filtered, err := f.billing.List(ctx, domain.ListTransactionsRequest{BuyerID: first.ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	for _, txn := range filtered {
		assert.Equal(t, first.ID, txn.BuyerID)
	}
}

func TestCheckLowBalancesAlertsOncePerDay(t *testing.T) {
	f := setupBilling(t)
	ctx := context.Background()
	low := f.createBuyer(t, "Low Buyer", 1000)
	f.createBuyer(t, "Rich Buyer", 100000)

	alerted, err := f.billing.CheckLowBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{low.ID}, alerted)

	// Buyer email plus operator copy.
	sends := f.email.Sent()
	require.Len(t, sends, 2)
	assert.Equal(t, []string{"buyer@test.test"}, sends[0].To)
	assert.Equal(t, []string{"ops@brushline.test"}, sends[1].To)

	// Within 24h the alert is suppressed.
	f.clk.Advance(6 * time.Hour)
	alerted, err = f.billing.CheckLowBalances(ctx)
	require.NoError(t, err)
	assert.Empty(t, alerted)

	// After the guard expires it fires again.
	f.clk.Advance(19 * time.Hour)
	alerted, err = f.billing.CheckLowBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{low.ID}, alerted)
}
