package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	billingdomain "github.com/brushline/leadrail/internal/billing/domain"
	"github.com/brushline/leadrail/internal/buyer/domain"
	"github.com/brushline/leadrail/internal/clock"
	"github.com/brushline/leadrail/internal/ledgerstore"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupBuyerService(t *testing.T, clk clock.Clock) (domain.Service, ledgerstore.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&ledgerstore.SnapshotRow{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	store := ledgerstore.NewGormStore(db, node)
	svc := New(Params{
		Store: store,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
	})
	return svc, store
}

func TestCreateAppliesMonetizationDefaults(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	svc, _ := setupBuyerService(t, clk)

	buyer, err := svc.Create(context.Background(), domain.CreateBuyerRequest{
		Name:         "Acme Painting",
		ContactEmail: "leads@acme.test",
		Active:       true,
		MinScore:     40,
		Services:     []string{"interior_painting"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultPricePerLeadCents, buyer.PricePerLeadCents)
	assert.Equal(t, domain.DefaultLowBalanceThresholdCents, buyer.LowBalanceThresholdCents)
	assert.Equal(t, int64(0), buyer.CreditCents)
	assert.Equal(t, 0, buyer.DeliveredToday)
	assert.NotEmpty(t, buyer.ID)
}

func TestCreateHonorsExplicitMonetizationFields(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	svc, _ := setupBuyerService(t, clk)

	price := int64(4000)
	credit := int64(0)
	threshold := int64(1000)
	buyer, err := svc.Create(context.Background(), domain.CreateBuyerRequest{
		Name:                     "Acme Painting",
		ContactEmail:             "leads@acme.test",
		PricePerLeadCents:        &price,
		CreditCents:              &credit,
		LowBalanceThresholdCents: &threshold,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(4000), buyer.PricePerLeadCents)
	assert.Equal(t, int64(0), buyer.CreditCents)
	assert.Equal(t, int64(1000), buyer.LowBalanceThresholdCents)
}

func TestCreateValidation(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	svc, _ := setupBuyerService(t, clk)

	_, err := svc.Create(context.Background(), domain.CreateBuyerRequest{ContactEmail: "a@b.test"})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(context.Background(), domain.CreateBuyerRequest{Name: "Acme", ContactEmail: "not-an-email"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
}

func TestUpdatePartialPatch(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	svc, _ := setupBuyerService(t, clk)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateBuyerRequest{
		Name:         "Acme Painting",
		ContactEmail: "leads@acme.test",
		MinScore:     40,
		DailyCap:     3,
	})
	require.NoError(t, err)

	clk.Advance(time.Hour)
	minScore := 55
	updated, err := svc.Update(ctx, created.ID, domain.UpdateBuyerRequest{MinScore: &minScore})
	require.NoError(t, err)

	assert.Equal(t, 55, updated.MinScore)
	assert.Equal(t, "Acme Painting", updated.Name)
	assert.Equal(t, 3, updated.DailyCap)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	// The patch is durable, not just returned.
	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 55, got.MinScore)
}

func TestIncrementDeliveryResetsOnNewDay(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC))
	svc, _ := setupBuyerService(t, clk)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateBuyerRequest{Name: "Acme", ContactEmail: "a@b.test"})
	require.NoError(t, err)

	first, err := svc.IncrementDelivery(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.DeliveredToday)
	assert.Equal(t, "2025-03-01", first.LastDeliveryDate)

	second, err := svc.IncrementDelivery(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, second.DeliveredToday)

	// Crossing midnight resets the counter before incrementing.
	clk.Advance(2 * time.Hour)
	next, err := svc.IncrementDelivery(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, next.DeliveredToday)
	assert.Equal(t, "2025-03-02", next.LastDeliveryDate)

	// A stale stamp reads as zero without a write.
	assert.Equal(t, 0, next.EffectiveDeliveredToday("2025-03-03"))
}

func TestAdjustCreditPairsTransactionAtomically(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	svc, store := setupBuyerService(t, clk)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateBuyerRequest{Name: "Acme", ContactEmail: "a@b.test"})
	require.NoError(t, err)

	buyer, txn, err := svc.AdjustCredit(ctx, domain.AdjustCreditRequest{
		BuyerID:    created.ID,
		DeltaCents: 10000,
		Entry:      &billingdomain.Entry{Kind: billingdomain.KindFund, Meta: map[string]any{"note": "initial"}},
	})
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, int64(10000), buyer.CreditCents)
	assert.Equal(t, int64(10000), txn.AmountCents)
	assert.Equal(t, int64(10000), txn.BalanceAfterCents)

	buyer, txn, err = svc.AdjustCredit(ctx, domain.AdjustCreditRequest{
		BuyerID:    created.ID,
		DeltaCents: -2500,
		Entry:      &billingdomain.Entry{Kind: billingdomain.KindLeadCharge},
	})
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, int64(7500), buyer.CreditCents)
	assert.Equal(t, int64(-2500), txn.AmountCents)
	assert.Equal(t, int64(7500), txn.BalanceAfterCents)

	// The paired transaction landed in the same store as the snapshot.
	txns, err := store.History(ctx, ledgerstore.KindBillingTxns, 0)
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestAdjustCreditRejectsUnknownKind(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	svc, _ := setupBuyerService(t, clk)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateBuyerRequest{Name: "Acme", ContactEmail: "a@b.test"})
	require.NoError(t, err)

	_, _, err = svc.AdjustCredit(ctx, domain.AdjustCreditRequest{
		BuyerID:    created.ID,
		DeltaCents: 100,
		Entry:      &billingdomain.Entry{Kind: "bonus"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidEntry)
}

func TestLegacySnapshotsPickUpDefaults(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	svc, store := setupBuyerService(t, clk)
	ctx := context.Background()

	// A snapshot written before monetization fields existed.
	legacy := map[string]any{
		"id":            "buyer-legacy",
		"name":          "Old School Painting",
		"contact_email": "old@school.test",
		"active":        true,
	}
	payload, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, ledgerstore.Record{
		Kind:     ledgerstore.KindBuyers,
		EntityID: "buyer-legacy",
		Payload:  payload,
	}))

	buyer, err := svc.Get(ctx, "buyer-legacy")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPricePerLeadCents, buyer.PricePerLeadCents)
	assert.Equal(t, domain.DefaultLowBalanceThresholdCents, buyer.LowBalanceThresholdCents)
	assert.Equal(t, int64(0), buyer.CreditCents)
}

func TestListSortedByName(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	svc, _ := setupBuyerService(t, clk)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateBuyerRequest{Name: "Zeta Painters", ContactEmail: "z@z.test"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateBuyerRequest{Name: "Alpha Painters", ContactEmail: "a@a.test"})
	require.NoError(t, err)

	buyers, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, buyers, 2)
	assert.Equal(t, "Alpha Painters", buyers[0].Name)
	assert.Equal(t, "Zeta Painters", buyers[1].Name)
}
