package ledgerstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&SnapshotRow{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewGormStore(db, node)
}

func TestGormStoreGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, Record{
		Kind:     KindLeads,
		EntityID: "lead-1",
		Payload:  []byte(`{"id":"lead-1","status":"new"}`),
	}))

	snap, err := store.Get(ctx, KindLeads, "lead-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "lead-1", snap.EntityID)
	assert.JSONEq(t, `{"id":"lead-1","status":"new"}`, string(snap.Payload))

	missing, err := store.Get(ctx, KindLeads, "lead-unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGormStoreGetReturnsNewestSnapshot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, Record{Kind: KindLeads, EntityID: "lead-1", Payload: []byte(`{"status":"new"}`)}))
	require.NoError(t, store.Append(ctx, Record{Kind: KindLeads, EntityID: "lead-1", Payload: []byte(`{"status":"contacted"}`)}))

	snap, err := store.Get(ctx, KindLeads, "lead-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.JSONEq(t, `{"status":"contacted"}`, string(snap.Payload))
}

func TestGormStoreLatestPerEntity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, Record{Kind: KindBuyers, EntityID: "a", Payload: []byte(`{"v":1}`)}))
	require.NoError(t, store.Append(ctx, Record{Kind: KindBuyers, EntityID: "b", Payload: []byte(`{"v":1}`)}))
	require.NoError(t, store.Append(ctx, Record{Kind: KindBuyers, EntityID: "a", Payload: []byte(`{"v":2}`)}))
	// Other kinds never bleed into the result.
	require.NoError(t, store.Append(ctx, Record{Kind: KindLeads, EntityID: "a", Payload: []byte(`{"v":9}`)}))

	snaps, err := store.Latest(ctx, KindBuyers)
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	byID := map[string]string{}
	for _, snap := range snaps {
		byID[snap.EntityID] = string(snap.Payload)
	}
	assert.JSONEq(t, `{"v":2}`, byID["a"])
	assert.JSONEq(t, `{"v":1}`, byID["b"])
}

func TestGormStoreHistoryNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, Record{
			Kind:     KindBillingTxns,
			EntityID: fmt.Sprintf("txn-%d", i),
			Payload:  []byte(fmt.Sprintf(`{"n":%d}`, i)),
		}))
	}

	all, err := store.History(ctx, KindBillingTxns, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.JSONEq(t, `{"n":4}`, string(all[0].Payload))
	assert.JSONEq(t, `{"n":0}`, string(all[4].Payload))

	capped, err := store.History(ctx, KindBillingTxns, 2)
	require.NoError(t, err)
	require.Len(t, capped, 2)
	assert.JSONEq(t, `{"n":4}`, string(capped[0].Payload))
	assert.JSONEq(t, `{"n":3}`, string(capped[1].Payload))
}

func TestGormStoreAppendBatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx,
		Record{Kind: KindBuyers, EntityID: "buyer-1", Payload: []byte(`{"credit_cents":7500}`)},
		Record{Kind: KindBillingTxns, EntityID: "txn-1", Payload: []byte(`{"balance_after_cents":7500}`)},
	))

	buyerSnap, err := store.Get(ctx, KindBuyers, "buyer-1")
	require.NoError(t, err)
	require.NotNil(t, buyerSnap)
	txnSnap, err := store.Get(ctx, KindBillingTxns, "txn-1")
	require.NoError(t, err)
	require.NotNil(t, txnSnap)

	// Batch order is preserved in the log.
	assert.Less(t, buyerSnap.Seq, txnSnap.Seq)
}

func TestGormStoreAppendNothing(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Append(context.Background()))
}
