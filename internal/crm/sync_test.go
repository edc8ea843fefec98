package crm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcroitoru/storefront-orders/internal/orders"
)

type fakeStore struct {
	byID map[string]*orders.SyncView
}

func (f *fakeStore) GetForSync(_ context.Context, id string) (orders.SyncView, error) {
	v, ok := f.byID[id]
	if !ok {
		return orders.SyncView{}, orders.ErrOrderNotFound
	}
	return *v, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id string, s orders.Status) error {
	f.byID[id].Status = s
	return nil
}

func (f *fakeStore) UpdateQuantity(_ context.Context, id string, qty int) error {
	f.byID[id].Quantity = qty
	return nil
}

type fakeStock struct {
	levels map[string]int
}

func (f *fakeStock) Increment(_ context.Context, productID string, qty int) error {
	f.levels[productID] += qty
	return nil
}

func (f *fakeStock) ApplyDelta(_ context.Context, productID string, delta int) error {
	f.levels[productID] += delta
	return nil
}

func newSyncer(views ...orders.SyncView) (*Syncer, *fakeStore, *fakeStock) {
	store := &fakeStore{byID: map[string]*orders.SyncView{}}
	stock := &fakeStock{levels: map[string]int{}}
	for i := range views {
		v := views[i]
		store.byID[v.ID] = &v
	}
	return &Syncer{Orders: store, Stock: stock}, store, stock
}

func TestApplyCancellationRestocks(t *testing.T) {
	s, store, stock := newSyncer(orders.SyncView{
		ID: "ord-1", ProductID: "p1", Status: orders.StatusReceived, Quantity: 3,
	})

	err := s.Apply(context.Background(), []LeadUpdate{{
		StatusID: CodeCancelled,
		Entries:  []LeadEntry{{OrderID: "ord-1", Quantity: 3}},
	}})
	require.NoError(t, err)

	assert.Equal(t, orders.StatusCancelled, store.byID["ord-1"].Status)
	assert.Equal(t, 3, stock.levels["p1"])
}

func TestApplyRedeliveryDoesNotDoubleRestock(t *testing.T) {
	s, store, stock := newSyncer(orders.SyncView{
		ID: "ord-1", ProductID: "p1", Status: orders.StatusReceived, Quantity: 3,
	})

	batch := []LeadUpdate{{
		StatusID: CodeCancelled,
		Entries:  []LeadEntry{{OrderID: "ord-1", Quantity: 3}},
	}}
	require.NoError(t, s.Apply(context.Background(), batch))
	require.NoError(t, s.Apply(context.Background(), batch))

	assert.Equal(t, orders.StatusCancelled, store.byID["ord-1"].Status)
	assert.Equal(t, 3, stock.levels["p1"], "second delivery must not restock again")
}

func TestApplyReturnRestocks(t *testing.T) {
	s, store, stock := newSyncer(orders.SyncView{
		ID: "ord-2", ProductID: "p2", Status: orders.StatusHandedToCourier, Quantity: 2,
	})

	err := s.Apply(context.Background(), []LeadUpdate{{
		StatusID: CodeReturned,
		Entries:  []LeadEntry{{OrderID: "ord-2", Quantity: 2}},
	}})
	require.NoError(t, err)

	assert.Equal(t, orders.StatusReturned, store.byID["ord-2"].Status)
	assert.Equal(t, 2, stock.levels["p2"])
}

func TestApplyConfirmedHasNoStockSideEffect(t *testing.T) {
	s, store, stock := newSyncer(orders.SyncView{
		ID: "ord-3", ProductID: "p3", Status: orders.StatusReceived, Quantity: 5,
	})

	err := s.Apply(context.Background(), []LeadUpdate{{
		StatusID: CodeConfirmed,
		Entries:  []LeadEntry{{OrderID: "ord-3", Quantity: 5}},
	}})
	require.NoError(t, err)

	assert.Equal(t, orders.StatusConfirmed, store.byID["ord-3"].Status)
	assert.Empty(t, stock.levels)
}

func TestApplyQuantityCorrection(t *testing.T) {
	// order for 5, CRM says 3: order updated, stock gets the +2 delta back
	s, store, stock := newSyncer(orders.SyncView{
		ID: "ord-4", ProductID: "p4", Status: orders.StatusReceived, Quantity: 5,
	})

	err := s.Apply(context.Background(), []LeadUpdate{{
		StatusID: CodeConfirmed,
		Entries:  []LeadEntry{{OrderID: "ord-4", Quantity: 3}},
	}})
	require.NoError(t, err)

	assert.Equal(t, 3, store.byID["ord-4"].Quantity)
	assert.Equal(t, 2, stock.levels["p4"])
	assert.Equal(t, orders.StatusConfirmed, store.byID["ord-4"].Status)
}

func TestApplyQuantityIncreaseTakesMoreStock(t *testing.T) {
	s, store, stock := newSyncer(orders.SyncView{
		ID: "ord-5", ProductID: "p5", Status: orders.StatusReceived, Quantity: 2,
	})

	err := s.Apply(context.Background(), []LeadUpdate{{
		StatusID: CodeConfirmed,
		Entries:  []LeadEntry{{OrderID: "ord-5", Quantity: 4}},
	}})
	require.NoError(t, err)

	assert.Equal(t, 4, store.byID["ord-5"].Quantity)
	assert.Equal(t, -2, stock.levels["p5"])
}

func TestApplyZeroQuantityMeansCancellation(t *testing.T) {
	s, store, stock := newSyncer(orders.SyncView{
		ID: "ord-6", ProductID: "p6", Status: orders.StatusReceived, Quantity: 4,
	})

	err := s.Apply(context.Background(), []LeadUpdate{{
		StatusID: CodeConfirmed, // status says confirmed, quantity says gone
		Entries:  []LeadEntry{{OrderID: "ord-6", Quantity: 0}},
	}})
	require.NoError(t, err)

	assert.Equal(t, orders.StatusCancelled, store.byID["ord-6"].Status)
	assert.Equal(t, 4, stock.levels["p6"], "full original quantity restocked")
	assert.Equal(t, 4, store.byID["ord-6"].Quantity, "row quantity stays untouched")
}

func TestApplyManualCancelMarkerWinsOverStatus(t *testing.T) {
	s, store, stock := newSyncer(orders.SyncView{
		ID: "ord-7", ProductID: "p7", Status: orders.StatusReceived, Quantity: 1,
	})

	err := s.Apply(context.Background(), []LeadUpdate{{
		StatusID: CodeConfirmed,
		Entries:  []LeadEntry{{OrderID: "ord-7", Quantity: 1, Cancelled: true}},
	}})
	require.NoError(t, err)

	assert.Equal(t, orders.StatusCancelled, store.byID["ord-7"].Status)
	assert.Equal(t, 1, stock.levels["p7"])
}

func TestApplyUnknownStatusSkipsLead(t *testing.T) {
	s, store, stock := newSyncer(orders.SyncView{
		ID: "ord-8", ProductID: "p8", Status: orders.StatusReceived, Quantity: 2,
	})

	err := s.Apply(context.Background(), []LeadUpdate{{
		StatusID: 555555,
		Entries:  []LeadEntry{{OrderID: "ord-8", Quantity: 1}},
	}})
	require.NoError(t, err)

	assert.Equal(t, orders.StatusReceived, store.byID["ord-8"].Status)
	assert.Equal(t, 2, store.byID["ord-8"].Quantity)
	assert.Empty(t, stock.levels)
}

func TestApplyMissingOrderSkipsEntryNotBatch(t *testing.T) {
	s, store, stock := newSyncer(orders.SyncView{
		ID: "ord-9", ProductID: "p9", Status: orders.StatusReceived, Quantity: 1,
	})

	err := s.Apply(context.Background(), []LeadUpdate{{
		StatusID: CodeCancelled,
		Entries: []LeadEntry{
			{OrderID: "missing", Quantity: 1},
			{OrderID: "ord-9", Quantity: 1},
		},
	}})
	require.NoError(t, err)

	assert.Equal(t, orders.StatusCancelled, store.byID["ord-9"].Status)
	assert.Equal(t, 1, stock.levels["p9"])
}

func TestApplyQuantityCorrectionNoOpWhenEqual(t *testing.T) {
	s, store, stock := newSyncer(orders.SyncView{
		ID: "ord-10", ProductID: "p10", Status: orders.StatusReceived, Quantity: 3,
	})

	err := s.Apply(context.Background(), []LeadUpdate{{
		StatusID: CodeConfirmed,
		Entries:  []LeadEntry{{OrderID: "ord-10", Quantity: 3}},
	}})
	require.NoError(t, err)

	assert.Equal(t, 3, store.byID["ord-10"].Quantity)
	assert.Empty(t, stock.levels, "equal quantities must not touch stock")
}

func TestDedupKeyDistinguishesManualCancel(t *testing.T) {
	plain := LeadEntry{OrderID: "ord-11", Quantity: 2}
	crossed := LeadEntry{OrderID: "ord-11", Quantity: 2, Cancelled: true}

	// a redelivery where the operator crossed out the product must not be
	// swallowed as a duplicate of the earlier plain delivery
	assert.NotEqual(t, dedupKey(CodeConfirmed, plain), dedupKey(CodeConfirmed, crossed))
	assert.Equal(t, dedupKey(CodeConfirmed, plain), dedupKey(CodeConfirmed, plain))
	assert.NotEqual(t, dedupKey(CodeConfirmed, plain), dedupKey(CodeHandedToCourier, plain))
}
