package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharma-erp/backend/internal/domain"
	"github.com/pharma-erp/backend/internal/store"
	"github.com/pharma-erp/backend/internal/store/memory"
)

type recordingInvalidator struct {
	mu       sync.Mutex
	orderIDs []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orderIDs = append(r.orderIDs, orderID)
	return nil
}

func TestPropagatorPartialFailure(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedBatch(t, st, linkedBatch("ok-1", "po-1", "", 10, 5))
	seedBatch(t, st, linkedBatch("bad", "po-1", "", 10, 5))
	seedBatch(t, st, linkedBatch("ok-2", "po-1", "", 10, 5))
	st.FailUpdate(store.CollectionInventoryBatches, "bad", errors.New("write refused"))

	po := &domain.PurchaseOrder{ID: "po-1", AdditionalCosts: 300}

	report, err := NewPropagator(st, nil).OnAdditionalCostsChanged(ctx, po)
	require.NoError(t, err)

	// Sibling writes are not aborted by the failing one
	assert.Equal(t, []string{"ok-1", "ok-2"}, report.Succeeded)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "bad", report.Failed[0].BatchID)
	assert.False(t, report.Ok())

	// The failed batch keeps its stored values
	untouched := getBatch(t, st, "bad")
	assert.Nil(t, untouched.BaseUnitPrice)
	assert.Equal(t, 5.0, untouched.UnitPrice)
}

func TestPropagatorInvalidatesCache(t *testing.T) {
	ctx := context.Background()

	t.Run("after cost propagation", func(t *testing.T) {
		st := memory.New()
		invalidator := &recordingInvalidator{}
		po := &domain.PurchaseOrder{ID: "po-1", AdditionalCosts: 10}

		_, err := NewPropagator(st, invalidator).OnAdditionalCostsChanged(ctx, po)
		require.NoError(t, err)
		assert.Equal(t, []string{"po-1"}, invalidator.orderIDs)
	})

	t.Run("after partial failure too", func(t *testing.T) {
		st := memory.New()
		seedBatch(t, st, linkedBatch("bad", "po-1", "", 10, 5))
		st.FailUpdate(store.CollectionInventoryBatches, "bad", errors.New("write refused"))
		invalidator := &recordingInvalidator{}
		po := &domain.PurchaseOrder{ID: "po-1", AdditionalCosts: 10}

		report, err := NewPropagator(st, invalidator).OnAdditionalCostsChanged(ctx, po)
		require.NoError(t, err)
		assert.False(t, report.Ok())
		assert.Equal(t, []string{"po-1"}, invalidator.orderIDs)
	})
}

func TestPropagatorOnLineItemPricesChanged(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	batch := linkedBatch("b1", "po-1", "l1", 10, 12.5)
	batch.BaseUnitPrice = float(10)
	batch.AdditionalCostPerUnit = 2.5
	seedBatch(t, st, batch)

	oldItems := []domain.OrderItem{{ID: "l1", Name: "API", UnitPrice: 10}}
	newItems := []domain.OrderItem{{ID: "l1", Name: "API", UnitPrice: 12}}

	report, err := NewPropagator(st, nil).OnLineItemPricesChanged(ctx, "po-1", oldItems, newItems)
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, report.Succeeded)
	assert.Equal(t, 14.5, getBatch(t, st, "b1").UnitPrice)
}

func TestPropagatorResync(t *testing.T) {
	ctx := context.Background()

	t.Run("restores base prices and surcharges in one pass", func(t *testing.T) {
		st := memory.New()
		seedOrder(t, st, domain.PurchaseOrder{
			ID:              "po-1",
			Items:           []domain.OrderItem{{ID: "l1", Name: "API", UnitPrice: 10}},
			AdditionalCosts: 40,
		})
		drifted := linkedBatch("b1", "po-1", "l1", 20, 123)
		drifted.BaseUnitPrice = float(123)
		seedBatch(t, st, drifted)

		report, err := NewPropagator(st, nil).Resync(ctx, "po-1")
		require.NoError(t, err)
		require.True(t, report.Ok())

		fixed := getBatch(t, st, "b1")
		assert.Equal(t, 10.0, *fixed.BaseUnitPrice)
		assert.Equal(t, 2.0, fixed.AdditionalCostPerUnit)
		assert.Equal(t, 12.0, fixed.UnitPrice)
	})

	t.Run("unknown order propagates not found", func(t *testing.T) {
		_, err := NewPropagator(memory.New(), nil).Resync(ctx, "missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}
