package pricing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharma-erp/backend/internal/domain"
	"github.com/pharma-erp/backend/internal/store/memory"
)

func TestDiffItemPrices(t *testing.T) {
	t.Run("pairs by line id and records real changes only", func(t *testing.T) {
		oldItems := []domain.OrderItem{
			{ID: "l1", Name: "API", UnitPrice: 10},
			{ID: "l2", Name: "Filler", UnitPrice: 3},
		}
		newItems := []domain.OrderItem{
			{ID: "l1", Name: "API", UnitPrice: 12},
			{ID: "l2", Name: "Filler", UnitPrice: 3.00001},
		}

		changes := diffItemPrices(oldItems, newItems)
		require.Len(t, changes, 1)
		assert.Equal(t, "l1", changes[0].ItemID)
		assert.Equal(t, 12.0, changes[0].NewUnitPrice)
	})

	t.Run("falls back to catalog id plus name when line ids changed", func(t *testing.T) {
		oldItems := []domain.OrderItem{{ID: "old", InventoryItemID: "inv-1", Name: "API", UnitPrice: 10}}
		newItems := []domain.OrderItem{{ID: "new", InventoryItemID: "inv-1", Name: "API", UnitPrice: 11}}

		changes := diffItemPrices(oldItems, newItems)
		require.Len(t, changes, 1)
		assert.Equal(t, "new", changes[0].ItemID)
	})

	t.Run("brand new item produces no change record", func(t *testing.T) {
		newItems := []domain.OrderItem{{ID: "l9", Name: "Added later", UnitPrice: 4}}

		assert.Empty(t, diffItemPrices(nil, newItems))
	})
}

func TestReconcileBasePrices(t *testing.T) {
	ctx := context.Background()

	t.Run("price change preserves the surcharge", func(t *testing.T) {
		st := memory.New()
		batch := linkedBatch("b1", "po-1", "l1", 10, 12.5)
		batch.BaseUnitPrice = float(10)
		batch.AdditionalCostPerUnit = 2.5
		seedBatch(t, st, batch)

		oldItems := []domain.OrderItem{{ID: "l1", Name: "API", UnitPrice: 10}}
		newItems := []domain.OrderItem{{ID: "l1", Name: "API", UnitPrice: 12}}

		report, err := NewPriceReconciler(st).ReconcileBasePrices(ctx, "po-1", oldItems, newItems)
		require.NoError(t, err)
		require.Equal(t, []string{"b1"}, report.Succeeded)

		updated := getBatch(t, st, "b1")
		assert.Equal(t, 12.0, *updated.BaseUnitPrice)
		assert.Equal(t, 2.5, updated.AdditionalCostPerUnit)
		assert.Equal(t, 14.5, updated.UnitPrice)
	})

	t.Run("line linkage beats shared catalog id", func(t *testing.T) {
		st := memory.New()
		first := linkedBatch("b1", "po-1", "l1", 10, 10)
		first.InventoryItemID = "inv-1"
		second := linkedBatch("b2", "po-1", "l2", 10, 20)
		second.InventoryItemID = "inv-1"
		seedBatch(t, st, first)
		seedBatch(t, st, second)

		oldItems := []domain.OrderItem{
			{ID: "l1", InventoryItemID: "inv-1", Name: "API", UnitPrice: 10},
			{ID: "l2", InventoryItemID: "inv-1", Name: "API", UnitPrice: 20},
		}
		newItems := []domain.OrderItem{
			{ID: "l1", InventoryItemID: "inv-1", Name: "API", UnitPrice: 11},
			{ID: "l2", InventoryItemID: "inv-1", Name: "API", UnitPrice: 22},
		}

		report, err := NewPriceReconciler(st).ReconcileBasePrices(ctx, "po-1", oldItems, newItems)
		require.NoError(t, err)
		require.Len(t, report.Succeeded, 2)

		assert.Equal(t, 11.0, *getBatch(t, st, "b1").BaseUnitPrice)
		assert.Equal(t, 22.0, *getBatch(t, st, "b2").BaseUnitPrice)
	})

	t.Run("legacy batch matches through catalog id", func(t *testing.T) {
		st := memory.New()
		seedBatch(t, st, domain.InventoryBatch{
			ID:              "legacy",
			InventoryItemID: "inv-1",
			InitialQuantity: 5,
			UnitPrice:       10,
			SourceDetails:   &domain.SourceRef{SourceType: domain.SourceTypePurchase, OrderID: "po-1"},
		})

		oldItems := []domain.OrderItem{
			{ID: "l1", InventoryItemID: "inv-1", Name: "API", UnitPrice: 10},
			{ID: "l2", InventoryItemID: "inv-2", Name: "Filler", UnitPrice: 2},
		}
		newItems := []domain.OrderItem{
			{ID: "l1", InventoryItemID: "inv-1", Name: "API", UnitPrice: 13},
			{ID: "l2", InventoryItemID: "inv-2", Name: "Filler", UnitPrice: 2},
		}

		report, err := NewPriceReconciler(st).ReconcileBasePrices(ctx, "po-1", oldItems, newItems)
		require.NoError(t, err)
		require.Equal(t, []string{"legacy"}, report.Succeeded)
		assert.Equal(t, 13.0, *getBatch(t, st, "legacy").BaseUnitPrice)
	})

	t.Run("legacy batch matches through item name", func(t *testing.T) {
		st := memory.New()
		seedBatch(t, st, domain.InventoryBatch{
			ID:              "named",
			ItemName:        "Magnesium stearate",
			InitialQuantity: 5,
			UnitPrice:       4,
			SourceDetails:   &domain.SourceRef{SourceType: domain.SourceTypePurchase, OrderID: "po-1"},
		})

		oldItems := []domain.OrderItem{
			{ID: "l1", Name: "Magnesium stearate", UnitPrice: 4},
			{ID: "l2", Name: "Talc", UnitPrice: 1},
		}
		newItems := []domain.OrderItem{
			{ID: "l1", Name: "Magnesium stearate", UnitPrice: 5},
			{ID: "l2", Name: "Talc", UnitPrice: 1},
		}

		report, err := NewPriceReconciler(st).ReconcileBasePrices(ctx, "po-1", oldItems, newItems)
		require.NoError(t, err)
		require.Equal(t, []string{"named"}, report.Succeeded)
	})

	t.Run("single-line order matches unconditionally", func(t *testing.T) {
		st := memory.New()
		seedBatch(t, st, domain.InventoryBatch{
			ID:              "orphan",
			InitialQuantity: 5,
			UnitPrice:       4,
			SourceDetails:   &domain.SourceRef{SourceType: domain.SourceTypePurchase, OrderID: "po-1"},
		})

		oldItems := []domain.OrderItem{{ID: "l1", Name: "API", UnitPrice: 4}}
		newItems := []domain.OrderItem{{ID: "l1", Name: "API", UnitPrice: 6}}

		report, err := NewPriceReconciler(st).ReconcileBasePrices(ctx, "po-1", oldItems, newItems)
		require.NoError(t, err)
		require.Equal(t, []string{"orphan"}, report.Succeeded)
		assert.Equal(t, 6.0, *getBatch(t, st, "orphan").BaseUnitPrice)
	})

	t.Run("unmatched batch stays untouched", func(t *testing.T) {
		st := memory.New()
		seedBatch(t, st, domain.InventoryBatch{
			ID:              "orphan",
			InitialQuantity: 5,
			UnitPrice:       4,
			SourceDetails:   &domain.SourceRef{SourceType: domain.SourceTypePurchase, OrderID: "po-1"},
		})

		oldItems := []domain.OrderItem{
			{ID: "l1", Name: "API", UnitPrice: 4},
			{ID: "l2", Name: "Filler", UnitPrice: 1},
		}
		newItems := []domain.OrderItem{
			{ID: "l1", Name: "API", UnitPrice: 6},
			{ID: "l2", Name: "Filler", UnitPrice: 1},
		}

		report, err := NewPriceReconciler(st).ReconcileBasePrices(ctx, "po-1", oldItems, newItems)
		require.NoError(t, err)
		assert.Empty(t, report.Succeeded)

		untouched := getBatch(t, st, "orphan")
		assert.Nil(t, untouched.BaseUnitPrice)
		assert.Equal(t, 4.0, untouched.UnitPrice)
	})

	t.Run("no detected changes is a no-op", func(t *testing.T) {
		st := memory.New()
		seedBatch(t, st, linkedBatch("b1", "po-1", "l1", 10, 5))
		items := []domain.OrderItem{{ID: "l1", Name: "API", UnitPrice: 5}}

		report, err := NewPriceReconciler(st).ReconcileBasePrices(ctx, "po-1", items, items)
		require.NoError(t, err)
		assert.Empty(t, report.Succeeded)
		assert.Zero(t, st.UpdateCount())
	})
}

func TestResyncBasePrices(t *testing.T) {
	ctx := context.Background()

	t.Run("rewrites every linked batch from current prices", func(t *testing.T) {
		st := memory.New()
		drifted := linkedBatch("b1", "po-1", "l1", 10, 99)
		drifted.BaseUnitPrice = float(99)
		drifted.AdditionalCostPerUnit = 1.5
		seedBatch(t, st, drifted)

		po := &domain.PurchaseOrder{
			ID:    "po-1",
			Items: []domain.OrderItem{{ID: "l1", Name: "API", UnitPrice: 10}},
		}

		report, err := NewPriceReconciler(st).ResyncBasePrices(ctx, po)
		require.NoError(t, err)
		require.Equal(t, []string{"b1"}, report.Succeeded)

		fixed := getBatch(t, st, "b1")
		assert.Equal(t, 10.0, *fixed.BaseUnitPrice)
		assert.Equal(t, 1.5, fixed.AdditionalCostPerUnit)
		assert.Equal(t, 11.5, fixed.UnitPrice)
	})

	t.Run("resync is idempotent", func(t *testing.T) {
		st := memory.New()
		seedBatch(t, st, linkedBatch("b1", "po-1", "l1", 10, 10))
		po := &domain.PurchaseOrder{
			ID:    "po-1",
			Items: []domain.OrderItem{{ID: "l1", Name: "API", UnitPrice: 10}},
		}
		reconciler := NewPriceReconciler(st)

		first, err := reconciler.ResyncBasePrices(ctx, po)
		require.NoError(t, err)
		require.Len(t, first.Succeeded, 1)

		second, err := reconciler.ResyncBasePrices(ctx, po)
		require.NoError(t, err)
		assert.Empty(t, second.Succeeded)
	})
}
