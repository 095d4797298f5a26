package pricing

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pharma-erp/backend/internal/domain"
	"github.com/pharma-erp/backend/internal/store"
	"github.com/pharma-erp/backend/internal/store/memory"
)

func seedBatch(t *testing.T, st *memory.Store, batch domain.InventoryBatch) {
	t.Helper()
	require.NoError(t, st.Put(context.Background(), store.CollectionInventoryBatches, batch.ID, &batch))
}

func seedOrder(t *testing.T, st *memory.Store, po domain.PurchaseOrder) {
	t.Helper()
	require.NoError(t, st.Put(context.Background(), store.CollectionPurchaseOrders, po.ID, &po))
}

func getBatch(t *testing.T, st *memory.Store, id string) domain.InventoryBatch {
	t.Helper()
	doc, err := st.GetByID(context.Background(), store.CollectionInventoryBatches, id)
	require.NoError(t, err)
	var batch domain.InventoryBatch
	require.NoError(t, json.Unmarshal(doc, &batch))
	return batch
}

func linkedBatch(id, orderID, itemPoID string, initialQty, unitPrice float64) domain.InventoryBatch {
	return domain.InventoryBatch{
		ID:                   id,
		Quantity:             initialQty,
		InitialQuantity:      initialQty,
		UnitPrice:            unitPrice,
		PurchaseOrderDetails: &domain.PurchaseOrderRef{ID: orderID, ItemPoID: itemPoID},
	}
}

func float(v float64) *float64 {
	return &v
}
