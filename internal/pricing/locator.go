// Package pricing keeps inventory batch prices consistent with the purchase
// order that produced them: proportional allocation of the order's additional
// costs and propagation of line-item price edits into batch base prices.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/pharma-erp/backend/internal/domain"
	"github.com/pharma-erp/backend/internal/store"
)

const (
	fieldOrderLinkage       = "purchaseOrderDetails.id"
	fieldLegacyOrderLinkage = "sourceDetails.orderId"
)

// BatchLocator resolves the inventory batches linked to a purchase order.
// Batches created by the current receiving flow carry purchaseOrderDetails;
// older batches carry sourceDetails instead. The legacy query runs only when
// the current one finds nothing; the two shapes are never mixed for one
// order.
type BatchLocator struct {
	store store.Store
}

func NewBatchLocator(st store.Store) *BatchLocator {
	return &BatchLocator{store: st}
}

// Locate returns the batches linked to the order, deduplicated by batch id.
// Transfer operations elsewhere can leave residual duplicate records; when an
// id appears more than once the copy with the newest updatedAt wins. An empty
// result is not an error.
func (l *BatchLocator) Locate(ctx context.Context, orderID string) ([]domain.InventoryBatch, error) {
	docs, err := l.store.QueryByField(ctx, store.CollectionInventoryBatches, fieldOrderLinkage, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches for order %s: %w", orderID, err)
	}

	if len(docs) == 0 {
		docs, err = l.store.QueryByField(ctx, store.CollectionInventoryBatches, fieldLegacyOrderLinkage, orderID)
		if err != nil {
			return nil, fmt.Errorf("failed to query legacy batches for order %s: %w", orderID, err)
		}
	}

	seen := make(map[string]domain.InventoryBatch, len(docs))
	order := make([]string, 0, len(docs))
	for _, doc := range docs {
		var batch domain.InventoryBatch
		if err := json.Unmarshal(doc, &batch); err != nil {
			return nil, fmt.Errorf("failed to decode batch for order %s: %w", orderID, err)
		}
		if batch.ID == "" {
			log.Warn().Str("order_id", orderID).Msg("skipping batch document without id")
			continue
		}

		kept, exists := seen[batch.ID]
		if !exists {
			seen[batch.ID] = batch
			order = append(order, batch.ID)
			continue
		}
		if newerThan(batch, kept) {
			seen[batch.ID] = batch
		}
	}

	batches := make([]domain.InventoryBatch, 0, len(order))
	for _, id := range order {
		batches = append(batches, seen[id])
	}
	// Stable output regardless of store result ordering
	sort.Slice(batches, func(i, j int) bool { return batches[i].ID < batches[j].ID })

	return batches, nil
}

// newerThan reports whether candidate should replace kept among duplicates
// sharing an id. A timestamped copy always beats an untimestamped one; with
// two timestamps the later wins; with none the first seen is kept.
func newerThan(candidate, kept domain.InventoryBatch) bool {
	if candidate.UpdatedAt == nil {
		return false
	}
	if kept.UpdatedAt == nil {
		return true
	}
	return candidate.UpdatedAt.After(*kept.UpdatedAt)
}
