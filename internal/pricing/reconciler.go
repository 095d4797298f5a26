package pricing

import (
	"context"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/pharma-erp/backend/internal/domain"
	"github.com/pharma-erp/backend/internal/store"
)

// priceChangeThreshold filters out float noise when diffing line prices.
const priceChangeThreshold = 0.0001

// PriceChange is one detected line-item price edit.
type PriceChange struct {
	ItemID          string
	InventoryItemID string
	Name            string
	NewUnitPrice    float64
}

// PriceReconciler rewrites batch base prices after purchase order line-item
// price edits. A batch is matched to a change strictly first (the exact order
// line that produced it) and loosely only for records predating per-line
// linkage; an unmatched batch is left alone.
type PriceReconciler struct {
	locator *BatchLocator
	writer  *batchWriter
}

func NewPriceReconciler(st store.Store) *PriceReconciler {
	return &PriceReconciler{
		locator: NewBatchLocator(st),
		writer:  newBatchWriter(st),
	}
}

// ReconcileBasePrices diffs the pre- and post-update item arrays and rewrites
// baseUnitPrice (and the derived unitPrice) on every matched batch. The
// additional-cost surcharge is preserved untouched.
func (r *PriceReconciler) ReconcileBasePrices(ctx context.Context, orderID string, oldItems, newItems []domain.OrderItem) (*WriteReport, error) {
	changes := diffItemPrices(oldItems, newItems)
	if len(changes) == 0 {
		log.Debug().Str("order_id", orderID).Msg("no line price changes detected")
		return &WriteReport{}, nil
	}
	return r.apply(ctx, orderID, len(newItems), changes)
}

// ResyncBasePrices rewrites base prices for all linked batches directly from
// the order's current line prices, bypassing the diff. Used for
// administrator-triggered repair; safe to re-run.
func (r *PriceReconciler) ResyncBasePrices(ctx context.Context, po *domain.PurchaseOrder) (*WriteReport, error) {
	changes := make([]PriceChange, 0, len(po.Items))
	for _, item := range po.Items {
		changes = append(changes, PriceChange{
			ItemID:          item.ID,
			InventoryItemID: item.InventoryItemID,
			Name:            item.Name,
			NewUnitPrice:    item.UnitPrice,
		})
	}
	if len(changes) == 0 {
		return &WriteReport{}, nil
	}
	return r.apply(ctx, po.ID, len(po.Items), changes)
}

func (r *PriceReconciler) apply(ctx context.Context, orderID string, itemCount int, changes []PriceChange) (*WriteReport, error) {
	batches, err := r.locator.Locate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		log.Debug().Str("order_id", orderID).Msg("no batches linked to order, skipping price reconciliation")
		return &WriteReport{}, nil
	}

	updates := make([]batchUpdate, 0, len(batches))
	for i := range batches {
		batch := &batches[i]

		change := matchChange(batch, changes, itemCount)
		if change == nil {
			continue
		}

		base := change.NewUnitPrice
		unit := base + batch.AdditionalCostPerUnit
		if !validPrice(base) || !validPrice(unit) {
			log.Error().Str("order_id", orderID).Str("batch_id", batch.ID).
				Float64("base", base).Float64("unit", unit).
				Msg("computed batch price is not usable, keeping stored values")
			continue
		}

		if batch.BaseUnitPrice != nil &&
			math.Abs(*batch.BaseUnitPrice-base) <= priceWriteEpsilon &&
			math.Abs(batch.UnitPrice-unit) <= priceWriteEpsilon {
			continue
		}

		updates = append(updates, batchUpdate{
			batchID: batch.ID,
			fields: map[string]any{
				"baseUnitPrice": base,
				"unitPrice":     unit,
			},
		})
	}

	return r.writer.apply(ctx, updates), nil
}

// diffItemPrices pairs each new item with its old counterpart, by line id
// first and by catalog id plus name as a fallback, and records every pair
// whose unit price moved beyond the threshold.
func diffItemPrices(oldItems, newItems []domain.OrderItem) []PriceChange {
	var changes []PriceChange
	for _, newItem := range newItems {
		oldItem := findOldItem(oldItems, newItem)
		if oldItem == nil {
			continue
		}
		if math.Abs(newItem.UnitPrice-oldItem.UnitPrice) <= priceChangeThreshold {
			continue
		}
		changes = append(changes, PriceChange{
			ItemID:          newItem.ID,
			InventoryItemID: newItem.InventoryItemID,
			Name:            newItem.Name,
			NewUnitPrice:    newItem.UnitPrice,
		})
	}
	return changes
}

func findOldItem(oldItems []domain.OrderItem, newItem domain.OrderItem) *domain.OrderItem {
	for i := range oldItems {
		if newItem.ID != "" && oldItems[i].ID == newItem.ID {
			return &oldItems[i]
		}
	}
	for i := range oldItems {
		if newItem.InventoryItemID != "" &&
			oldItems[i].InventoryItemID == newItem.InventoryItemID &&
			oldItems[i].Name == newItem.Name {
			return &oldItems[i]
		}
	}
	return nil
}

// matchChange finds the price change a batch should follow, strict to loose:
//
//  1. the exact order line that produced the batch (one order can hold
//     several lines for the same catalog item at different prices);
//  2. catalog item id, line id recorded as catalog id, or exact item name,
//     for batches created before per-line linkage existed;
//  3. unconditional, when the order has a single line and a single change.
//
// No match means no write.
func matchChange(batch *domain.InventoryBatch, changes []PriceChange, itemCount int) *PriceChange {
	linkage, _ := batch.Linkage()
	if linkage.ItemPoID != "" {
		for i := range changes {
			if changes[i].ItemID == linkage.ItemPoID {
				return &changes[i]
			}
		}
	}

	for i := range changes {
		change := &changes[i]
		if batch.InventoryItemID != "" &&
			(batch.InventoryItemID == change.InventoryItemID || batch.InventoryItemID == change.ItemID) {
			return change
		}
		if batch.ItemName != "" && batch.ItemName == change.Name {
			return change
		}
	}

	if itemCount == 1 && len(changes) == 1 {
		return &changes[0]
	}

	return nil
}
