package pricing

import (
	"context"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/pharma-erp/backend/internal/domain"
	"github.com/pharma-erp/backend/internal/store"
)

// priceWriteEpsilon decides whether a computed price differs from the stored
// one enough to warrant a write.
const priceWriteEpsilon = 1e-9

// CostAllocator spreads a purchase order's additional costs (freight,
// customs, etc.) across its linked batches in proportion to each batch's
// initially received quantity.
type CostAllocator struct {
	locator *BatchLocator
	writer  *batchWriter
}

func NewCostAllocator(st store.Store) *CostAllocator {
	return &CostAllocator{
		locator: NewBatchLocator(st),
		writer:  newBatchWriter(st),
	}
}

// AllocateAdditionalCosts recomputes additionalCostPerUnit for every batch
// linked to the order and rewrites unitPrice as base + surcharge. The base
// price is captured from unitPrice the first time a batch is touched and
// reused afterwards, so re-running the allocation never compounds surcharges.
//
// Zero cost, zero linked batches and zero total weight are quiet no-ops.
func (a *CostAllocator) AllocateAdditionalCosts(ctx context.Context, po *domain.PurchaseOrder) (*WriteReport, error) {
	totalGross := po.TotalAdditionalCostGross()
	if totalGross <= 0 {
		log.Debug().Str("order_id", po.ID).Msg("no additional costs to allocate")
		return &WriteReport{}, nil
	}

	batches, err := a.locator.Locate(ctx, po.ID)
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		log.Debug().Str("order_id", po.ID).Msg("no batches linked to order, skipping allocation")
		return &WriteReport{}, nil
	}

	totalWeight := 0.0
	for i := range batches {
		totalWeight += batches[i].AllocationWeight()
	}
	if totalWeight <= 0 {
		log.Warn().Str("order_id", po.ID).Int("batches", len(batches)).
			Msg("linked batches have no received quantity, skipping allocation")
		return &WriteReport{}, nil
	}

	updates := make([]batchUpdate, 0, len(batches))
	for i := range batches {
		batch := &batches[i]
		weight := batch.AllocationWeight()

		proportion := weight / totalWeight
		batchShare := totalGross * proportion
		perUnit := 0.0
		if weight > 0 {
			perUnit = batchShare / weight
		}

		base := batch.EffectiveBasePrice()
		unit := base + perUnit

		if !validPrice(base) || !validPrice(perUnit) || !validPrice(unit) {
			log.Error().Str("order_id", po.ID).Str("batch_id", batch.ID).
				Float64("base", base).Float64("per_unit", perUnit).
				Msg("computed batch price is not usable, keeping stored values")
			continue
		}

		if !allocationChanged(batch, base, perUnit, unit) {
			continue
		}

		updates = append(updates, batchUpdate{
			batchID: batch.ID,
			fields: map[string]any{
				"baseUnitPrice":         base,
				"additionalCostPerUnit": perUnit,
				"unitPrice":             unit,
			},
		})
	}

	return a.writer.apply(ctx, updates), nil
}

func allocationChanged(batch *domain.InventoryBatch, base, perUnit, unit float64) bool {
	if batch.BaseUnitPrice == nil {
		return true
	}
	return math.Abs(*batch.BaseUnitPrice-base) > priceWriteEpsilon ||
		math.Abs(batch.AdditionalCostPerUnit-perUnit) > priceWriteEpsilon ||
		math.Abs(batch.UnitPrice-unit) > priceWriteEpsilon
}

// validPrice rejects values that would corrupt a batch: negative, NaN or
// infinite.
func validPrice(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
