package pricing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pharma-erp/backend/internal/domain"
	"github.com/pharma-erp/backend/internal/store"
)

// CacheInvalidator drops cached reads for an order after its batches were
// rewritten. The order editor owns the cache; propagation only signals it.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, orderID string) error
}

// Propagator ties the locator, allocator and reconciler together behind the
// two order-mutation entry points plus the manual resync. It holds no state
// between invocations; every call recomputes from the store.
type Propagator struct {
	store      store.Store
	locator    *BatchLocator
	allocator  *CostAllocator
	reconciler *PriceReconciler
	cache      CacheInvalidator
}

// NewPropagator builds a propagator. cache may be nil when the caller keeps
// no read-through cache.
func NewPropagator(st store.Store, cache CacheInvalidator) *Propagator {
	return &Propagator{
		store:      st,
		locator:    NewBatchLocator(st),
		allocator:  NewCostAllocator(st),
		reconciler: NewPriceReconciler(st),
		cache:      cache,
	}
}

// OnAdditionalCostsChanged must be called after an order's additional costs
// were persisted. It reallocates the order's gross additional cost across
// the linked batches.
func (p *Propagator) OnAdditionalCostsChanged(ctx context.Context, po *domain.PurchaseOrder) (*WriteReport, error) {
	runID := uuid.NewString()
	log.Info().Str("run_id", runID).Str("order_id", po.ID).Msg("propagating additional cost change")
	defer p.invalidate(ctx, po.ID)

	report, err := p.allocator.AllocateAdditionalCosts(ctx, po)
	if err != nil {
		return nil, fmt.Errorf("additional cost allocation for order %s: %w", po.ID, err)
	}

	logReport(runID, po.ID, report)
	return report, nil
}

// OnLineItemPricesChanged must be called after an order's items array was
// replaced, with the pre- and post-update snapshots.
func (p *Propagator) OnLineItemPricesChanged(ctx context.Context, orderID string, oldItems, newItems []domain.OrderItem) (*WriteReport, error) {
	runID := uuid.NewString()
	log.Info().Str("run_id", runID).Str("order_id", orderID).Msg("propagating line price changes")
	defer p.invalidate(ctx, orderID)

	report, err := p.reconciler.ReconcileBasePrices(ctx, orderID, oldItems, newItems)
	if err != nil {
		return nil, fmt.Errorf("price reconciliation for order %s: %w", orderID, err)
	}

	logReport(runID, orderID, report)
	return report, nil
}

// Resync is the administrator repair path: it rewrites every linked batch's
// base price from the order's current line prices (no diff) and then re-runs
// the cost allocation, restoring unitPrice = base + surcharge in one pass.
// Both steps are idempotent, so resync can be repeated freely.
func (p *Propagator) Resync(ctx context.Context, orderID string) (*WriteReport, error) {
	runID := uuid.NewString()
	log.Info().Str("run_id", runID).Str("order_id", orderID).Msg("resyncing batch prices")
	defer p.invalidate(ctx, orderID)

	po, err := p.LoadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	report, err := p.reconciler.ResyncBasePrices(ctx, po)
	if err != nil {
		return nil, fmt.Errorf("base price resync for order %s: %w", orderID, err)
	}

	allocReport, err := p.allocator.AllocateAdditionalCosts(ctx, po)
	if err != nil {
		return nil, fmt.Errorf("additional cost allocation for order %s: %w", orderID, err)
	}
	report.Merge(allocReport)

	logReport(runID, orderID, report)
	return report, nil
}

// LinkedBatches exposes the locator for read-only inspection.
func (p *Propagator) LinkedBatches(ctx context.Context, orderID string) ([]domain.InventoryBatch, error) {
	return p.locator.Locate(ctx, orderID)
}

// LoadOrder fetches and decodes a purchase order document.
func (p *Propagator) LoadOrder(ctx context.Context, orderID string) (*domain.PurchaseOrder, error) {
	doc, err := p.store.GetByID(ctx, store.CollectionPurchaseOrders, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	var po domain.PurchaseOrder
	if err := json.Unmarshal(doc, &po); err != nil {
		return nil, fmt.Errorf("failed to decode order %s: %w", orderID, err)
	}
	if po.ID == "" {
		po.ID = orderID
	}
	return &po, nil
}

// invalidate drops cached order reads after propagation, on success and on
// partial failure alike.
func (p *Propagator) invalidate(ctx context.Context, orderID string) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Invalidate(ctx, orderID); err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("failed to invalidate order cache")
	}
}

func logReport(runID, orderID string, report *WriteReport) {
	if report.Ok() {
		log.Info().Str("run_id", runID).Str("order_id", orderID).
			Int("updated", len(report.Succeeded)).
			Msg("batch price propagation finished")
		return
	}
	log.Warn().Str("run_id", runID).Str("order_id", orderID).
		Int("updated", len(report.Succeeded)).
		Int("failed", len(report.Failed)).
		Msg("batch price propagation finished with failures")
}
