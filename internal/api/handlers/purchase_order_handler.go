package handlers

import (
	"errors"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/pharma-erp/backend/internal/cache"
	"github.com/pharma-erp/backend/internal/domain"
	"github.com/pharma-erp/backend/internal/pricing"
	"github.com/pharma-erp/backend/internal/store"
)

// PurchaseOrderHandler serves order reads and the order-update path that
// drives batch price propagation.
type PurchaseOrderHandler struct {
	store      store.Store
	propagator *pricing.Propagator
	cache      cache.OrderCache
}

func NewPurchaseOrderHandler(st store.Store, propagator *pricing.Propagator, orderCache cache.OrderCache) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{
		store:      st,
		propagator: propagator,
		cache:      orderCache,
	}
}

// GetOrder returns a purchase order, read through the cache.
func (h *PurchaseOrderHandler) GetOrder(c *gin.Context) {
	orderID := c.Param("id")

	if po, hit, err := h.cache.GetOrder(c.Request.Context(), orderID); err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("order cache read failed")
	} else if hit {
		c.JSON(http.StatusOK, po)
		return
	}

	po, err := h.propagator.LoadOrder(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "purchase order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch purchase order"})
		return
	}

	if err := h.cache.SetOrder(c.Request.Context(), po); err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("order cache write failed")
	}

	c.JSON(http.StatusOK, po)
}

type updateOrderResponse struct {
	Order            *domain.PurchaseOrder `json:"order"`
	CostPropagation  *pricing.WriteReport  `json:"costPropagation,omitempty"`
	PricePropagation *pricing.WriteReport  `json:"pricePropagation,omitempty"`
}

// UpdateOrder replaces an order's items and additional costs wholesale,
// persists it, and synchronously runs the propagation paths touched by the
// change before answering. Partial propagation failures are reported, not
// rolled back.
func (h *PurchaseOrderHandler) UpdateOrder(c *gin.Context) {
	orderID := c.Param("id")
	ctx := c.Request.Context()

	var updated domain.PurchaseOrder
	if err := c.ShouldBindJSON(&updated); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid purchase order payload"})
		return
	}
	updated.ID = orderID

	previous, err := h.propagator.LoadOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "purchase order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load purchase order"})
		return
	}

	if err := h.store.Put(ctx, store.CollectionPurchaseOrders, orderID, &updated); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save purchase order"})
		return
	}

	resp := updateOrderResponse{Order: &updated}

	if additionalCostsChanged(previous, &updated) {
		report, err := h.propagator.OnAdditionalCostsChanged(ctx, &updated)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cost propagation failed"})
			return
		}
		resp.CostPropagation = report
	}

	report, err := h.propagator.OnLineItemPricesChanged(ctx, orderID, previous.Items, updated.Items)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "price propagation failed"})
		return
	}
	resp.PricePropagation = report

	status := http.StatusOK
	if (resp.CostPropagation != nil && !resp.CostPropagation.Ok()) || !resp.PricePropagation.Ok() {
		// Some batch writes failed; surface that without hiding the ones
		// that did land
		status = http.StatusMultiStatus
	}
	c.JSON(status, resp)
}

// ResyncOrder is the admin repair endpoint: base prices are rebuilt from the
// order's current line prices and additional costs are re-allocated.
func (h *PurchaseOrderHandler) ResyncOrder(c *gin.Context) {
	orderID := c.Param("id")

	report, err := h.propagator.Resync(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "purchase order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resync failed"})
		return
	}

	status := http.StatusOK
	if !report.Ok() {
		status = http.StatusMultiStatus
	}
	c.JSON(status, report)
}

// GetOrderBatches lists the inventory batches linked to an order.
func (h *PurchaseOrderHandler) GetOrderBatches(c *gin.Context) {
	orderID := c.Param("id")

	batches, err := h.propagator.LinkedBatches(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch batches"})
		return
	}

	c.JSON(http.StatusOK, batches)
}

func additionalCostsChanged(previous, updated *domain.PurchaseOrder) bool {
	return math.Abs(previous.TotalAdditionalCostGross()-updated.TotalAdditionalCostGross()) > 1e-9
}
