package domain

import "time"

// PurchaseOrderRef is the current linkage shape stamped on a batch by the
// receiving flow: the order id plus the specific line item that produced it.
type PurchaseOrderRef struct {
	ID       string `json:"id"`
	ItemPoID string `json:"itemPoId,omitempty"`
}

// SourceRef is the legacy linkage shape. Batches created before per-line
// linkage was recorded carry only the order id, sometimes the line id.
type SourceRef struct {
	SourceType string `json:"sourceType"`
	OrderID    string `json:"orderId"`
	ItemPoID   string `json:"itemPoId,omitempty"`
}

// SourceTypePurchase marks a legacy linkage that points at a purchase order.
const SourceTypePurchase = "purchase"

// Linkage is the normalized batch-to-order reference resolved from either
// stored shape.
type Linkage struct {
	OrderID  string
	ItemPoID string
}

// InventoryBatch is a received lot of stock. This subsystem rewrites only the
// three price fields; quantities and linkage belong to the receiving and
// consumption flows.
//
// UnitPrice is derived: after any propagation run it equals
// BaseUnitPrice + AdditionalCostPerUnit.
type InventoryBatch struct {
	ID                    string            `json:"id"`
	InventoryItemID       string            `json:"inventoryItemId,omitempty"`
	ItemName              string            `json:"itemName,omitempty"`
	BatchNumber           string            `json:"batchNumber,omitempty"`
	Quantity              float64           `json:"quantity"`
	InitialQuantity       float64           `json:"initialQuantity,omitempty"`
	BaseUnitPrice         *float64          `json:"baseUnitPrice,omitempty"`
	AdditionalCostPerUnit float64           `json:"additionalCostPerUnit,omitempty"`
	UnitPrice             float64           `json:"unitPrice"`
	PurchaseOrderDetails  *PurchaseOrderRef `json:"purchaseOrderDetails,omitempty"`
	SourceDetails         *SourceRef        `json:"sourceDetails,omitempty"`
	UpdatedAt             *time.Time        `json:"updatedAt,omitempty"`
}

// Linkage resolves the stored reference back to the originating order,
// preferring the current shape over the legacy one. The second return is
// false when the batch carries no purchase linkage at all.
func (b *InventoryBatch) Linkage() (Linkage, bool) {
	if b.PurchaseOrderDetails != nil && b.PurchaseOrderDetails.ID != "" {
		return Linkage{
			OrderID:  b.PurchaseOrderDetails.ID,
			ItemPoID: b.PurchaseOrderDetails.ItemPoID,
		}, true
	}
	if b.SourceDetails != nil && b.SourceDetails.SourceType == SourceTypePurchase && b.SourceDetails.OrderID != "" {
		return Linkage{
			OrderID:  b.SourceDetails.OrderID,
			ItemPoID: b.SourceDetails.ItemPoID,
		}, true
	}
	return Linkage{}, false
}

// AllocationWeight is the quantity used for proportional cost apportionment:
// the initially received amount, falling back to the current quantity for
// batches recorded before initialQuantity existed.
func (b *InventoryBatch) AllocationWeight() float64 {
	if b.InitialQuantity > 0 {
		return b.InitialQuantity
	}
	return b.Quantity
}

// EffectiveBasePrice returns the stored base price, or the current unit price
// for a batch this subsystem has never touched. Reusing the stored base on
// later runs keeps prior surcharges from compounding into it.
func (b *InventoryBatch) EffectiveBasePrice() float64 {
	if b.BaseUnitPrice != nil {
		return *b.BaseUnitPrice
	}
	return b.UnitPrice
}
