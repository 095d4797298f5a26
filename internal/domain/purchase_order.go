package domain

// OrderItem is a single line on a purchase order. ID is stable within the
// order; InventoryItemID links the line to a catalog item when known.
type OrderItem struct {
	ID              string  `json:"id"`
	InventoryItemID string  `json:"inventoryItemId,omitempty"`
	Name            string  `json:"name"`
	UnitPrice       float64 `json:"unitPrice"`
	VATRate         float64 `json:"vatRate"`
}

// AdditionalCostItem is a non-line cost on a purchase order (freight,
// customs, handling). Value is net; VATRate is a percentage.
type AdditionalCostItem struct {
	Value   float64 `json:"value"`
	VATRate float64 `json:"vatRate"`
}

// PurchaseOrder holds the fields of an order this subsystem reads. Items and
// AdditionalCostsItems are only ever replaced wholesale by the order editor.
// Older orders carry a single flat AdditionalCosts amount instead of the item
// list; that amount is already gross.
type PurchaseOrder struct {
	ID                   string               `json:"id"`
	Number               string               `json:"number,omitempty"`
	SupplierID           string               `json:"supplierId,omitempty"`
	Items                []OrderItem          `json:"items"`
	AdditionalCostsItems []AdditionalCostItem `json:"additionalCostsItems,omitempty"`
	AdditionalCosts      float64              `json:"additionalCosts,omitempty"`
}

// TotalAdditionalCostGross returns the gross additional cost of the order.
// With the itemized model each item is net plus VAT; the legacy flat field is
// taken as-is because it was stored gross.
func (po *PurchaseOrder) TotalAdditionalCostGross() float64 {
	if len(po.AdditionalCostsItems) > 0 {
		total := 0.0
		for _, item := range po.AdditionalCostsItems {
			net := item.Value
			total += net + net*item.VATRate/100
		}
		return total
	}
	return po.AdditionalCosts
}

// FindItem returns the line item with the given id, or nil.
func (po *PurchaseOrder) FindItem(itemID string) *OrderItem {
	for i := range po.Items {
		if po.Items[i].ID == itemID {
			return &po.Items[i]
		}
	}
	return nil
}
