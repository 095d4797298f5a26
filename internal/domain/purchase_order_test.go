package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalAdditionalCostGross(t *testing.T) {
	t.Run("sums itemized costs with VAT", func(t *testing.T) {
		po := &PurchaseOrder{
			AdditionalCostsItems: []AdditionalCostItem{
				{Value: 100, VATRate: 23},
				{Value: 50, VATRate: 0},
			},
		}

		assert.InDelta(t, 173.0, po.TotalAdditionalCostGross(), 1e-9)
	})

	t.Run("legacy flat field is taken as already gross", func(t *testing.T) {
		po := &PurchaseOrder{AdditionalCosts: 80}

		assert.Equal(t, 80.0, po.TotalAdditionalCostGross())
	})

	t.Run("itemized model wins over legacy field when both are present", func(t *testing.T) {
		po := &PurchaseOrder{
			AdditionalCostsItems: []AdditionalCostItem{{Value: 10, VATRate: 0}},
			AdditionalCosts:      999,
		}

		assert.Equal(t, 10.0, po.TotalAdditionalCostGross())
	})

	t.Run("no costs at all", func(t *testing.T) {
		po := &PurchaseOrder{}

		assert.Equal(t, 0.0, po.TotalAdditionalCostGross())
	})
}

func TestFindItem(t *testing.T) {
	po := &PurchaseOrder{
		Items: []OrderItem{
			{ID: "line-1", Name: "Paracetamol API"},
			{ID: "line-2", Name: "Excipient"},
		},
	}

	item := po.FindItem("line-2")
	assert.NotNil(t, item)
	assert.Equal(t, "Excipient", item.Name)

	assert.Nil(t, po.FindItem("line-3"))
}
