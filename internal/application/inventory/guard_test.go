package inventory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Kardex-api/internal/application/inventory"
	"github.com/jhoicas/Kardex-api/internal/domain"
	"github.com/jhoicas/Kardex-api/internal/domain/entity"
)

func TestStockAvailabilityGuard(t *testing.T) {
	f := newFixture(t)
	f.mustRecord("w1", "p1", entity.KindPurchase, "5", "10")
	guard := inventory.NewStockAvailabilityGuard(f.store.StockRepository(), f.store.ProductRepository())

	tests := []struct {
		name string
		req  inventory.AvailabilityRequest
		want error
	}{
		{"alcanza", inventory.AvailabilityRequest{WarehouseID: "w1", ProductID: "p1", Quantity: d("4")}, nil},
		{"justo", inventory.AvailabilityRequest{WarehouseID: "w1", ProductID: "p1", Quantity: d("5")}, nil},
		{"justo sin dejar en cero", inventory.AvailabilityRequest{WarehouseID: "w1", ProductID: "p1", Quantity: d("5"), ForbidZeroOut: true}, domain.ErrInsufficientStock},
		{"no alcanza", inventory.AvailabilityRequest{WarehouseID: "w1", ProductID: "p1", Quantity: d("6")}, domain.ErrInsufficientStock},
		{"bodega sin movimientos", inventory.AvailabilityRequest{WarehouseID: "w2", ProductID: "p1", Quantity: d("1")}, domain.ErrInsufficientStock},
		{"sin control de stock", inventory.AvailabilityRequest{WarehouseID: "w1", ProductID: "p2", Quantity: d("1000")}, nil},
		{"cantidad cero", inventory.AvailabilityRequest{WarehouseID: "w1", ProductID: "p1", Quantity: d("0")}, domain.ErrInvalidQuantity},
		{"producto inexistente", inventory.AvailabilityRequest{WarehouseID: "w1", ProductID: "nope", Quantity: d("1")}, domain.ErrNotFound},
		{"sin producto", inventory.AvailabilityRequest{WarehouseID: "w1", Quantity: d("1")}, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.AssertAvailable(f.ctx, tt.req)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCheckAvailability_Detalle(t *testing.T) {
	product := &entity.Product{ID: "p1", TracksStock: true}
	stock := &entity.Stock{ProductID: "p1", WarehouseID: "w1", OnHand: d("12")}

	err := inventory.CheckAvailability(product, stock, d("20"), false)
	var insufficient *domain.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "p1", insufficient.ProductID)
	assert.Equal(t, "w1", insufficient.WarehouseID)
	assert.True(t, insufficient.Available.Equal(d("12")))
	assert.True(t, insufficient.Requested.Equal(d("20")))
	assert.Contains(t, insufficient.Error(), "12")
}
