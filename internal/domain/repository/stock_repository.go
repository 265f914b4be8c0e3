package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Kardex-api/internal/domain/entity"
)

// StockRepository define el puerto para consultar/actualizar stock por bodega+producto.
// Las escrituras solo son válidas dentro de una transacción (TxRunner).
type StockRepository interface {
	// Get devuelve el stock actual o un registro en cero si la pareja aún no tiene movimientos.
	Get(ctx context.Context, productID, warehouseID string) (*entity.Stock, error)
	// GetOrCreateForUpdate crea la fila en cero si no existe y la bloquea (SELECT FOR UPDATE).
	GetOrCreateForUpdate(ctx context.Context, productID, warehouseID string) (*entity.Stock, error)
	// Update guarda OnHand si Version coincide con la almacenada; incrementa Version.
	// Devuelve domain.ErrConcurrencyConflict si la versión cambió.
	Update(ctx context.Context, stock *entity.Stock) error
	// SumByProduct suma las existencias del producto en todas las bodegas.
	SumByProduct(ctx context.Context, productID string) (decimal.Decimal, error)
	// ListByProduct devuelve las filas de stock del producto (una por bodega con movimientos).
	ListByProduct(ctx context.Context, productID string) ([]*entity.Stock, error)
}
