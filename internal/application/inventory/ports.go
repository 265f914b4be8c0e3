package inventory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Kardex-api/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Garantiza atomicidad para el kardex: stock, costo del producto y entrada del libro se
// confirman juntos o no se confirma ninguno.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		kardexRepo repository.KardexRepository,
		stockRepo repository.StockRepository,
		productRepo repository.ProductRepository,
	) error) error
}

// KeyLocker serializa secciones críticas por clave entre procesos (opcional).
// Si la clave no se obtiene dentro del presupuesto de reintentos devuelve domain.ErrConcurrencyConflict.
type KeyLocker interface {
	Lock(ctx context.Context, keys ...string) (release func(), err error)
}

// StockCache guarda existencias con TTL explícito para las lecturas de LedgerQuery.
// warehouseID vacío identifica el total del producto.
type StockCache interface {
	Get(ctx context.Context, productID, warehouseID string) (decimal.Decimal, bool, error)
	Set(ctx context.Context, productID, warehouseID string, onHand decimal.Decimal) error
	Invalidate(ctx context.Context, productID string, warehouseIDs ...string) error
}
