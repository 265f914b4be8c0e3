package inventory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Kardex-api/internal/domain"
	"github.com/jhoicas/Kardex-api/internal/domain/entity"
	"github.com/jhoicas/Kardex-api/internal/domain/repository"
)

// AvailabilityRequest consulta de disponibilidad previa a un movimiento de salida.
type AvailabilityRequest struct {
	WarehouseID string
	ProductID   string
	Quantity    decimal.Decimal
	// ForbidZeroOut rechaza también las salidas que dejarían el saldo exactamente en cero.
	ForbidZeroOut bool
}

// StockAvailabilityGuard valida existencias sin mutar el kardex. Lo usan los flujos de
// venta para rechazar una línea antes de intentar el movimiento; el registrador aplica
// la misma regla (CheckAvailability) bajo bloqueo.
type StockAvailabilityGuard struct {
	stockRepo   repository.StockRepository
	productRepo repository.ProductRepository
}

// NewStockAvailabilityGuard construye el guard con repositorios de lectura (pool).
func NewStockAvailabilityGuard(stockRepo repository.StockRepository, productRepo repository.ProductRepository) *StockAvailabilityGuard {
	return &StockAvailabilityGuard{stockRepo: stockRepo, productRepo: productRepo}
}

// AssertAvailable devuelve nil si la cantidad puede salir, o *domain.InsufficientStockError.
func (g *StockAvailabilityGuard) AssertAvailable(ctx context.Context, req AvailabilityRequest) error {
	if req.ProductID == "" || req.WarehouseID == "" {
		return domain.ErrInvalidInput
	}
	if !req.Quantity.IsPositive() {
		return domain.ErrInvalidQuantity
	}
	product, err := g.productRepo.GetByID(ctx, req.ProductID)
	if err != nil {
		return err
	}
	if product == nil {
		return domain.ErrNotFound
	}
	if !product.TracksStock {
		return nil
	}
	stock, err := g.stockRepo.Get(ctx, req.ProductID, req.WarehouseID)
	if err != nil {
		return err
	}
	return CheckAvailability(product, stock, req.Quantity, req.ForbidZeroOut)
}

// CheckAvailability aplica la regla de existencias sobre un estado ya cargado.
// Productos sin control de existencias siempre pasan.
func CheckAvailability(product *entity.Product, stock *entity.Stock, requested decimal.Decimal, forbidZeroOut bool) error {
	if !product.TracksStock {
		return nil
	}
	remaining := stock.OnHand.Sub(requested)
	if remaining.IsNegative() || (forbidZeroOut && remaining.IsZero()) {
		return &domain.InsufficientStockError{
			ProductID:   stock.ProductID,
			WarehouseID: stock.WarehouseID,
			Available:   stock.OnHand,
			Requested:   requested,
			ZeroOut:     !remaining.IsNegative(),
		}
	}
	return nil
}
