package inventory

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Kardex-api/internal/domain"
)

// AverageCostScale es la cantidad de decimales con que se guarda el costo promedio.
const AverageCostScale int32 = 6

// CostCalculator implementa la lógica de costo promedio ponderado (servicio de dominio).
// NuevoCosto = ((StockActual * CostoActual) + (CantEntrada * CostoEntrada)) / (StockActual + CantEntrada)
// Un stock actual negativo (productos sin control de existencias) pesa como cero.
func CostCalculator(stockActual, costoActual, cantEntrada, costoEntrada decimal.Decimal) decimal.Decimal {
	if stockActual.IsNegative() {
		stockActual = decimal.Zero
	}
	sum := stockActual.Add(cantEntrada)
	if sum.LessThanOrEqual(decimal.Zero) {
		return costoActual
	}
	num := stockActual.Mul(costoActual).Add(cantEntrada.Mul(costoEntrada))
	return num.Div(sum).Round(AverageCostScale)
}

// CostInput entrada pura del motor de costos.
type CostInput struct {
	OnHandBefore   decimal.Decimal
	AverageBefore  decimal.Decimal
	Quantity       decimal.Decimal
	UnitCost       decimal.Decimal
	IsEntry        bool
	AffectsAverage bool
}

// CostResult saldo y promedio resultantes.
type CostResult struct {
	OnHandAfter  decimal.Decimal
	AverageAfter decimal.Decimal
}

// ApplyMovement calcula el nuevo saldo y el nuevo promedio sin efectos secundarios.
// Las salidas nunca cambian el promedio. Cantidad <= 0 es un error de programación del llamador.
func ApplyMovement(in CostInput) (CostResult, error) {
	if !in.Quantity.IsPositive() {
		return CostResult{}, domain.ErrInvalidQuantity
	}
	if in.UnitCost.IsNegative() || in.AverageBefore.IsNegative() {
		return CostResult{}, domain.ErrInvalidInput
	}
	if !in.IsEntry {
		return CostResult{
			OnHandAfter:  in.OnHandBefore.Sub(in.Quantity),
			AverageAfter: in.AverageBefore,
		}, nil
	}
	avg := in.AverageBefore
	if in.AffectsAverage {
		avg = CostCalculator(in.OnHandBefore, in.AverageBefore, in.Quantity, in.UnitCost)
	}
	return CostResult{
		OnHandAfter:  in.OnHandBefore.Add(in.Quantity),
		AverageAfter: avg,
	}, nil
}
