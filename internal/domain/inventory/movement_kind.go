package inventory

import (
	"github.com/jhoicas/Kardex-api/internal/domain"
	"github.com/jhoicas/Kardex-api/internal/domain/entity"
)

// UnitCostSource indica de dónde sale el costo unitario que se registra en el kardex.
type UnitCostSource int

const (
	// CostFromRequest usa el costo enviado por el documento (compra, producción).
	CostFromRequest UnitCostSource = iota
	// CostFromAverage usa el costo promedio vigente del producto.
	CostFromAverage
	// CostFromHistory usa el costo histórico del documento si viene (> 0), si no el promedio.
	CostFromHistory
)

// Classification describe cómo afecta un movimiento al kardex.
type Classification struct {
	Kind           entity.MovementKind
	Direction      entity.Direction
	AffectsAverage bool
	CostSource     UnitCostSource
}

// IsEntry indica si el movimiento suma existencias.
func (c Classification) IsEntry() bool { return c.Direction == entity.DirectionIn }

var classifications = map[entity.MovementKind]Classification{
	entity.KindPurchase:              {Direction: entity.DirectionIn, AffectsAverage: true, CostSource: CostFromRequest},
	entity.KindProductionOutput:      {Direction: entity.DirectionIn, AffectsAverage: true, CostSource: CostFromRequest},
	entity.KindTransferIn:            {Direction: entity.DirectionIn, CostSource: CostFromAverage},
	entity.KindCustomerReturn:        {Direction: entity.DirectionIn, CostSource: CostFromHistory},
	entity.KindSale:                  {Direction: entity.DirectionOut, CostSource: CostFromAverage},
	entity.KindTransferOut:           {Direction: entity.DirectionOut, CostSource: CostFromAverage},
	entity.KindProductionConsumption: {Direction: entity.DirectionOut, CostSource: CostFromAverage},
	entity.KindSupplierReturn:        {Direction: entity.DirectionOut, CostSource: CostFromAverage},
}

// Classify clasifica un tipo de movimiento. Los ajustes requieren dirección explícita:
// un aumento es una entrada costeada (recalcula el promedio con el costo enviado) y
// una disminución es una salida al costo promedio vigente.
func Classify(kind entity.MovementKind, adj entity.AdjustmentDirection) (Classification, error) {
	if kind == entity.KindAdjustment {
		switch adj {
		case entity.AdjustmentIncrease:
			return Classification{Kind: kind, Direction: entity.DirectionIn, AffectsAverage: true, CostSource: CostFromRequest}, nil
		case entity.AdjustmentDecrease:
			return Classification{Kind: kind, Direction: entity.DirectionOut, CostSource: CostFromAverage}, nil
		default:
			return Classification{}, domain.ErrInvalidInput
		}
	}
	c, ok := classifications[kind]
	if !ok {
		return Classification{}, domain.ErrInvalidMovementKind
	}
	if adj != entity.AdjustmentNone {
		return Classification{}, domain.ErrInvalidInput
	}
	c.Kind = kind
	return c, nil
}

// Kinds devuelve la enumeración estable de tipos de movimiento.
func Kinds() []entity.MovementKind {
	return []entity.MovementKind{
		entity.KindPurchase,
		entity.KindProductionOutput,
		entity.KindTransferIn,
		entity.KindCustomerReturn,
		entity.KindSale,
		entity.KindTransferOut,
		entity.KindProductionConsumption,
		entity.KindSupplierReturn,
		entity.KindAdjustment,
	}
}
