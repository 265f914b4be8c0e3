package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MovementKind es el tipo de movimiento del kardex. Los valores se persisten
// y los leen herramientas de conciliación externas: no renombrar.
type MovementKind string

const (
	KindPurchase              MovementKind = "purchase"
	KindProductionOutput      MovementKind = "production_output"
	KindTransferIn            MovementKind = "transfer_in"
	KindCustomerReturn        MovementKind = "customer_return"
	KindSale                  MovementKind = "sale"
	KindTransferOut           MovementKind = "transfer_out"
	KindProductionConsumption MovementKind = "production_consumption"
	KindSupplierReturn        MovementKind = "supplier_return"
	KindAdjustment            MovementKind = "adjustment"
)

// AdjustmentDirection indica el sentido de un ajuste. Solo aplica a KindAdjustment.
type AdjustmentDirection string

const (
	AdjustmentNone     AdjustmentDirection = ""
	AdjustmentIncrease AdjustmentDirection = "increase"
	AdjustmentDecrease AdjustmentDirection = "decrease"
)

// Direction es el efecto de un movimiento sobre las existencias.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// Reference apunta al documento que originó el movimiento (factura, orden de compra...).
// Se persiste como "tipo:id".
type Reference struct {
	DocumentType string
	DocumentID   string
}

// String devuelve el formato estable "tipo:id". Vacío si no hay documento.
func (r Reference) String() string {
	if r.DocumentType == "" && r.DocumentID == "" {
		return ""
	}
	return r.DocumentType + ":" + r.DocumentID
}

// ParseReference interpreta "tipo:id". El id puede contener ':'.
func ParseReference(s string) Reference {
	if s == "" {
		return Reference{}
	}
	docType, docID, found := strings.Cut(s, ":")
	if !found {
		return Reference{DocumentID: s}
	}
	return Reference{DocumentType: docType, DocumentID: docID}
}

// KardexEntry es un registro inmutable del kardex: una fila por movimiento con la
// foto completa de antes y después. Las correcciones se hacen con un movimiento compensatorio.
type KardexEntry struct {
	ID                  string
	Seq                 int64 // orden total de inserción; lo asigna el repositorio
	WarehouseID         string
	ProductID           string
	OccurredAt          time.Time
	Kind                MovementKind
	AdjustmentDirection AdjustmentDirection
	Direction           Direction
	Quantity            decimal.Decimal // siempre positiva
	UnitCost            decimal.Decimal
	TotalCost           decimal.Decimal // Quantity * UnitCost
	QuantityBefore      decimal.Decimal
	QuantityAfter       decimal.Decimal
	AverageCostAfter    decimal.Decimal
	Reference           Reference
	Note                string
	CreatedBy           string
	RequestID           string
}

// SignedQuantity devuelve la cantidad con signo según la dirección.
func (e *KardexEntry) SignedQuantity() decimal.Decimal {
	if e.Direction == DirectionOut {
		return e.Quantity.Neg()
	}
	return e.Quantity
}
