package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordMovementRequest body para POST /api/kardex/movements. Una línea de documento por
// petición; cantidad siempre positiva, la dirección la define kind.
type RecordMovementRequest struct {
	WarehouseID         string           `json:"warehouse_id" validate:"required"`
	ProductID           string           `json:"product_id" validate:"required"`
	Kind                string           `json:"kind" validate:"required"`
	AdjustmentDirection string           `json:"adjustment_direction" validate:"omitempty,oneof=increase decrease"`
	Quantity            decimal.Decimal  `json:"quantity"`
	UnitCost            *decimal.Decimal `json:"unit_cost,omitempty"` // entradas con costo; customer_return: costo histórico opcional
	ReferenceType       string           `json:"reference_type" validate:"max=50"`
	ReferenceID         string           `json:"reference_id" validate:"max=100"`
	Note                string           `json:"note" validate:"max=500"`
	ForbidZeroOut       bool             `json:"forbid_zero_out"`
}

// RecordDocumentRequest body para POST /api/kardex/documents: todas las líneas de un
// documento se registran juntas o ninguna.
type RecordDocumentRequest struct {
	Lines []RecordMovementRequest `json:"lines" validate:"required,min=1,max=500,dive"`
}

// KardexDocumentResponse entradas creadas, en el orden de las líneas.
type KardexDocumentResponse struct {
	Items []KardexEntryResponse `json:"items"`
}

// TransferRequest body para POST /api/kardex/transfers.
type TransferRequest struct {
	ProductID       string          `json:"product_id" validate:"required"`
	FromWarehouseID string          `json:"from_warehouse_id" validate:"required"`
	ToWarehouseID   string          `json:"to_warehouse_id" validate:"required,nefield=FromWarehouseID"`
	Quantity        decimal.Decimal `json:"quantity"`
	ReferenceType   string          `json:"reference_type" validate:"max=50"`
	ReferenceID     string          `json:"reference_id" validate:"max=100"`
	Note            string          `json:"note" validate:"max=500"`
	ForbidZeroOut   bool            `json:"forbid_zero_out"`
}

// AvailabilityRequest body para POST /api/kardex/availability.
type AvailabilityRequest struct {
	WarehouseID   string          `json:"warehouse_id" validate:"required"`
	ProductID     string          `json:"product_id" validate:"required"`
	Quantity      decimal.Decimal `json:"quantity"`
	ForbidZeroOut bool            `json:"forbid_zero_out"`
}

// AvailabilityResponse resultado de la consulta de disponibilidad.
type AvailabilityResponse struct {
	Available bool `json:"available"`
}

// KardexEntryResponse una fila del kardex.
type KardexEntryResponse struct {
	ID                  string          `json:"id"`
	Seq                 int64           `json:"seq"`
	WarehouseID         string          `json:"warehouse_id"`
	ProductID           string          `json:"product_id"`
	OccurredAt          time.Time       `json:"occurred_at"`
	Kind                string          `json:"kind"`
	AdjustmentDirection string          `json:"adjustment_direction,omitempty"`
	Direction           string          `json:"direction"`
	Quantity            decimal.Decimal `json:"quantity"`
	UnitCost            decimal.Decimal `json:"unit_cost"`
	TotalCost           decimal.Decimal `json:"total_cost"`
	QuantityBefore      decimal.Decimal `json:"quantity_before"`
	QuantityAfter       decimal.Decimal `json:"quantity_after"`
	AverageCostAfter    decimal.Decimal `json:"average_cost_after"`
	ReferenceType       string          `json:"reference_type,omitempty"`
	ReferenceID         string          `json:"reference_id,omitempty"`
	Note                string          `json:"note,omitempty"`
	CreatedBy           string          `json:"created_by"`
	RequestID           string          `json:"request_id,omitempty"`
}

// TransferResponse las dos entradas del traslado.
type TransferResponse struct {
	Out KardexEntryResponse `json:"out"`
	In  KardexEntryResponse `json:"in"`
}

// KardexHistoryResponse página del historial. NextAfterSeq es el cursor para la
// siguiente página (0 si no hay más).
type KardexHistoryResponse struct {
	Items        []KardexEntryResponse `json:"items"`
	NextAfterSeq int64                 `json:"next_after_seq,omitempty"`
}

// StockResponse existencias actuales (WarehouseID vacío = total del producto).
type StockResponse struct {
	ProductID   string          `json:"product_id"`
	WarehouseID string          `json:"warehouse_id,omitempty"`
	OnHand      decimal.Decimal `json:"on_hand"`
}

// ReconcileResponse resultado de repetir el historial contra el stock guardado.
type ReconcileResponse struct {
	ProductID   string          `json:"product_id"`
	WarehouseID string          `json:"warehouse_id"`
	Entries     int             `json:"entries"`
	Replayed    decimal.Decimal `json:"replayed"`
	Stored      decimal.Decimal `json:"stored"`
	BrokenAtSeq int64           `json:"broken_at_seq,omitempty"`
	Consistent  bool            `json:"consistent"`
}
