package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Kardex-api/internal/application/dto"
	"github.com/jhoicas/Kardex-api/internal/application/inventory"
	"github.com/jhoicas/Kardex-api/internal/application/usecase"
	"github.com/jhoicas/Kardex-api/internal/domain/entity"
	"github.com/jhoicas/Kardex-api/internal/domain/repository"
)

// KardexHandler expone el registrador de movimientos, el guard de existencias y las
// consultas del kardex (protegido).
type KardexHandler struct {
	recorder *inventory.MovementRecorder
	guard    *inventory.StockAvailabilityGuard
	ledger   *inventory.LedgerQuery
	products *usecase.ProductUseCase
}

// NewKardexHandler construye el handler.
func NewKardexHandler(
	recorder *inventory.MovementRecorder,
	guard *inventory.StockAvailabilityGuard,
	ledger *inventory.LedgerQuery,
	products *usecase.ProductUseCase,
) *KardexHandler {
	return &KardexHandler{recorder: recorder, guard: guard, ledger: ledger, products: products}
}

// El vendedor solo origina ventas y devoluciones de clientes.
var vendedorKinds = map[entity.MovementKind]bool{
	entity.KindSale:           true,
	entity.KindCustomerReturn: true,
}

// RecordMovement godoc
// @Summary      Registrar movimiento en el kardex
// @Description  Entradas recalculan el costo promedio; salidas se costean al promedio vigente.
// @Tags         kardex
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RecordMovementRequest  true  "warehouse_id, product_id, kind, quantity, unit_cost (entradas)"
// @Success      201   {object}  dto.KardexEntryResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/kardex/movements [post]
func (h *KardexHandler) RecordMovement(c *fiber.Ctx) error {
	var in dto.RecordMovementRequest
	if ok, err := bindJSON(c, &in); !ok {
		return err
	}
	actor := Actor(c)
	if !allowedKind(actor, in.Kind) {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "el rol vendedor solo registra ventas y devoluciones"})
	}
	entry, err := h.recorder.RecordMovement(c.UserContext(), actor, toMovementRequest(in))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toKardexEntryResponse(entry))
}

// RecordDocument godoc
// @Summary      Registrar documento de varias líneas
// @Description  Todas las líneas se aplican en una sola transacción o ninguna. Los errores
//
//	de una línea traen details.line con su número (desde 1).
//
// @Tags         kardex
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RecordDocumentRequest  true  "lines: hasta 500 movimientos"
// @Success      201   {object}  dto.KardexDocumentResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/kardex/documents [post]
func (h *KardexHandler) RecordDocument(c *fiber.Ctx) error {
	var in dto.RecordDocumentRequest
	if ok, err := bindJSON(c, &in); !ok {
		return err
	}
	actor := Actor(c)
	reqs := make([]inventory.MovementRequest, 0, len(in.Lines))
	for i, line := range in.Lines {
		if !allowedKind(actor, line.Kind) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Code:    "FORBIDDEN",
				Message: "el rol vendedor solo registra ventas y devoluciones",
				Details: map[string]any{"line": i + 1},
			})
		}
		reqs = append(reqs, toMovementRequest(line))
	}
	entries, err := h.recorder.RecordMovements(c.UserContext(), actor, reqs)
	if err != nil {
		return writeError(c, err)
	}
	out := dto.KardexDocumentResponse{Items: make([]dto.KardexEntryResponse, 0, len(entries))}
	for _, e := range entries {
		out.Items = append(out.Items, toKardexEntryResponse(e))
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

func allowedKind(actor entity.ActorContext, kind string) bool {
	return actor.Role != entity.RoleVendedor || vendedorKinds[entity.MovementKind(kind)]
}

func toMovementRequest(in dto.RecordMovementRequest) inventory.MovementRequest {
	req := inventory.MovementRequest{
		WarehouseID:   in.WarehouseID,
		ProductID:     in.ProductID,
		Kind:          entity.MovementKind(in.Kind),
		Adjustment:    entity.AdjustmentDirection(in.AdjustmentDirection),
		Quantity:      in.Quantity,
		Reference:     entity.Reference{DocumentType: in.ReferenceType, DocumentID: in.ReferenceID},
		Note:          in.Note,
		ForbidZeroOut: in.ForbidZeroOut,
	}
	if in.UnitCost != nil {
		req.UnitCost = *in.UnitCost
	}
	return req
}

// Transfer godoc
// @Summary      Trasladar entre bodegas
// @Tags         kardex
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.TransferRequest  true  "product_id, from_warehouse_id, to_warehouse_id, quantity"
// @Success      201   {object}  dto.TransferResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/kardex/transfers [post]
func (h *KardexHandler) Transfer(c *fiber.Ctx) error {
	var in dto.TransferRequest
	if ok, err := bindJSON(c, &in); !ok {
		return err
	}
	out, inEntry, err := h.recorder.Transfer(c.UserContext(), Actor(c), inventory.TransferRequest{
		ProductID:       in.ProductID,
		FromWarehouseID: in.FromWarehouseID,
		ToWarehouseID:   in.ToWarehouseID,
		Quantity:        in.Quantity,
		Reference:       entity.Reference{DocumentType: in.ReferenceType, DocumentID: in.ReferenceID},
		Note:            in.Note,
		ForbidZeroOut:   in.ForbidZeroOut,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.TransferResponse{
		Out: toKardexEntryResponse(out),
		In:  toKardexEntryResponse(inEntry),
	})
}

// CheckAvailability godoc
// @Summary      Verificar disponibilidad
// @Description  200 si alcanza, 409 INSUFFICIENT_STOCK si no. No reserva stock.
// @Tags         kardex
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.AvailabilityRequest  true  "warehouse_id, product_id, quantity"
// @Success      200   {object}  dto.AvailabilityResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/kardex/availability [post]
func (h *KardexHandler) CheckAvailability(c *fiber.Ctx) error {
	var in dto.AvailabilityRequest
	if ok, err := bindJSON(c, &in); !ok {
		return err
	}
	if ok, err := h.ownProduct(c, in.ProductID); !ok {
		return err
	}
	err := h.guard.AssertAvailable(c.UserContext(), inventory.AvailabilityRequest{
		WarehouseID:   in.WarehouseID,
		ProductID:     in.ProductID,
		Quantity:      in.Quantity,
		ForbidZeroOut: in.ForbidZeroOut,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.AvailabilityResponse{Available: true})
}

// History godoc
// @Summary      Historial del kardex
// @Description  Orden cronológico por seq. Para seguir, enviar after_seq = next_after_seq.
//
//	El cursor es incremental solo con warehouse_id; sin bodega es una consulta puntual.
//
// @Tags         kardex
// @Security     Bearer
// @Produce      json
// @Param        id            path   string  true   "ID del producto"
// @Param        warehouse_id  query  string  false  "Bodega. Vacío = todas."
// @Param        from          query  string  false  "Desde (RFC3339)"
// @Param        to            query  string  false  "Hasta (RFC3339)"
// @Param        after_seq     query  int     false  "Cursor"
// @Param        limit         query  int     false  "Tamaño de página (máx. 1000)"
// @Success      200  {object}  dto.KardexHistoryResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/kardex/products/{id}/history [get]
func (h *KardexHandler) History(c *fiber.Ctx) error {
	productID := param(c, "id")
	if ok, err := h.ownProduct(c, productID); !ok {
		return err
	}
	filter := repository.KardexFilter{
		ProductID:   productID,
		WarehouseID: query(c, "warehouse_id"),
		Limit:       c.QueryInt("limit", 0),
	}
	if v := c.Query("after_seq"); v != "" {
		seq, err := strconv.ParseInt(v, 10, 64)
		if err != nil || seq < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "after_seq inválido"})
		}
		filter.AfterSeq = seq
	}
	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		v := c.Query(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: name + " debe ser RFC3339"})
		}
		*dst = &t
	}

	entries, err := h.ledger.History(c.UserContext(), filter)
	if err != nil {
		return writeError(c, err)
	}
	out := dto.KardexHistoryResponse{Items: make([]dto.KardexEntryResponse, 0, len(entries))}
	for _, e := range entries {
		out.Items = append(out.Items, toKardexEntryResponse(e))
	}
	if len(entries) > 0 && len(entries) == inventory.HistoryPageSize(filter.Limit) {
		out.NextAfterSeq = entries[len(entries)-1].Seq
	}
	return c.JSON(out)
}

// Stock godoc
// @Summary      Stock actual
// @Tags         kardex
// @Security     Bearer
// @Produce      json
// @Param        id            path   string  true   "ID del producto"
// @Param        warehouse_id  query  string  false  "Bodega. Vacío = total del producto."
// @Success      200  {object}  dto.StockResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/kardex/products/{id}/stock [get]
func (h *KardexHandler) Stock(c *fiber.Ctx) error {
	productID := param(c, "id")
	if ok, err := h.ownProduct(c, productID); !ok {
		return err
	}
	warehouseID := query(c, "warehouse_id")
	onHand, err := h.ledger.CurrentStock(c.UserContext(), productID, warehouseID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.StockResponse{ProductID: productID, WarehouseID: warehouseID, OnHand: onHand})
}

// Reconcile godoc
// @Summary      Conciliar kardex contra stock
// @Description  Sin warehouse_id concilia todas las bodegas con stock del producto.
// @Tags         kardex
// @Security     Bearer
// @Produce      json
// @Param        id            path   string  true   "ID del producto"
// @Param        warehouse_id  query  string  false  "Bodega"
// @Success      200  {object}  dto.ReconcileResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/kardex/products/{id}/reconcile [get]
func (h *KardexHandler) Reconcile(c *fiber.Ctx) error {
	productID := param(c, "id")
	if ok, err := h.ownProduct(c, productID); !ok {
		return err
	}
	var reports []*inventory.ReconcileReport
	if warehouseID := query(c, "warehouse_id"); warehouseID != "" {
		rep, err := h.ledger.ReconcileDetail(c.UserContext(), productID, warehouseID)
		if err != nil {
			return writeError(c, err)
		}
		reports = append(reports, rep)
	} else {
		all, err := h.ledger.ReconcileProduct(c.UserContext(), productID)
		if err != nil {
			return writeError(c, err)
		}
		reports = all
	}
	out := make([]dto.ReconcileResponse, 0, len(reports))
	for _, r := range reports {
		out = append(out, dto.ReconcileResponse{
			ProductID:   r.ProductID,
			WarehouseID: r.WarehouseID,
			Entries:     r.Entries,
			Replayed:    r.Replayed,
			Stored:      r.Stored,
			BrokenAtSeq: r.BrokenAtSeq,
			Consistent:  r.Consistent,
		})
	}
	return c.JSON(out)
}

// ownProduct verifica que el producto exista y sea de la empresa del token.
func (h *KardexHandler) ownProduct(c *fiber.Ctx, productID string) (bool, error) {
	p, err := h.products.GetByID(c.UserContext(), GetCompanyID(c), productID)
	if err != nil {
		return false, writeError(c, err)
	}
	if p == nil {
		return false, c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "producto no encontrado"})
	}
	return true, nil
}

func toKardexEntryResponse(e *entity.KardexEntry) dto.KardexEntryResponse {
	return dto.KardexEntryResponse{
		ID:                  e.ID,
		Seq:                 e.Seq,
		WarehouseID:         e.WarehouseID,
		ProductID:           e.ProductID,
		OccurredAt:          e.OccurredAt,
		Kind:                string(e.Kind),
		AdjustmentDirection: string(e.AdjustmentDirection),
		Direction:           string(e.Direction),
		Quantity:            e.Quantity,
		UnitCost:            e.UnitCost,
		TotalCost:           e.TotalCost,
		QuantityBefore:      e.QuantityBefore,
		QuantityAfter:       e.QuantityAfter,
		AverageCostAfter:    e.AverageCostAfter,
		ReferenceType:       e.Reference.DocumentType,
		ReferenceID:         e.Reference.DocumentID,
		Note:                e.Note,
		CreatedBy:           e.CreatedBy,
		RequestID:           e.RequestID,
	}
}
