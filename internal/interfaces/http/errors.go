package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/jhoicas/Kardex-api/internal/application/dto"
	"github.com/jhoicas/Kardex-api/internal/domain"
)

// writeError traduce errores de dominio a códigos HTTP. Si el error viene de una línea de
// documento, details.line indica cuál.
func writeError(c *fiber.Ctx, err error) error {
	status, body := errorResponse(err)
	if status == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Str("request_id", GetRequestID(c)).Msg("error interno")
	}
	var lineErr *domain.LineError
	if errors.As(err, &lineErr) {
		if body.Details == nil {
			body.Details = map[string]any{}
		}
		body.Details["line"] = lineErr.Line
	}
	return c.Status(status).JSON(body)
}

func errorResponse(err error) (int, dto.ErrorResponse) {
	var insufficient *domain.InsufficientStockError
	if errors.As(err, &insufficient) {
		return fiber.StatusConflict, dto.ErrorResponse{
			Code:    "INSUFFICIENT_STOCK",
			Message: "stock insuficiente",
			Details: map[string]any{
				"product_id":   insufficient.ProductID,
				"warehouse_id": insufficient.WarehouseID,
				"available":    insufficient.Available.String(),
				"requested":    insufficient.Requested.String(),
				"zero_out":     insufficient.ZeroOut,
			},
		}
	}
	var conflict *domain.ConcurrencyConflictError
	if errors.As(err, &conflict) {
		return fiber.StatusConflict, dto.ErrorResponse{
			Code:    "CONCURRENCY_CONFLICT",
			Message: "movimiento concurrente sobre el mismo producto y bodega, reintentar",
			Details: map[string]any{"key": conflict.Key, "attempts": conflict.Attempts},
		}
	}

	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: "INVALID_QUANTITY", Message: "la cantidad debe ser mayor que cero"}
	case errors.Is(err, domain.ErrInvalidMovementKind):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: "INVALID_MOVEMENT_KIND", Message: "tipo de movimiento desconocido"}
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos"}
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, dto.ErrorResponse{Code: "NOT_FOUND", Message: "producto o bodega no encontrado"}
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden, dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado al recurso"}
	case errors.Is(err, domain.ErrDuplicate):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "DUPLICATE", Message: "el recurso ya existe"}
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "CONCURRENCY_CONFLICT", Message: "movimiento concurrente, reintentar"}
	}
	return fiber.StatusInternalServerError, dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"}
}
