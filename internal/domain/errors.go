package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errores de dominio (sin dependencias de infraestructura).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrForbidden    = errors.New("acceso denegado")

	// Taxonomía del kardex.
	ErrInsufficientStock   = errors.New("stock insuficiente")
	ErrInvalidMovementKind = errors.New("tipo de movimiento no reconocido")
	ErrInvalidQuantity     = errors.New("la cantidad debe ser mayor que cero")
	ErrConcurrencyConflict = errors.New("conflicto de concurrencia, reintente la operación")
)

// InsufficientStockError detalla un rechazo por falta de existencias.
// errors.Is(err, ErrInsufficientStock) es verdadero para este tipo.
type InsufficientStockError struct {
	ProductID   string
	WarehouseID string
	Available   decimal.Decimal
	Requested   decimal.Decimal
	// ZeroOut indica que el rechazo lo produjo la política "no dejar en cero".
	ZeroOut bool
}

func (e *InsufficientStockError) Error() string {
	if e.ZeroOut {
		return fmt.Sprintf("stock insuficiente: producto %s en bodega %s quedaría en cero (disponible %s, solicitado %s)",
			e.ProductID, e.WarehouseID, e.Available.String(), e.Requested.String())
	}
	return fmt.Sprintf("stock insuficiente: producto %s en bodega %s (disponible %s, solicitado %s)",
		e.ProductID, e.WarehouseID, e.Available.String(), e.Requested.String())
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// ConcurrencyConflictError se devuelve cuando la sección crítica de una clave
// (bodega, producto) no pudo adquirirse tras los reintentos configurados.
type ConcurrencyConflictError struct {
	Key      string
	Attempts int
	Err      error
}

func (e *ConcurrencyConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conflicto de concurrencia en %s tras %d intentos: %v", e.Key, e.Attempts, e.Err)
	}
	return fmt.Sprintf("conflicto de concurrencia en %s tras %d intentos", e.Key, e.Attempts)
}

func (e *ConcurrencyConflictError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

func (e *ConcurrencyConflictError) Unwrap() error {
	return e.Err
}

// LineError indica qué línea de un documento (numerada desde 1) hizo fallar el registro.
// Ninguna línea del documento queda aplicada.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("línea %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
