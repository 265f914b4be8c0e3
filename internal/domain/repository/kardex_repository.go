package repository

import (
	"context"
	"time"

	"github.com/jhoicas/Kardex-api/internal/domain/entity"
)

// KardexFilter filtra el historial de movimientos. Resultados en orden cronológico (Seq ascendente).
type KardexFilter struct {
	ProductID   string
	WarehouseID string // vacío = todas las bodegas
	From        *time.Time
	To          *time.Time
	AfterSeq    int64 // cursor: solo entradas con Seq > AfterSeq
	Limit       int
}

// KardexRepository es el puerto del libro de movimientos. Es de solo inserción:
// no expone operaciones de actualización ni borrado.
type KardexRepository interface {
	// Append persiste la entrada y asigna ID (si falta) y Seq.
	Append(ctx context.Context, entry *entity.KardexEntry) error
	List(ctx context.Context, filter KardexFilter) ([]*entity.KardexEntry, error)
}
