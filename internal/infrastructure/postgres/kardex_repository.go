package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Kardex-api/internal/domain/entity"
	"github.com/jhoicas/Kardex-api/internal/domain/repository"
)

var _ repository.KardexRepository = (*KardexRepo)(nil)

const kardexColumns = `id, seq, warehouse_id, product_id, occurred_at, kind, adjustment_direction, direction,
	quantity, unit_cost, total_cost, quantity_before, quantity_after, average_cost_after,
	reference, note, created_by, request_id`

// KardexRepo libro de movimientos en PostgreSQL. Solo inserción: la tabla tiene un
// trigger que rechaza UPDATE y DELETE.
type KardexRepo struct {
	q Querier
}

// NewKardexRepository construye el adaptador del kardex. Pasar pool o tx (Querier).
func NewKardexRepository(q Querier) *KardexRepo {
	return &KardexRepo{q: q}
}

// Append inserta la entrada y recupera el Seq asignado por la secuencia.
func (r *KardexRepo) Append(ctx context.Context, e *entity.KardexEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	query := `
		INSERT INTO kardex_entries (
			id, warehouse_id, product_id, occurred_at, kind, adjustment_direction, direction,
			quantity, unit_cost, total_cost, quantity_before, quantity_after, average_cost_after,
			reference, note, created_by, request_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING seq`
	err := r.q.QueryRow(ctx, query,
		e.ID, e.WarehouseID, e.ProductID, e.OccurredAt, string(e.Kind), string(e.AdjustmentDirection),
		string(e.Direction), e.Quantity, e.UnitCost, e.TotalCost, e.QuantityBefore, e.QuantityAfter,
		e.AverageCostAfter, e.Reference.String(), e.Note, e.CreatedBy, e.RequestID,
	).Scan(&e.Seq)
	if err != nil {
		return fmt.Errorf("insert kardex entry: %w", err)
	}
	return nil
}

// List devuelve entradas en orden de Seq ascendente según el filtro.
func (r *KardexRepo) List(ctx context.Context, f repository.KardexFilter) ([]*entity.KardexEntry, error) {
	where := []string{"product_id = $1", "seq > $2"}
	args := []any{f.ProductID, f.AfterSeq}
	if f.WarehouseID != "" {
		args = append(args, f.WarehouseID)
		where = append(where, fmt.Sprintf("warehouse_id = $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where = append(where, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where = append(where, fmt.Sprintf("occurred_at <= $%d", len(args)))
	}
	query := `SELECT ` + kardexColumns + ` FROM kardex_entries WHERE ` + strings.Join(where, " AND ") + ` ORDER BY seq ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list kardex: %w", err)
	}
	defer rows.Close()
	list := make([]*entity.KardexEntry, 0)
	for rows.Next() {
		e, err := scanKardexEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan kardex entry: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

func scanKardexEntry(row pgx.Row) (*entity.KardexEntry, error) {
	var (
		e                          entity.KardexEntry
		kind, adjustment, dir, ref string
	)
	err := row.Scan(
		&e.ID, &e.Seq, &e.WarehouseID, &e.ProductID, &e.OccurredAt, &kind, &adjustment, &dir,
		&e.Quantity, &e.UnitCost, &e.TotalCost, &e.QuantityBefore, &e.QuantityAfter, &e.AverageCostAfter,
		&ref, &e.Note, &e.CreatedBy, &e.RequestID,
	)
	if err != nil {
		return nil, err
	}
	e.Kind = entity.MovementKind(kind)
	e.AdjustmentDirection = entity.AdjustmentDirection(adjustment)
	e.Direction = entity.Direction(dir)
	e.Reference = entity.ParseReference(ref)
	return &e, nil
}
