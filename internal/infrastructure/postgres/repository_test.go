package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Kardex-api/internal/domain"
	"github.com/jhoicas/Kardex-api/internal/domain/entity"
	"github.com/jhoicas/Kardex-api/internal/domain/repository"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func quoted(fragment string) string { return regexp.QuoteMeta(fragment) }

var stockCols = []string{"product_id", "warehouse_id", "on_hand", "location", "version", "updated_at"}

func TestStockRepo_GetOrCreateForUpdate(t *testing.T) {
	mock := newMock(t)
	repo := NewStockRepository(mock)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectExec(quoted("ON CONFLICT (product_id, warehouse_id) DO NOTHING")).
		WithArgs("p1", "w1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(quoted("FROM stock WHERE product_id = $1 AND warehouse_id = $2 FOR UPDATE")).
		WithArgs("p1", "w1").
		WillReturnRows(pgxmock.NewRows(stockCols).AddRow("p1", "w1", "7", "A-1", int64(3), now))

	st, err := repo.GetOrCreateForUpdate(ctx, "p1", "w1")
	require.NoError(t, err)
	assert.True(t, st.OnHand.Equal(decimal.NewFromInt(7)))
	assert.Equal(t, int64(3), st.Version)
	assert.Equal(t, "A-1", st.Location)
}

func TestStockRepo_GetOrCreateForUpdate_ReferenciaInexistente(t *testing.T) {
	mock := newMock(t)
	repo := NewStockRepository(mock)

	mock.ExpectExec(quoted("INSERT INTO stock")).
		WithArgs("nope", "w1").
		WillReturnError(&pgconn.PgError{Code: codeForeignKeyViolation})

	_, err := repo.GetOrCreateForUpdate(context.Background(), "nope", "w1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStockRepo_GetSinFila(t *testing.T) {
	mock := newMock(t)
	repo := NewStockRepository(mock)

	mock.ExpectQuery(quoted("FROM stock WHERE product_id = $1 AND warehouse_id = $2")).
		WithArgs("p1", "w9").
		WillReturnRows(pgxmock.NewRows(stockCols))

	st, err := repo.Get(context.Background(), "p1", "w9")
	require.NoError(t, err)
	assert.True(t, st.OnHand.IsZero())
	assert.Zero(t, st.Version)
}

func TestStockRepo_UpdateControlaVersion(t *testing.T) {
	mock := newMock(t)
	repo := NewStockRepository(mock)
	ctx := context.Background()
	onHand := decimal.NewFromInt(15)
	update := quoted("UPDATE stock SET on_hand = $3, version = version + 1, updated_at = $4")

	stale := &entity.Stock{ProductID: "p1", WarehouseID: "w1", OnHand: onHand, Version: 3}
	mock.ExpectExec(update).
		WithArgs("p1", "w1", onHand, pgxmock.AnyArg(), int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, repo.Update(ctx, stale), domain.ErrConcurrencyConflict)
	assert.Equal(t, int64(3), stale.Version, "un conflicto no avanza la versión")

	fresh := &entity.Stock{ProductID: "p1", WarehouseID: "w1", OnHand: onHand, Version: 4}
	mock.ExpectExec(update).
		WithArgs("p1", "w1", onHand, pgxmock.AnyArg(), int64(4)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.Update(ctx, fresh))
	assert.Equal(t, int64(5), fresh.Version)
}

var kardexCols = []string{
	"id", "seq", "warehouse_id", "product_id", "occurred_at", "kind", "adjustment_direction", "direction",
	"quantity", "unit_cost", "total_cost", "quantity_before", "quantity_after", "average_cost_after",
	"reference", "note", "created_by", "request_id",
}

func TestKardexRepo_ListConTodosLosFiltros(t *testing.T) {
	mock := newMock(t)
	repo := NewKardexRepository(mock)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	mock.ExpectQuery(quoted("FROM kardex_entries WHERE product_id = $1 AND seq > $2 AND warehouse_id = $3 AND occurred_at >= $4 AND occurred_at <= $5 ORDER BY seq ASC LIMIT $6") + "$").
		WithArgs("p1", int64(7), "w1", from, to, 50).
		WillReturnRows(pgxmock.NewRows(kardexCols).AddRow(
			"e1", int64(8), "w1", "p1", from, "adjustment", "increase", "IN",
			"10", "10", "100", "0", "10", "10",
			"conteo:C-3", "", "u1", "req-1",
		))

	list, err := repo.List(context.Background(), repository.KardexFilter{
		ProductID: "p1", WarehouseID: "w1", AfterSeq: 7, From: &from, To: &to, Limit: 50,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	e := list[0]
	assert.Equal(t, int64(8), e.Seq)
	assert.Equal(t, entity.KindAdjustment, e.Kind)
	assert.Equal(t, entity.AdjustmentIncrease, e.AdjustmentDirection)
	assert.Equal(t, entity.DirectionIn, e.Direction)
	assert.Equal(t, entity.Reference{DocumentType: "conteo", DocumentID: "C-3"}, e.Reference)
	assert.True(t, e.TotalCost.Equal(decimal.NewFromInt(100)))
}

func TestKardexRepo_ListFiltrosParciales(t *testing.T) {
	mock := newMock(t)
	repo := NewKardexRepository(mock)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(quoted("WHERE product_id = $1 AND seq > $2 ORDER BY seq ASC") + "$").
		WithArgs("p1", int64(0)).
		WillReturnRows(pgxmock.NewRows(kardexCols))
	list, err := repo.List(context.Background(), repository.KardexFilter{ProductID: "p1"})
	require.NoError(t, err)
	assert.Empty(t, list)

	// Sin bodega ni desde: los marcadores siguen siendo consecutivos.
	mock.ExpectQuery(quoted("WHERE product_id = $1 AND seq > $2 AND occurred_at <= $3 ORDER BY seq ASC LIMIT $4") + "$").
		WithArgs("p1", int64(3), to, 10).
		WillReturnRows(pgxmock.NewRows(kardexCols))
	_, err = repo.List(context.Background(), repository.KardexFilter{ProductID: "p1", AfterSeq: 3, To: &to, Limit: 10})
	require.NoError(t, err)
}

func TestKardexRepo_AppendAsignaSeq(t *testing.T) {
	mock := newMock(t)
	repo := NewKardexRepository(mock)

	mock.ExpectQuery(quoted("INSERT INTO kardex_entries")).
		WillReturnRows(pgxmock.NewRows([]string{"seq"}).AddRow(int64(41)))

	e := &entity.KardexEntry{ProductID: "p1", WarehouseID: "w1", Kind: entity.KindPurchase, Direction: entity.DirectionIn}
	require.NoError(t, repo.Append(context.Background(), e))
	assert.Equal(t, int64(41), e.Seq)
	assert.NotEmpty(t, e.ID)
}

func TestProductRepo_Errores(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	ctx := context.Background()

	mock.ExpectExec(quoted("INSERT INTO products")).
		WillReturnError(&pgconn.PgError{Code: codeUniqueViolation})
	assert.ErrorIs(t, repo.Create(ctx, &entity.Product{ID: "p1", CompanyID: "c1", SKU: "A"}), domain.ErrDuplicate)

	cost := decimal.RequireFromString("116.666667")
	mock.ExpectExec(quoted("UPDATE products SET average_cost = $2")).
		WithArgs("p9", cost).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, repo.UpdateAverageCost(ctx, "p9", cost), domain.ErrNotFound)
}

func TestTxRunner_LockTimeoutEsConflicto(t *testing.T) {
	mock := newMock(t)
	runner := NewTxRunner(mock, 150*time.Millisecond)

	mock.ExpectBegin()
	mock.ExpectExec(quoted("SET LOCAL lock_timeout = '150ms'")).WillReturnResult(pgxmock.NewResult("SET", 0))
	mock.ExpectExec(quoted("INSERT INTO stock")).WithArgs("p1", "w1").WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(quoted("FOR UPDATE")).WithArgs("p1", "w1").
		WillReturnError(&pgconn.PgError{Code: codeLockNotAvailable})
	mock.ExpectRollback()

	err := runner.Run(context.Background(), func(_ repository.KardexRepository, st repository.StockRepository, _ repository.ProductRepository) error {
		_, err := st.GetOrCreateForUpdate(context.Background(), "p1", "w1")
		return err
	})
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
}

func TestTxRunner_Commit(t *testing.T) {
	mock := newMock(t)
	runner := NewTxRunner(mock, 0)

	mock.ExpectBegin()
	mock.ExpectExec(quoted("UPDATE products SET average_cost = $2")).
		WithArgs("p1", decimal.Zero).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := runner.Run(context.Background(), func(_ repository.KardexRepository, _ repository.StockRepository, p repository.ProductRepository) error {
		return p.UpdateAverageCost(context.Background(), "p1", decimal.Zero)
	})
	require.NoError(t, err)
}
