package inventory

import (
	"context"
	"iter"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/Kardex-api/internal/domain"
	"github.com/jhoicas/Kardex-api/internal/domain/entity"
	"github.com/jhoicas/Kardex-api/internal/domain/repository"
)

const (
	defaultHistoryPage = 100
	maxHistoryPage     = 1000
)

// LedgerQuery es el lado de lectura del kardex (reportes, exportaciones, reposición).
// Nunca escribe.
type LedgerQuery struct {
	kardexRepo repository.KardexRepository
	stockRepo  repository.StockRepository
	cache      StockCache
	log        zerolog.Logger
}

// NewLedgerQuery construye las consultas. cache puede ser nil.
func NewLedgerQuery(kardexRepo repository.KardexRepository, stockRepo repository.StockRepository, cache StockCache, log zerolog.Logger) *LedgerQuery {
	return &LedgerQuery{kardexRepo: kardexRepo, stockRepo: stockRepo, cache: cache, log: log}
}

// History devuelve una página del historial en orden cronológico. Para continuar, pasar
// AfterSeq = Seq de la última entrada recibida.
//
// El cursor solo es exacto con WarehouseID: dentro de una pareja producto-bodega los
// movimientos se serializan sobre la fila de stock y Seq crece en orden de commit. Sin
// bodega, en PostgreSQL Seq se toma al insertar y una transacción de otra bodega puede
// confirmar después con un Seq menor al cursor ya entregado; esa entrada no aparece en
// las páginas siguientes. Para sincronizar un producto completo, paginar por bodega.
func (q *LedgerQuery) History(ctx context.Context, filter repository.KardexFilter) ([]*entity.KardexEntry, error) {
	if filter.ProductID == "" {
		return nil, domain.ErrInvalidInput
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, domain.ErrInvalidInput
	}
	filter.Limit = HistoryPageSize(filter.Limit)
	return q.kardexRepo.List(ctx, filter)
}

// HistoryPageSize normaliza el tamaño de página: 0 o negativo = 100, máximo 1000.
func HistoryPageSize(limit int) int {
	if limit <= 0 {
		return defaultHistoryPage
	}
	if limit > maxHistoryPage {
		return maxHistoryPage
	}
	return limit
}

// HistoryAll recorre todo el historial que cumple el filtro, página por página.
// Cada recorrido vuelve a consultar desde filter.AfterSeq. Mismo alcance del cursor
// que History: sin WarehouseID es una foto del producto, no un feed incremental.
func (q *LedgerQuery) HistoryAll(ctx context.Context, filter repository.KardexFilter) iter.Seq2[*entity.KardexEntry, error] {
	return func(yield func(*entity.KardexEntry, error) bool) {
		f := filter
		f.Limit = HistoryPageSize(f.Limit)
		for {
			page, err := q.History(ctx, f)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, e := range page {
				if !yield(e, nil) {
					return
				}
			}
			if len(page) < f.Limit {
				return
			}
			f.AfterSeq = page[len(page)-1].Seq
		}
	}
}

// CountMovements cuenta los movimientos de un tipo (vacío = todos) que cumplen el filtro.
// Lo consume el pronóstico de demanda.
func (q *LedgerQuery) CountMovements(ctx context.Context, filter repository.KardexFilter, kind entity.MovementKind) (int, error) {
	n := 0
	for e, err := range q.HistoryAll(ctx, filter) {
		if err != nil {
			return 0, err
		}
		if kind == "" || e.Kind == kind {
			n++
		}
	}
	return n, nil
}

// CurrentStock devuelve las existencias de la pareja, o el total del producto si
// warehouseID es vacío.
//
// La caché se llena después de leer y luego se vuelve a leer la versión: si un movimiento
// confirmó entre ambas lecturas, el valor recién guardado se invalida. La invalidación del
// registrador ocurre después del commit, así que no queda un saldo viejo en caché.
func (q *LedgerQuery) CurrentStock(ctx context.Context, productID, warehouseID string) (decimal.Decimal, error) {
	if productID == "" {
		return decimal.Zero, domain.ErrInvalidInput
	}
	if q.cache != nil {
		if v, ok, err := q.cache.Get(ctx, productID, warehouseID); err == nil && ok {
			return v, nil
		}
	}
	onHand, version, err := q.stockSnapshot(ctx, productID, warehouseID)
	if err != nil {
		return decimal.Zero, err
	}
	if q.cache == nil {
		return onHand, nil
	}
	if err := q.cache.Set(ctx, productID, warehouseID, onHand); err != nil {
		q.log.Warn().Err(err).Str("product_id", productID).Str("warehouse_id", warehouseID).Msg("guardar stock en caché")
		return onHand, nil
	}
	_, after, err := q.stockSnapshot(ctx, productID, warehouseID)
	if err != nil || after != version {
		var ids []string
		if warehouseID != "" {
			ids = append(ids, warehouseID)
		}
		if err := q.cache.Invalidate(ctx, productID, ids...); err != nil {
			q.log.Warn().Err(err).Str("product_id", productID).Msg("invalidar stock cambiado durante la lectura")
		}
	}
	return onHand, nil
}

// stockSnapshot lee el saldo con su versión. Para el total del producto la versión es la
// suma de las versiones de sus filas: cualquier commit sobre el producto la cambia.
func (q *LedgerQuery) stockSnapshot(ctx context.Context, productID, warehouseID string) (decimal.Decimal, int64, error) {
	if warehouseID != "" {
		stock, err := q.stockRepo.Get(ctx, productID, warehouseID)
		if err != nil {
			return decimal.Zero, 0, err
		}
		return stock.OnHand, stock.Version, nil
	}
	rows, err := q.stockRepo.ListByProduct(ctx, productID)
	if err != nil {
		return decimal.Zero, 0, err
	}
	total := decimal.Zero
	var version int64
	for _, st := range rows {
		total = total.Add(st.OnHand)
		version += st.Version
	}
	return total, version, nil
}

// ReconcileReport resultado de reproducir el kardex de una pareja desde cero.
type ReconcileReport struct {
	ProductID   string
	WarehouseID string
	Entries     int
	Replayed    decimal.Decimal // saldo obtenido al reproducir el historial
	Stored      decimal.Decimal // saldo almacenado en stock
	// BrokenAtSeq es la primera entrada cuyo QuantityBefore/After no encadena (0 = ninguna).
	BrokenAtSeq int64
	Consistent  bool
}

// Reconcile indica si el historial de la pareja reproduce exactamente el saldo almacenado.
func (q *LedgerQuery) Reconcile(ctx context.Context, productID, warehouseID string) (bool, error) {
	rep, err := q.ReconcileDetail(ctx, productID, warehouseID)
	if err != nil {
		return false, err
	}
	return rep.Consistent, nil
}

// ReconcileDetail reproduce el historial y devuelve el detalle. Lee stock e historial en
// momentos distintos: un movimiento concurrente puede dar un falso negativo, repetir la
// verificación antes de concluir corrupción.
func (q *LedgerQuery) ReconcileDetail(ctx context.Context, productID, warehouseID string) (*ReconcileReport, error) {
	if productID == "" || warehouseID == "" {
		return nil, domain.ErrInvalidInput
	}
	rep := &ReconcileReport{ProductID: productID, WarehouseID: warehouseID, Replayed: decimal.Zero}
	filter := repository.KardexFilter{ProductID: productID, WarehouseID: warehouseID, Limit: maxHistoryPage}
	for e, err := range q.HistoryAll(ctx, filter) {
		if err != nil {
			return nil, err
		}
		rep.Entries++
		next := rep.Replayed.Add(e.SignedQuantity())
		if rep.BrokenAtSeq == 0 && (!e.QuantityBefore.Equal(rep.Replayed) || !e.QuantityAfter.Equal(next)) {
			rep.BrokenAtSeq = e.Seq
		}
		rep.Replayed = next
	}
	stock, err := q.stockRepo.Get(ctx, productID, warehouseID)
	if err != nil {
		return nil, err
	}
	rep.Stored = stock.OnHand
	rep.Consistent = rep.BrokenAtSeq == 0 && rep.Replayed.Equal(rep.Stored)
	return rep, nil
}

// ReconcileProduct concilia en paralelo todas las bodegas con stock del producto.
func (q *LedgerQuery) ReconcileProduct(ctx context.Context, productID string) ([]*ReconcileReport, error) {
	if productID == "" {
		return nil, domain.ErrInvalidInput
	}
	stocks, err := q.stockRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	reports := make([]*ReconcileReport, len(stocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, s := range stocks {
		g.Go(func() error {
			rep, err := q.ReconcileDetail(gctx, productID, s.WarehouseID)
			if err != nil {
				return err
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
