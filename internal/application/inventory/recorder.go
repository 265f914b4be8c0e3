package inventory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Kardex-api/internal/domain"
	"github.com/jhoicas/Kardex-api/internal/domain/entity"
	"github.com/jhoicas/Kardex-api/internal/domain/inventory"
	"github.com/jhoicas/Kardex-api/internal/domain/repository"
)

// MovementRequest entrada de RecordMovement. Una línea de documento = un movimiento.
type MovementRequest struct {
	WarehouseID string
	ProductID   string
	Kind        entity.MovementKind
	Adjustment  entity.AdjustmentDirection // obligatorio solo para KindAdjustment
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal // se ignora en salidas: consumen el promedio vigente
	Reference   entity.Reference
	Note        string
	// ForbidZeroOut activa la política "no dejar en cero" para esta salida.
	ForbidZeroOut bool
}

// TransferRequest traslado entre bodegas: transfer_out en origen + transfer_in en destino.
type TransferRequest struct {
	ProductID       string
	FromWarehouseID string
	ToWarehouseID   string
	Quantity        decimal.Decimal
	Reference       entity.Reference
	Note            string
	ForbidZeroOut   bool
}

// RecorderConfig controla los reintentos ante conflictos de concurrencia.
type RecorderConfig struct {
	MaxRetries   int           // reintentos adicionales tras el primer intento
	RetryBackoff time.Duration // espera lineal: RetryBackoff * intento
}

// MovementRecorder es el único punto de entrada que muta el kardex.
// Cada movimiento se ejecuta como sección crítica sobre la fila (bodega, producto):
// bloqueo de fila (SELECT FOR UPDATE) + control de versión, dentro de una sola transacción.
type MovementRecorder struct {
	txRunner      TxRunner
	warehouseRepo repository.WarehouseRepository
	locker        KeyLocker
	cache         StockCache
	log           zerolog.Logger
	cfg           RecorderConfig
	now           func() time.Time
}

// RecorderOption configura dependencias opcionales del registrador.
type RecorderOption func(*MovementRecorder)

// WithKeyLocker agrega un bloqueo distribuido previo a la transacción.
func WithKeyLocker(l KeyLocker) RecorderOption {
	return func(r *MovementRecorder) { r.locker = l }
}

// WithStockCache invalida la caché de existencias después de cada commit.
func WithStockCache(c StockCache) RecorderOption {
	return func(r *MovementRecorder) { r.cache = c }
}

// WithClock reemplaza el reloj (tests).
func WithClock(now func() time.Time) RecorderOption {
	return func(r *MovementRecorder) { r.now = now }
}

// NewMovementRecorder construye el registrador de movimientos.
func NewMovementRecorder(
	txRunner TxRunner,
	warehouseRepo repository.WarehouseRepository,
	log zerolog.Logger,
	cfg RecorderConfig,
	opts ...RecorderOption,
) *MovementRecorder {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	r := &MovementRecorder{
		txRunner:      txRunner,
		warehouseRepo: warehouseRepo,
		log:           log,
		cfg:           cfg,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordMovement valida, calcula saldo y promedio, y persiste de forma atómica la fila de
// stock, el costo del producto (si cambió) y una entrada inmutable del kardex.
func (r *MovementRecorder) RecordMovement(ctx context.Context, actor entity.ActorContext, req MovementRequest) (*entity.KardexEntry, error) {
	class, err := validateMovement(req)
	if err != nil {
		return nil, err
	}
	if err := r.checkWarehouse(ctx, actor, req.WarehouseID); err != nil {
		return nil, err
	}

	var entry *entity.KardexEntry
	keys := []string{entity.StockKey(req.WarehouseID, req.ProductID)}
	err = r.withRetry(ctx, keys, func() error {
		now := r.now()
		return r.txRunner.Run(ctx, func(
			kardexRepo repository.KardexRepository,
			stockRepo repository.StockRepository,
			productRepo repository.ProductRepository,
		) error {
			e, err := r.apply(ctx, kardexRepo, stockRepo, productRepo, actor, req, class, now)
			if err != nil {
				return err
			}
			entry = e
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	r.afterCommit(ctx, actor, entry)
	return entry, nil
}

// RecordMovements registra todas las líneas de un documento (factura, remisión, orden de
// producción) en una sola transacción. Si una línea falla no queda ninguna aplicada y el
// error es un *domain.LineError con el número de línea.
func (r *MovementRecorder) RecordMovements(ctx context.Context, actor entity.ActorContext, reqs []MovementRequest) ([]*entity.KardexEntry, error) {
	if len(reqs) == 0 {
		return nil, domain.ErrInvalidInput
	}
	classes := make([]inventory.Classification, len(reqs))
	checked := make(map[string]bool)
	for i, req := range reqs {
		class, err := validateMovement(req)
		if err != nil {
			return nil, &domain.LineError{Line: i + 1, Err: err}
		}
		classes[i] = class
		if checked[req.WarehouseID] {
			continue
		}
		if err := r.checkWarehouse(ctx, actor, req.WarehouseID); err != nil {
			return nil, &domain.LineError{Line: i + 1, Err: err}
		}
		checked[req.WarehouseID] = true
	}
	return r.recordBatch(ctx, actor, reqs, classes, true)
}

// Transfer registra transfer_out y transfer_in en la misma transacción. Si cualquiera de
// los dos falla no se aplica ninguno.
func (r *MovementRecorder) Transfer(ctx context.Context, actor entity.ActorContext, req TransferRequest) (out, in *entity.KardexEntry, err error) {
	if req.ProductID == "" || req.FromWarehouseID == "" || req.ToWarehouseID == "" {
		return nil, nil, domain.ErrInvalidInput
	}
	if req.FromWarehouseID == req.ToWarehouseID {
		return nil, nil, domain.ErrInvalidInput
	}
	if !req.Quantity.IsPositive() {
		return nil, nil, domain.ErrInvalidQuantity
	}
	if err := r.checkWarehouse(ctx, actor, req.FromWarehouseID); err != nil {
		return nil, nil, err
	}
	if err := r.checkWarehouse(ctx, actor, req.ToWarehouseID); err != nil {
		return nil, nil, err
	}

	reqs := []MovementRequest{
		{
			WarehouseID:   req.FromWarehouseID,
			ProductID:     req.ProductID,
			Kind:          entity.KindTransferOut,
			Quantity:      req.Quantity,
			Reference:     req.Reference,
			Note:          req.Note,
			ForbidZeroOut: req.ForbidZeroOut,
		},
		{
			WarehouseID: req.ToWarehouseID,
			ProductID:   req.ProductID,
			Kind:        entity.KindTransferIn,
			Quantity:    req.Quantity,
			Reference:   req.Reference,
			Note:        req.Note,
		},
	}
	outClass, _ := inventory.Classify(entity.KindTransferOut, entity.AdjustmentNone)
	inClass, _ := inventory.Classify(entity.KindTransferIn, entity.AdjustmentNone)

	entries, err := r.recordBatch(ctx, actor, reqs, []inventory.Classification{outClass, inClass}, false)
	if err != nil {
		return nil, nil, err
	}
	return entries[0], entries[1], nil
}

// recordBatch aplica varias líneas en una transacción. Primero bloquea todas las filas de
// stock en orden de clave y luego los productos cuyo promedio cambia, también ordenados:
// dos documentos con las mismas parejas nunca se bloquean en orden cruzado.
func (r *MovementRecorder) recordBatch(
	ctx context.Context,
	actor entity.ActorContext,
	reqs []MovementRequest,
	classes []inventory.Classification,
	numbered bool,
) ([]*entity.KardexEntry, error) {
	type pair struct{ warehouseID, productID string }
	pairs := make(map[string]pair)
	costed := make(map[string]bool)
	for i, req := range reqs {
		pairs[entity.StockKey(req.WarehouseID, req.ProductID)] = pair{req.WarehouseID, req.ProductID}
		if classes[i].AffectsAverage {
			costed[req.ProductID] = true
		}
	}
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	products := make([]string, 0, len(costed))
	for id := range costed {
		products = append(products, id)
	}
	sort.Strings(products)

	var entries []*entity.KardexEntry
	err := r.withRetry(ctx, keys, func() error {
		now := r.now()
		return r.txRunner.Run(ctx, func(
			kardexRepo repository.KardexRepository,
			stockRepo repository.StockRepository,
			productRepo repository.ProductRepository,
		) error {
			for _, k := range keys {
				p := pairs[k]
				if _, err := stockRepo.GetOrCreateForUpdate(ctx, p.productID, p.warehouseID); err != nil {
					return err
				}
			}
			for _, id := range products {
				if _, err := productRepo.GetForUpdate(ctx, id); err != nil {
					return err
				}
			}
			out := make([]*entity.KardexEntry, 0, len(reqs))
			for i, req := range reqs {
				e, err := r.apply(ctx, kardexRepo, stockRepo, productRepo, actor, req, classes[i], now)
				if err != nil {
					if numbered {
						return &domain.LineError{Line: i + 1, Err: err}
					}
					return err
				}
				out = append(out, e)
			}
			entries = out
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		r.afterCommit(ctx, actor, e)
	}
	return entries, nil
}

func validateMovement(req MovementRequest) (inventory.Classification, error) {
	if req.ProductID == "" || req.WarehouseID == "" {
		return inventory.Classification{}, domain.ErrInvalidInput
	}
	if !req.Quantity.IsPositive() {
		return inventory.Classification{}, domain.ErrInvalidQuantity
	}
	class, err := inventory.Classify(req.Kind, req.Adjustment)
	if err != nil {
		return inventory.Classification{}, err
	}
	if class.IsEntry() && req.UnitCost.IsNegative() {
		return inventory.Classification{}, domain.ErrInvalidInput
	}
	return class, nil
}

func (r *MovementRecorder) checkWarehouse(ctx context.Context, actor entity.ActorContext, warehouseID string) error {
	wh, err := r.warehouseRepo.GetByID(ctx, warehouseID)
	if err != nil {
		return err
	}
	if wh == nil {
		return domain.ErrNotFound
	}
	if actor.CompanyID != "" && wh.CompanyID != actor.CompanyID {
		return domain.ErrForbidden
	}
	return nil
}

// apply es la sección crítica: se ejecuta con la fila de stock bloqueada.
func (r *MovementRecorder) apply(
	ctx context.Context,
	kardexRepo repository.KardexRepository,
	stockRepo repository.StockRepository,
	productRepo repository.ProductRepository,
	actor entity.ActorContext,
	req MovementRequest,
	class inventory.Classification,
	now time.Time,
) (*entity.KardexEntry, error) {
	stock, err := stockRepo.GetOrCreateForUpdate(ctx, req.ProductID, req.WarehouseID)
	if err != nil {
		return nil, err
	}
	// El promedio es compartido entre bodegas: las entradas que lo recalculan bloquean
	// también el producto (orden stock -> producto).
	var product *entity.Product
	if class.AffectsAverage {
		product, err = productRepo.GetForUpdate(ctx, req.ProductID)
	} else {
		product, err = productRepo.GetByID(ctx, req.ProductID)
	}
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}
	if actor.CompanyID != "" && product.CompanyID != actor.CompanyID {
		return nil, domain.ErrForbidden
	}

	if !class.IsEntry() {
		if err := CheckAvailability(product, stock, req.Quantity, req.ForbidZeroOut); err != nil {
			return nil, err
		}
	}

	unitCost := resolveUnitCost(class, req.UnitCost, product.AverageCost)
	res, err := inventory.ApplyMovement(inventory.CostInput{
		OnHandBefore:   stock.OnHand,
		AverageBefore:  product.AverageCost,
		Quantity:       req.Quantity,
		UnitCost:       unitCost,
		IsEntry:        class.IsEntry(),
		AffectsAverage: class.AffectsAverage,
	})
	if err != nil {
		return nil, err
	}

	before := stock.OnHand
	stock.OnHand = res.OnHandAfter
	stock.UpdatedAt = now
	if err := stockRepo.Update(ctx, stock); err != nil {
		return nil, err
	}
	if !res.AverageAfter.Equal(product.AverageCost) {
		if err := productRepo.UpdateAverageCost(ctx, product.ID, res.AverageAfter); err != nil {
			return nil, err
		}
	}

	entry := &entity.KardexEntry{
		ID:                  uuid.New().String(),
		WarehouseID:         req.WarehouseID,
		ProductID:           req.ProductID,
		OccurredAt:          now,
		Kind:                class.Kind,
		AdjustmentDirection: req.Adjustment,
		Direction:           class.Direction,
		Quantity:            req.Quantity,
		UnitCost:            unitCost,
		TotalCost:           req.Quantity.Mul(unitCost),
		QuantityBefore:      before,
		QuantityAfter:       res.OnHandAfter,
		AverageCostAfter:    res.AverageAfter,
		Reference:           req.Reference,
		Note:                req.Note,
		CreatedBy:           actor.UserID,
		RequestID:           actor.RequestID,
	}
	if err := kardexRepo.Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func resolveUnitCost(class inventory.Classification, requested, average decimal.Decimal) decimal.Decimal {
	switch class.CostSource {
	case inventory.CostFromRequest:
		return requested
	case inventory.CostFromHistory:
		if requested.IsPositive() {
			return requested
		}
		return average
	default:
		return average
	}
}

// withRetry toma el bloqueo distribuido (si existe) y reintenta la unidad de trabajo
// completa mientras el error sea un conflicto de concurrencia.
func (r *MovementRecorder) withRetry(ctx context.Context, keys []string, fn func() error) error {
	attempts := r.cfg.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := r.runLocked(ctx, keys, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			return err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		r.log.Warn().
			Err(err).
			Strs("keys", keys).
			Int("attempt", attempt).
			Msg("conflicto de concurrencia en kardex, reintentando")
		if r.cfg.RetryBackoff > 0 {
			timer := time.NewTimer(r.cfg.RetryBackoff * time.Duration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return &domain.ConcurrencyConflictError{Key: keys[0], Attempts: attempts, Err: lastErr}
}

func (r *MovementRecorder) runLocked(ctx context.Context, keys []string, fn func() error) error {
	if r.locker == nil {
		return fn()
	}
	release, err := r.locker.Lock(ctx, keys...)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

func (r *MovementRecorder) afterCommit(ctx context.Context, actor entity.ActorContext, entry *entity.KardexEntry) {
	if r.cache != nil {
		if err := r.cache.Invalidate(ctx, entry.ProductID, entry.WarehouseID); err != nil {
			r.log.Warn().Err(err).Str("product_id", entry.ProductID).Msg("invalidar caché de stock")
		}
	}
	r.log.Info().
		Str("audit", "kardex").
		Str("entry_id", entry.ID).
		Str("kind", string(entry.Kind)).
		Str("direction", string(entry.Direction)).
		Str("warehouse_id", entry.WarehouseID).
		Str("product_id", entry.ProductID).
		Str("quantity", entry.Quantity.String()).
		Str("unit_cost", entry.UnitCost.String()).
		Str("quantity_after", entry.QuantityAfter.String()).
		Str("average_cost_after", entry.AverageCostAfter.String()).
		Str("reference", entry.Reference.String()).
		Str("user_id", actor.UserID).
		Str("company_id", actor.CompanyID).
		Str("request_id", actor.RequestID).
		Str("source", actor.Source).
		Msg("movimiento registrado")
}
