// Package memory implementa los puertos del kardex en memoria, con la misma semántica
// transaccional que PostgreSQL: bloqueo por fila hasta el commit, escrituras diferidas
// (rollback las descarta) y control de versión en stock.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/Kardex-api/internal/application/inventory"
	"github.com/jhoicas/Kardex-api/internal/domain"
	"github.com/jhoicas/Kardex-api/internal/domain/entity"
	"github.com/jhoicas/Kardex-api/internal/domain/repository"
)

var _ inventory.TxRunner = (*Store)(nil)

// DefaultLockTimeout espera máxima por un bloqueo de fila antes de reportar conflicto.
const DefaultLockTimeout = 2 * time.Second

// Store almacena productos, bodegas, stock y el kardex en memoria del proceso.
type Store struct {
	mu          sync.Mutex
	products    map[string]entity.Product
	warehouses  map[string]entity.Warehouse
	stock       map[string]entity.Stock
	entries     []entity.KardexEntry
	seq         int64
	locks       map[string]*keyLock
	lockTimeout time.Duration
}

// NewStore crea un store vacío. lockTimeout <= 0 usa DefaultLockTimeout.
func NewStore(lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Store{
		products:    make(map[string]entity.Product),
		warehouses:  make(map[string]entity.Warehouse),
		stock:       make(map[string]entity.Stock),
		locks:       make(map[string]*keyLock),
		lockTimeout: lockTimeout,
	}
}

// Run ejecuta fn en una transacción: commit si fn devuelve nil, descarte en otro caso.
func (s *Store) Run(ctx context.Context, fn func(
	kardexRepo repository.KardexRepository,
	stockRepo repository.StockRepository,
	productRepo repository.ProductRepository,
) error) error {
	tx := s.begin()
	defer tx.releaseLocks()
	if err := fn(&KardexRepo{s: s, tx: tx}, &StockRepo{s: s, tx: tx}, &ProductRepo{s: s, tx: tx}); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// ProductRepository repositorio de productos fuera de transacción (autocommit).
func (s *Store) ProductRepository() *ProductRepo { return &ProductRepo{s: s} }

// WarehouseRepository repositorio de bodegas.
func (s *Store) WarehouseRepository() *WarehouseRepo { return &WarehouseRepo{s: s} }

// StockRepository repositorio de stock fuera de transacción (autocommit).
func (s *Store) StockRepository() *StockRepo { return &StockRepo{s: s} }

// KardexRepository repositorio del kardex fuera de transacción (autocommit).
func (s *Store) KardexRepository() *KardexRepo { return &KardexRepo{s: s} }

// keyLock es el bloqueo de una fila. refs cuenta a quienes lo tienen o lo esperan;
// en cero se saca del mapa.
type keyLock struct {
	ch   chan struct{}
	refs int
}

func (s *Store) ref(key string) *keyLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		s.locks[key] = l
	}
	l.refs++
	return l
}

func (s *Store) unref(key string, l *keyLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
}

func (s *Store) acquire(ctx context.Context, key string) error {
	l := s.ref(key)
	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()
	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		s.unref(key, l)
		return ctx.Err()
	case <-timer.C:
		s.unref(key, l)
		return fmt.Errorf("memory: bloqueo %s: %w", key, domain.ErrConcurrencyConflict)
	}
}

func (s *Store) release(key string) {
	s.mu.Lock()
	l := s.locks[key]
	s.mu.Unlock()
	<-l.ch
	s.unref(key, l)
}

// ──────────────────────────────────────────────────────────────────────────────
// Transacción
// ──────────────────────────────────────────────────────────────────────────────

type memTx struct {
	s       *Store
	held    []string
	heldSet map[string]bool
	stock   map[string]entity.Stock
	costs   map[string]entity.Product
	entries []*entity.KardexEntry
}

func (s *Store) begin() *memTx {
	return &memTx{
		s:       s,
		heldSet: make(map[string]bool),
		stock:   make(map[string]entity.Stock),
		costs:   make(map[string]entity.Product),
	}
}

func (tx *memTx) lock(ctx context.Context, key string) error {
	if tx.heldSet[key] {
		return nil
	}
	if err := tx.s.acquire(ctx, key); err != nil {
		return err
	}
	tx.heldSet[key] = true
	tx.held = append(tx.held, key)
	return nil
}

func (tx *memTx) releaseLocks() {
	for i := len(tx.held) - 1; i >= 0; i-- {
		tx.s.release(tx.held[i])
	}
	tx.held = nil
	tx.heldSet = map[string]bool{}
}

func (tx *memTx) commit() {
	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, st := range tx.stock {
		s.stock[k] = st
	}
	for id, p := range tx.costs {
		cur, ok := s.products[id]
		if !ok {
			continue
		}
		cur.AverageCost = p.AverageCost
		cur.UpdatedAt = p.UpdatedAt
		s.products[id] = cur
	}
	for _, e := range tx.entries {
		s.seq++
		e.Seq = s.seq
		s.entries = append(s.entries, *e)
	}
}

// autocommit ejecuta una escritura aislada cuando el repositorio no está atado a una tx.
func (s *Store) autocommit(tx *memTx, fn func(tx *memTx) error) error {
	if tx != nil {
		return fn(tx)
	}
	auto := s.begin()
	defer auto.releaseLocks()
	if err := fn(auto); err != nil {
		return err
	}
	auto.commit()
	return nil
}

func productLockKey(id string) string { return "product:" + id }

func sortedStock(list []*entity.Stock) {
	sort.Slice(list, func(i, j int) bool { return list[i].WarehouseID < list[j].WarehouseID })
}
