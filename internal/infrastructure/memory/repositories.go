package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Kardex-api/internal/domain"
	"github.com/jhoicas/Kardex-api/internal/domain/entity"
	"github.com/jhoicas/Kardex-api/internal/domain/repository"
)

var (
	_ repository.ProductRepository   = (*ProductRepo)(nil)
	_ repository.WarehouseRepository = (*WarehouseRepo)(nil)
	_ repository.StockRepository     = (*StockRepo)(nil)
	_ repository.KardexRepository    = (*KardexRepo)(nil)
)

// ProductRepo productos en memoria.
type ProductRepo struct {
	s  *Store
	tx *memTx
}

func (r *ProductRepo) Create(_ context.Context, product *entity.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[product.ID]; ok {
		return domain.ErrDuplicate
	}
	for _, p := range r.s.products {
		if p.CompanyID == product.CompanyID && p.SKU == product.SKU {
			return domain.ErrDuplicate
		}
	}
	r.s.products[product.ID] = *product
	return nil
}

func (r *ProductRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	r.s.mu.Lock()
	p, ok := r.s.products[id]
	r.s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	if r.tx != nil {
		if pending, ok := r.tx.costs[id]; ok {
			p.AverageCost = pending.AverageCost
			p.UpdatedAt = pending.UpdatedAt
		}
	}
	return &p, nil
}

func (r *ProductRepo) GetForUpdate(ctx context.Context, id string) (*entity.Product, error) {
	var out *entity.Product
	err := r.s.autocommit(r.tx, func(tx *memTx) error {
		if err := tx.lock(ctx, productLockKey(id)); err != nil {
			return err
		}
		p, err := (&ProductRepo{s: r.s, tx: tx}).GetByID(ctx, id)
		out = p
		return err
	})
	return out, err
}

func (r *ProductRepo) UpdateAverageCost(ctx context.Context, productID string, cost decimal.Decimal) error {
	return r.s.autocommit(r.tx, func(tx *memTx) error {
		r.s.mu.Lock()
		_, ok := r.s.products[productID]
		r.s.mu.Unlock()
		if !ok {
			return domain.ErrNotFound
		}
		tx.costs[productID] = entity.Product{ID: productID, AverageCost: cost, UpdatedAt: time.Now().UTC()}
		return nil
	})
}

func (r *ProductRepo) ListByCompany(_ context.Context, companyID string, limit, offset int) ([]*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := make([]*entity.Product, 0)
	for _, p := range r.s.products {
		if p.CompanyID == companyID {
			p := p
			list = append(list, &p)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].SKU < list[j].SKU })
	return paginate(list, limit, offset), nil
}

// WarehouseRepo bodegas en memoria.
type WarehouseRepo struct {
	s *Store
}

func (r *WarehouseRepo) Create(_ context.Context, warehouse *entity.Warehouse) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.warehouses[warehouse.ID]; ok {
		return domain.ErrDuplicate
	}
	r.s.warehouses[warehouse.ID] = *warehouse
	return nil
}

func (r *WarehouseRepo) GetByID(_ context.Context, id string) (*entity.Warehouse, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.warehouses[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *WarehouseRepo) ListByCompany(_ context.Context, companyID string, limit, offset int) ([]*entity.Warehouse, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := make([]*entity.Warehouse, 0)
	for _, w := range r.s.warehouses {
		if w.CompanyID == companyID {
			w := w
			list = append(list, &w)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return paginate(list, limit, offset), nil
}

// StockRepo existencias en memoria.
type StockRepo struct {
	s  *Store
	tx *memTx
}

func (r *StockRepo) current(productID, warehouseID string) entity.Stock {
	key := entity.StockKey(warehouseID, productID)
	if r.tx != nil {
		if st, ok := r.tx.stock[key]; ok {
			return st
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if st, ok := r.s.stock[key]; ok {
		return st
	}
	return entity.Stock{ProductID: productID, WarehouseID: warehouseID, OnHand: decimal.Zero}
}

func (r *StockRepo) Get(_ context.Context, productID, warehouseID string) (*entity.Stock, error) {
	st := r.current(productID, warehouseID)
	return &st, nil
}

func (r *StockRepo) GetOrCreateForUpdate(ctx context.Context, productID, warehouseID string) (*entity.Stock, error) {
	var out *entity.Stock
	err := r.s.autocommit(r.tx, func(tx *memTx) error {
		if err := tx.lock(ctx, entity.StockKey(warehouseID, productID)); err != nil {
			return err
		}
		st := (&StockRepo{s: r.s, tx: tx}).current(productID, warehouseID)
		out = &st
		return nil
	})
	return out, err
}

func (r *StockRepo) Update(ctx context.Context, stock *entity.Stock) error {
	return r.s.autocommit(r.tx, func(tx *memTx) error {
		key := stock.Key()
		if err := tx.lock(ctx, key); err != nil {
			return err
		}
		cur := (&StockRepo{s: r.s, tx: tx}).current(stock.ProductID, stock.WarehouseID)
		if cur.Version != stock.Version {
			return domain.ErrConcurrencyConflict
		}
		next := *stock
		next.Version = stock.Version + 1
		tx.stock[key] = next
		stock.Version = next.Version
		return nil
	})
}

func (r *StockRepo) SumByProduct(_ context.Context, productID string) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := decimal.Zero
	for _, st := range r.s.stock {
		if st.ProductID == productID {
			total = total.Add(st.OnHand)
		}
	}
	return total, nil
}

func (r *StockRepo) ListByProduct(_ context.Context, productID string) ([]*entity.Stock, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := make([]*entity.Stock, 0)
	for _, st := range r.s.stock {
		if st.ProductID == productID {
			st := st
			list = append(list, &st)
		}
	}
	sortedStock(list)
	return list, nil
}

// KardexRepo libro de movimientos en memoria (solo inserción).
type KardexRepo struct {
	s  *Store
	tx *memTx
}

func (r *KardexRepo) Append(_ context.Context, entry *entity.KardexEntry) error {
	return r.s.autocommit(r.tx, func(tx *memTx) error {
		if entry.ID == "" {
			entry.ID = uuid.New().String()
		}
		tx.entries = append(tx.entries, entry)
		return nil
	})
}

func (r *KardexRepo) List(_ context.Context, f repository.KardexFilter) ([]*entity.KardexEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := make([]*entity.KardexEntry, 0)
	for _, e := range r.s.entries {
		if e.ProductID != f.ProductID || e.Seq <= f.AfterSeq {
			continue
		}
		if f.WarehouseID != "" && e.WarehouseID != f.WarehouseID {
			continue
		}
		if f.From != nil && e.OccurredAt.Before(*f.From) {
			continue
		}
		if f.To != nil && e.OccurredAt.After(*f.To) {
			continue
		}
		e := e
		list = append(list, &e)
		if f.Limit > 0 && len(list) == f.Limit {
			break
		}
	}
	return list, nil
}

func paginate[T any](list []T, limit, offset int) []T {
	if offset >= len(list) {
		return list[:0]
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
