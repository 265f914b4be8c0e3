package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Kardex-api/internal/application/inventory"
)

var _ inventory.StockCache = (*StockCache)(nil)

const (
	stockPrefix = "kardex:stock:"
	totalSuffix = "total"
)

// StockCache existencias por (producto, bodega) y total por producto, con TTL.
// El registrador invalida después de cada commit; el TTL acota cualquier lectura vieja.
type StockCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewStockCache construye la caché con el TTL indicado.
func NewStockCache(client *goredis.Client, ttl time.Duration) *StockCache {
	return &StockCache{client: client, ttl: ttl}
}

func stockKey(productID, warehouseID string) string {
	if warehouseID == "" {
		warehouseID = totalSuffix
	}
	return stockPrefix + productID + ":" + warehouseID
}

// Get devuelve (valor, true) si hay dato en caché.
func (c *StockCache) Get(ctx context.Context, productID, warehouseID string) (decimal.Decimal, bool, error) {
	raw, err := c.client.Get(ctx, stockKey(productID, warehouseID)).Result()
	if errors.Is(err, goredis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("get stock cache: %w", err)
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("decode stock cache: %w", err)
	}
	return v, true, nil
}

// Set guarda el valor con el TTL configurado.
func (c *StockCache) Set(ctx context.Context, productID, warehouseID string, onHand decimal.Decimal) error {
	if err := c.client.Set(ctx, stockKey(productID, warehouseID), onHand.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("set stock cache: %w", err)
	}
	return nil
}

// Invalidate borra las parejas indicadas y siempre el total del producto.
func (c *StockCache) Invalidate(ctx context.Context, productID string, warehouseIDs ...string) error {
	keys := []string{stockKey(productID, "")}
	for _, wh := range warehouseIDs {
		if wh != "" {
			keys = append(keys, stockKey(productID, wh))
		}
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate stock cache: %w", err)
	}
	return nil
}
