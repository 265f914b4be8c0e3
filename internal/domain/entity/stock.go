package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock representa las existencias de un producto en una bodega.
// Se crea en cero con el primer movimiento de la pareja y nunca se elimina.
type Stock struct {
	ProductID   string
	WarehouseID string
	OnHand      decimal.Decimal
	Location    string // ubicación física (estante, pasillo); el kardex no la usa
	Version     int64  // se incrementa en cada actualización (control optimista)
	UpdatedAt   time.Time
}

// Key identifica la pareja (bodega, producto) de la sección crítica.
func (s *Stock) Key() string {
	return StockKey(s.WarehouseID, s.ProductID)
}

// StockKey construye la clave de bloqueo para una pareja (bodega, producto).
func StockKey(warehouseID, productID string) string {
	return "stock:" + warehouseID + ":" + productID
}
