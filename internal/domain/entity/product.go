package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto del catálogo visto desde el kardex.
// AverageCost es el costo promedio ponderado; solo lo modifica el registrador de movimientos.
// Si TracksStock es falso no se validan existencias y el saldo puede quedar negativo.
type Product struct {
	ID          string
	CompanyID   string
	SKU         string // código único por empresa
	Name        string
	TracksStock bool
	AverageCost decimal.Decimal // inicia en 0
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
