package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/Kardex-api/internal/application/inventory"
	"github.com/jhoicas/Kardex-api/internal/application/usecase"
	"github.com/jhoicas/Kardex-api/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	WarehouseUC *usecase.WarehouseUseCase
	ProductUC   *usecase.ProductUseCase
	Recorder    *inventory.MovementRecorder
	Guard       *inventory.StockAvailabilityGuard
	Ledger      *inventory.LedgerQuery
	JWTSecret   string
	JWTIssuer   string
	Log         zerolog.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", RequestID(), RequestLogger(deps.Log))

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer))

	allRoles := RequireRole(entity.RoleAdmin, entity.RoleBodeguero, entity.RoleVendedor)
	stockRoles := RequireRole(entity.RoleAdmin, entity.RoleBodeguero)
	adminOnly := RequireRole(entity.RoleAdmin)

	warehouses := protected.Group("/warehouses")
	warehouseHandler := NewWarehouseHandler(deps.WarehouseUC)
	warehouses.Post("/", adminOnly, warehouseHandler.Create)
	warehouses.Get("/", allRoles, warehouseHandler.List)
	warehouses.Get("/:id", allRoles, warehouseHandler.GetByID)

	products := protected.Group("/products")
	productHandler := NewProductHandler(deps.ProductUC)
	products.Post("/", adminOnly, productHandler.Create)
	products.Get("/", allRoles, productHandler.List)
	products.Get("/:id", allRoles, productHandler.GetByID)

	kardex := protected.Group("/kardex")
	kardexHandler := NewKardexHandler(deps.Recorder, deps.Guard, deps.Ledger, deps.ProductUC)
	kardex.Post("/movements", allRoles, kardexHandler.RecordMovement)
	kardex.Post("/documents", allRoles, kardexHandler.RecordDocument)
	kardex.Post("/transfers", stockRoles, kardexHandler.Transfer)
	kardex.Post("/availability", allRoles, kardexHandler.CheckAvailability)
	kardex.Get("/products/:id/history", allRoles, kardexHandler.History)
	kardex.Get("/products/:id/stock", allRoles, kardexHandler.Stock)
	kardex.Get("/products/:id/reconcile", stockRoles, kardexHandler.Reconcile)
}
