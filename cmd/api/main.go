package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/Kardex-api/internal/application/inventory"
	"github.com/jhoicas/Kardex-api/internal/application/usecase"
	"github.com/jhoicas/Kardex-api/internal/domain/repository"
	"github.com/jhoicas/Kardex-api/internal/infrastructure/memory"
	"github.com/jhoicas/Kardex-api/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/Kardex-api/internal/infrastructure/redis"
	httpRouter "github.com/jhoicas/Kardex-api/internal/interfaces/http"
	"github.com/jhoicas/Kardex-api/pkg/config"
	"github.com/jhoicas/Kardex-api/pkg/logger"
)

// stores agrupa los adaptadores de persistencia elegidos por KARDEX_STORE.
type stores struct {
	tx         inventory.TxRunner
	products   repository.ProductRepository
	warehouses repository.WarehouseRepository
	stock      repository.StockRepository
	kardex     repository.KardexRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
		App:   cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("store", cfg.Kardex.Store).
		Msg("iniciando aplicación")

	ctx := context.Background()

	var st stores
	switch cfg.Kardex.Store {
	case "memory":
		mem := memory.NewStore(cfg.Kardex.LockTimeout)
		st = stores{
			tx:         mem,
			products:   mem.ProductRepository(),
			warehouses: mem.WarehouseRepository(),
			stock:      mem.StockRepository(),
			kardex:     mem.KardexRepository(),
		}
		log.Warn().Msg("store en memoria: los datos se pierden al reiniciar")
	default:
		if cfg.DB.AutoMigrate {
			if err := postgres.Migrate(cfg.DB.ConnectionString(), log.Component("migrate")); err != nil {
				log.Fatal().Err(err).Msg("migraciones")
			}
		}
		var pool *pgxpool.Pool
		pool, err = postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		st = stores{
			tx:         postgres.NewTxRunner(pool, cfg.Kardex.LockTimeout),
			products:   postgres.NewProductRepository(pool),
			warehouses: postgres.NewWarehouseRepository(pool),
			stock:      postgres.NewStockRepository(pool),
			kardex:     postgres.NewKardexRepository(pool),
		}
	}

	var (
		opts  []inventory.RecorderOption
		cache inventory.StockCache
	)
	if cfg.Redis.Enabled() {
		var rdb *goredis.Client
		rdb, err = infraredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer rdb.Close()

		opts = append(opts, inventory.WithKeyLocker(infraredis.NewKeyLocker(rdb, infraredis.LockerConfig{
			TTL:     cfg.Kardex.LockTTL,
			Wait:    cfg.Kardex.LockTimeout,
			Backoff: cfg.Kardex.RetryBackoff,
		}, log.Component("redis"))))
		if cfg.Kardex.StockCacheTTL > 0 {
			cache = infraredis.NewStockCache(rdb, cfg.Kardex.StockCacheTTL)
			opts = append(opts, inventory.WithStockCache(cache))
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("bloqueo distribuido activo")
	}

	recorder := inventory.NewMovementRecorder(st.tx, st.warehouses, log.Component("kardex"), inventory.RecorderConfig{
		MaxRetries:   cfg.Kardex.MaxRetries,
		RetryBackoff: cfg.Kardex.RetryBackoff,
	}, opts...)
	guard := inventory.NewStockAvailabilityGuard(st.stock, st.products)
	ledger := inventory.NewLedgerQuery(st.kardex, st.stock, cache, log.Component("ledger"))

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		WarehouseUC: usecase.NewWarehouseUseCase(st.warehouses),
		ProductUC:   usecase.NewProductUseCase(st.products),
		Recorder:    recorder,
		Guard:       guard,
		Ledger:      ledger,
		JWTSecret:   cfg.JWT.Secret,
		JWTIssuer:   cfg.JWT.Issuer,
		Log:         log.Component("http"),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
