package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/storefront-cart/internal/application/cart"
	"github.com/jhoicas/storefront-cart/internal/application/inventory"
	"github.com/jhoicas/storefront-cart/internal/domain/repository"
	"github.com/jhoicas/storefront-cart/internal/infrastructure/memory"
	"github.com/jhoicas/storefront-cart/internal/infrastructure/metrics"
	"github.com/jhoicas/storefront-cart/internal/infrastructure/postgres"
	redisstore "github.com/jhoicas/storefront-cart/internal/infrastructure/redis"
	httpRouter "github.com/jhoicas/storefront-cart/internal/interfaces/http"
	"github.com/jhoicas/storefront-cart/pkg/config"
	"github.com/jhoicas/storefront-cart/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("store", cfg.Cart.StoreDriver).
		Bool("cache", cfg.Cart.CacheEnabled).
		Msg("iniciando aplicación")

	ctx := context.Background()

	var (
		cartRepo  repository.CartLineRepository
		stockRepo repository.InventoryRepository
		catalog   repository.VariantRepository
		rdb       *goredis.Client
	)

	if cfg.Cart.StoreDriver == config.StoreDriverRedis || cfg.Cart.CacheEnabled {
		rdb = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("conexión a Redis")
		}
		defer rdb.Close()
	}

	switch cfg.Cart.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn().Msg("almacenamiento en memoria: los carritos se pierden al reiniciar")
		cartRepo = memory.NewCartStore()
		stockRepo = memory.NewInventoryStore()
		catalog = memory.NewCatalog()
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()

		stockRepo = postgres.NewInventoryRepository(pool)
		catalog = postgres.NewVariantRepository(pool)
		cartRepo = postgres.NewCartLineRepository(pool, cfg.Cart.MaxRetries)
		if cfg.Cart.StoreDriver == config.StoreDriverRedis {
			cartRepo = redisstore.NewCartRepository(rdb, cfg.Cart.MaxRetries)
		}
	}

	var lineCache cart.LineCache
	if cfg.Cart.CacheEnabled {
		lineCache = redisstore.NewLineCache(rdb, cfg.Cart.CacheTTL)
	}

	registry := metrics.NewRegistry()
	cartUC := cart.NewUseCase(cartRepo, catalog, inventory.NewStockAggregator(stockRepo), cart.Options{
		MaxLineQuantity: cfg.Cart.MaxLineQuantity,
		Cache:           lineCache,
		Metrics:         registry,
		Logger:          log,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Storefront Cart API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "store": cfg.Cart.StoreDriver})
	})
	app.Get("/metrics", adaptor.HTTPHandler(registry.Handler()))

	httpRouter.Router(app, httpRouter.RouterDeps{
		CartUC: cartUC,
		Identity: httpRouter.IdentityConfig{
			JWTSecret:     cfg.JWT.Secret,
			JWTIssuer:     cfg.JWT.Issuer,
			SessionHeader: cfg.Session.Header,
			SessionCookie: cfg.Session.Cookie,
		},
		Logger: log,
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
