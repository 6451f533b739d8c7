package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/inventory"
	"storefront/internal/metrics"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) *Server {
	router := NewRouter(cfg, logger, db, redisClient, inventory.NewClient(cfg.Inventory, logger), metrics.NewRegistry())

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}
}

// NewRouter wires repositories, services and handlers onto a chi router
func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db database.Service,
	redisClient *redis.Client,
	gateway inventory.Gateway,
	reg *metrics.Registry,
) chi.Router {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		dbHealth := db.Health()
		body := map[string]interface{}{"status": "ok", "database": dbHealth}

		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			body["redis"] = map[string]string{"status": "down", "error": err.Error()}
			status = http.StatusServiceUnavailable
		} else {
			body["redis"] = map[string]string{"status": "up"}
		}
		if dbHealth["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}

		custommiddleware.RespondWithJSON(w, status, body)
	})
	router.Handle("/metrics", reg.Handler())

	store := repository.NewStore(db.DB(), cfg.Database.LockTimeout)
	repos := store.Repositories()
	carts := repository.NewCartRepository(redisClient, cfg.Cart.TTL)

	catalogService := service.NewCatalogService(repos.Products)
	cartService := service.NewCartService(repos.Products, logger)
	orderService := service.NewOrderService(store, reg, logger)
	ledgerService := service.NewLedgerService(repos.Sales, repos.Customers, logger)
	syncService := service.NewSyncService(gateway, store, repos.Products, reg, logger)

	checkoutLimit := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.CheckoutRequests,
		Window:            cfg.RateLimit.CheckoutWindow,
		KeyPrefix:         "ratelimit:checkout",
	}, logger)

	router.Route("/api", func(r chi.Router) {
		r.Use(custommiddleware.SessionMiddleware(custommiddleware.SessionConfig{
			CookieName: cfg.Cart.CookieName,
			TTL:        cfg.Cart.TTL,
			Secure:     !cfg.IsDevelopment(),
		}, logger))

		transport.NewCatalogHandler(catalogService, logger).RegisterRoutes(r)
		transport.NewCartHandler(carts, cartService, logger).RegisterRoutes(r)
		transport.NewOrderHandler(carts, orderService, checkoutLimit, logger).RegisterRoutes(r)
		transport.NewLedgerHandler(ledgerService, logger).RegisterRoutes(r)
		transport.NewSyncHandler(syncService, logger).RegisterRoutes(r)
	})

	return router
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
