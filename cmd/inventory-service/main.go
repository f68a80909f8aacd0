package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kioskly/kiosk-backend/internal/inventory/consumers"
	"github.com/kioskly/kiosk-backend/internal/inventory/events"
	"github.com/kioskly/kiosk-backend/internal/inventory/handler"
	"github.com/kioskly/kiosk-backend/internal/inventory/repository"
	"github.com/kioskly/kiosk-backend/internal/inventory/service"
	"github.com/kioskly/kiosk-backend/pkg/config"
	"github.com/kioskly/kiosk-backend/pkg/database"
	"github.com/kioskly/kiosk-backend/pkg/httputil"
	"github.com/kioskly/kiosk-backend/pkg/logger"
	"github.com/kioskly/kiosk-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewInventoryEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	retry := database.RetryPolicy{
		MaxRetries: cfg.Inventory.TxMaxRetries,
		Backoff:    cfg.Inventory.TxRetryBackoff,
	}

	// Initialize repositories
	itemRepo := repository.NewItemRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	poRepo := repository.NewPurchaseOrderRepository(db)
	countRepo := repository.NewCountRepository(db)
	alertRepo := repository.NewAlertRepository(db)

	// Initialize services
	catalogService := service.NewCatalogService(itemRepo, batchRepo, ledgerRepo, log)
	allocationService := service.NewAllocationService(db, itemRepo, batchRepo, ledgerRepo, publisher, retry, log)
	receivingService := service.NewReceivingService(db, poRepo, itemRepo, batchRepo, ledgerRepo, publisher, retry, log)
	countService := service.NewCountService(db, countRepo, itemRepo, batchRepo, ledgerRepo, publisher, retry, log)
	alertScanner := service.NewAlertScanner(db, itemRepo, batchRepo, alertRepo, publisher, cfg.Inventory.ExpiryWarningDays, cfg.Inventory.ExpiryCriticalDays, log)
	advisor := service.NewReorderAdvisor(itemRepo, ledgerRepo, cfg.Inventory.ConsumptionWindowDays, log)
	auditor := service.NewIntegrityAuditor(db, itemRepo, batchRepo, alertRepo, publisher, log)
	sweeper := service.NewExpirySweeper(db, itemRepo, batchRepo, ledgerRepo, publisher, retry, log)

	// Initialize handlers
	itemHandler := handler.NewItemHandler(catalogService, log)
	allocationHandler := handler.NewAllocationHandler(allocationService, log)
	poHandler := handler.NewPurchaseOrderHandler(receivingService, log)
	countHandler := handler.NewCountHandler(countService, log)
	alertHandler := handler.NewAlertHandler(alertScanner, log)
	advisorHandler := handler.NewAdvisorHandler(advisor, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the order event consumer (cancellations trigger reversals)
	orderConsumer, err := consumers.NewOrderEventConsumer(rmq, allocationService, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create order event consumer")
	}
	if err := orderConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start order event consumer")
	}

	// Start the maintenance scheduler (sweep, scan, audit)
	scheduler := service.NewMaintenanceScheduler(sweeper, alertScanner, auditor, cfg.Inventory.ScanInterval, log)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(httputil.ActorMiddleware)

	// CORS for the admin dashboard
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			if origin == "http://localhost:3000" || origin == "http://localhost:5173" {
				return true
			}
			return strings.HasSuffix(origin, ".kioskly.io")
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-Actor-ID", "X-Actor-Name", "X-Actor-Email"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "inventory-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Route("/items", func(r chi.Router) {
			r.Get("/", itemHandler.List)
			r.Post("/", itemHandler.Create)
			r.Get("/{id}", itemHandler.Get)
			r.Put("/{id}", itemHandler.Update)
			r.Delete("/{id}", itemHandler.Deactivate)
			r.Get("/{id}/movements", itemHandler.Movements)
		})

		r.Route("/allocations", func(r chi.Router) {
			r.Post("/", allocationHandler.Allocate)
			r.Post("/{orderRef}/reverse", allocationHandler.Reverse)
		})

		r.Route("/purchase-orders", func(r chi.Router) {
			r.Get("/", poHandler.List)
			r.Post("/", poHandler.Create)
			r.Get("/{id}", poHandler.Get)
			r.Post("/{id}/send", poHandler.Send)
			r.Post("/{id}/confirm", poHandler.Confirm)
			r.Post("/{id}/receive", poHandler.Receive)
		})

		r.Route("/count-sessions", func(r chi.Router) {
			r.Post("/", countHandler.CreateSession)
			r.Get("/{id}", countHandler.GetSession)
			r.Post("/{id}/counts", countHandler.RecordCount)
			r.Post("/{id}/reconcile", countHandler.Reconcile)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", alertHandler.List)
			r.Post("/scan", alertHandler.Scan)
			r.Post("/{id}/acknowledge", alertHandler.Acknowledge)
		})

		r.Get("/reorder-suggestions", advisorHandler.Suggestions)
	})

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	log.Info().Msg("stopped")
}
