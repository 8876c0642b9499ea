package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Project-DOFTA/dft/internal/config"
	"github.com/Project-DOFTA/dft/internal/db"
	"github.com/Project-DOFTA/dft/internal/escrow"
	"github.com/Project-DOFTA/dft/internal/events"
	apphttp "github.com/Project-DOFTA/dft/internal/http"
	"github.com/Project-DOFTA/dft/internal/http/handlers"
	"github.com/Project-DOFTA/dft/internal/locker"
	"github.com/Project-DOFTA/dft/internal/repositories"
	"github.com/Project-DOFTA/dft/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	memberRepo := repositories.NewMemberRepo(pool)
	listingRepo := repositories.NewListingRepo(pool)
	orderRepo := repositories.NewOrderRepo(pool)
	transactionRepo := repositories.NewTransactionRepo(pool)
	escrowRepo := repositories.NewEscrowRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Escrow contract
	contract, err := escrow.NewContract(cfg.CoopOwnerID, cfg.PlatformFeePercent, log)
	if err != nil {
		log.Fatal("invalid escrow configuration", zap.Error(err))
	}

	// Services
	notifier := services.NewNotifierClient(cfg.NotifierURL, log)
	locks := locker.NewKeyedMutex()
	orderService := services.NewOrderService(orderRepo, listingRepo, auditRepo, publisher, locks, log)
	coordinator := services.NewTransactionCoordinator(
		orderRepo, listingRepo, transactionRepo, escrowRepo, auditRepo,
		contract, publisher, notifier, locks,
		services.CoordinatorOptions{
			RetryAttempts: cfg.LedgerRetryAttempts,
			RetryBackoff:  cfg.LedgerRetryBackoff,
			CallTimeout:   cfg.EscrowCallTimeout,
		},
		log,
	)

	// Handlers
	authHandler := handlers.NewAuthHandler(memberRepo, cfg, log)
	listingHandler := handlers.NewListingHandler(listingRepo, log)
	orderHandler := handlers.NewOrderHandler(orderService, coordinator, auditRepo, log)
	walletHandler := handlers.NewWalletHandler(contract, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	wsHub.Start(ctx)

	// The contract lives in this process, so reconciliation has to run
	// next to it: a separate binary would only see an empty contract.
	go runReconcileLoop(ctx, coordinator, cfg.ReconcileInterval, log)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, listingHandler, orderHandler, walletHandler, wsHub)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

func runReconcileLoop(ctx context.Context, coordinator *services.TransactionCoordinator, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			repaired, err := coordinator.Reconcile(ctx, 100)
			if err != nil {
				log.Error("reconcile pass failed", zap.Error(err))
				continue
			}
			if repaired > 0 {
				log.Info("reconcile pass converged orders", zap.Int("repaired", repaired))
			}
		case <-ctx.Done():
			return
		}
	}
}
