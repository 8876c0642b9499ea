package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Project-DOFTA/dft/internal/config"
	"github.com/Project-DOFTA/dft/internal/db"
	"github.com/Project-DOFTA/dft/internal/events"
	"github.com/Project-DOFTA/dft/internal/locker"
	"github.com/Project-DOFTA/dft/internal/models"
	"github.com/Project-DOFTA/dft/internal/repositories"
	"github.com/Project-DOFTA/dft/internal/services"
	"go.uber.org/zap"
)

// The worker handles the jobs that only need durable state: sweeping
// pending orders the seller never acted on. Escrow reconciliation runs
// inside the API process, next to the contract that holds the escrow
// records and balances.
func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
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

	listingRepo := repositories.NewListingRepo(pool)
	orderRepo := repositories.NewOrderRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	publisher := events.NewRedisPublisher(rdb, log)
	locks := locker.NewKeyedMutex()
	orderService := services.NewOrderService(orderRepo, listingRepo, auditRepo, publisher, locks, log)

	log.Info("worker started")

	staleTicker := time.NewTicker(cfg.StaleSweepInterval)
	defer staleTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-staleTicker.C:
			runStaleSweep(ctx, orderRepo, orderService, cfg, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// runStaleSweep cancels pending orders the seller never acted on.
func runStaleSweep(ctx context.Context, orderRepo *repositories.OrderRepo, orderService *services.OrderService, cfg *config.Config, log *zap.Logger) {
	orders, err := orderRepo.ListStalePending(ctx, cfg.StaleOrderTimeout, 100)
	if err != nil {
		log.Error("failed to list stale orders", zap.Error(err))
		return
	}

	for _, order := range orders {
		log.Info("cancelling stale pending order",
			zap.String("order_id", order.ID.String()),
			zap.Time("created_at", order.CreatedAt),
		)
		if _, err := orderService.CancelPending(ctx, order.ID, nil, models.ActorTypeSystem); err != nil {
			log.Error("failed to cancel stale order", zap.String("order_id", order.ID.String()), zap.Error(err))
		}
	}
}
