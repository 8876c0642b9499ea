package http

import (
	"time"

	"github.com/Project-DOFTA/dft/internal/config"
	"github.com/Project-DOFTA/dft/internal/http/handlers"
	"github.com/Project-DOFTA/dft/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	listingHandler *handlers.ListingHandler,
	orderHandler *handlers.OrderHandler,
	walletHandler *handlers.WalletHandler,
	wsHub *handlers.WSHub,
) {
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)

	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	protected.Get("/me", authHandler.Me)
	protected.Get("/me/balance", walletHandler.Balance)
	protected.Post("/me/balance/deposit", walletHandler.Deposit)

	// Listings
	protected.Post("/listings", listingHandler.Create)
	protected.Get("/listings", listingHandler.List)
	protected.Get("/listings/my", listingHandler.Mine)
	protected.Get("/listings/:id", listingHandler.Get)
	protected.Put("/listings/:id", listingHandler.Update)

	// Orders
	protected.Post("/orders", orderHandler.Create)
	protected.Get("/orders", orderHandler.List)
	protected.Get("/orders/:id", orderHandler.Get)
	protected.Post("/orders/:id/accept", orderHandler.Accept)
	protected.Post("/orders/:id/reject", orderHandler.Reject)
	protected.Post("/orders/:id/cancel", orderHandler.Cancel)

	// Escrow lifecycle
	protected.Post("/orders/:id/escrow", orderHandler.FundEscrow)
	protected.Get("/orders/:id/escrow", orderHandler.Escrow)
	protected.Post("/orders/:id/confirm", orderHandler.Complete)
	protected.Post("/orders/:id/refund", orderHandler.Refund)
	protected.Post("/orders/:id/dispute", orderHandler.Dispute)
	protected.Get("/orders/:id/payment", orderHandler.Payment)
	protected.Get("/orders/:id/events", orderHandler.Events)

	// Back office
	operator := protected.Group("", middleware.OperatorMiddleware())
	operator.Post("/orders/:id/resolve", orderHandler.Resolve)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
