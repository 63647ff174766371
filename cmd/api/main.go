package main

import (
	"context"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/threadline/loyalty-engine/internal/config"
	"github.com/threadline/loyalty-engine/internal/handler"
	"github.com/threadline/loyalty-engine/internal/mailer"
	"github.com/threadline/loyalty-engine/internal/rarity"
	"github.com/threadline/loyalty-engine/internal/repository"
	"github.com/threadline/loyalty-engine/internal/scheduler"
	"github.com/threadline/loyalty-engine/internal/service"
	"github.com/threadline/loyalty-engine/internal/validator"
	"github.com/threadline/loyalty-engine/pkg/database"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize zerolog based on configuration
	initLogger(cfg)

	// Validate the rarity table before anything can draw from it
	table := rarity.Default()
	if err := table.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid rarity table configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database pool with retry, then apply the schema
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to apply database schema")
	}

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Threadline Loyalty Engine",
		ReadTimeout:  30 * time.Second,  // Max time to read request
		WriteTimeout: 30 * time.Second,  // Max time to write response
		IdleTimeout:  120 * time.Second, // Max time for keep-alive connections
		BodyLimit:    1 * 1024 * 1024,   // 1MB body limit (explicit, prevents large payloads)
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())

	// Initialize validator
	validate := validator.New()

	// Repositories
	ledgerRepo := repository.NewLedgerRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)

	// Loyalty components (layered architecture)
	selector := rarity.NewSelector(table, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
	codes := service.NewCodeGenerator(couponRepo)
	notify := mailer.New(mailer.LogSender{})
	loyaltySvc := service.NewLoyaltyService(pool, ledgerRepo, couponRepo, selector, codes, notify, cfg.Loyalty)
	redemptionSvc := service.NewRedemptionService(couponRepo)
	orderSvc := service.NewOrderService(orderRepo, redemptionSvc)

	loyaltyHandler := handler.NewLoyaltyHandler(loyaltySvc)
	couponHandler := handler.NewCouponHandler(redemptionSvc, validate)
	orderHandler := handler.NewOrderHandler(orderSvc, validate)

	// Health handler
	healthHandler := handler.NewHealthHandler(pool)
	app.Get("/health", healthHandler.Check)

	// Loyalty routes
	loyaltyGroup := app.Group("/api/loyalty", handler.RequireUser)
	loyaltyGroup.Get("/status", loyaltyHandler.Status)
	loyaltyGroup.Get("/history", loyaltyHandler.History)
	loyaltyGroup.Post("/stamps", loyaltyHandler.AddStamp)
	loyaltyGroup.Post("/claim", loyaltyHandler.Claim)
	loyaltyGroup.Post("/welcome", loyaltyHandler.Welcome)

	// Checkout coupon routes
	couponGroup := app.Group("/api/coupons", handler.RequireUser)
	couponGroup.Post("/apply", couponHandler.Apply)
	couponGroup.Post("/remove", couponHandler.Remove)

	// Order finalization routes
	orderGroup := app.Group("/api/orders", handler.RequireUser)
	orderGroup.Post("/cod", orderHandler.CreateCOD)
	orderGroup.Post("/:id/verify-payment", orderHandler.VerifyPayment)
	app.Put("/api/admin/orders/:id/mark-paid", orderHandler.AdminMarkPaid)

	// Stamp sweep on a daily ticker
	stamper := service.NewStamper(pool, orderRepo, ledgerRepo, cfg.Loyalty)
	sweep := scheduler.New(stamper, cfg.Loyalty.SweepInterval(), cfg.Loyalty.SweepAtStart)
	sweep.Start(ctx)

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	// Stop the sweep loop before tearing anything down
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Shutdown server (waits for in-flight requests)
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Close database pool AFTER server shutdown (even if shutdown timed out)
	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("database connections closed")
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
