package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"promoverse/config"
	"promoverse/handlers"
	"promoverse/logger"
	"promoverse/middleware"
	"promoverse/models"
	"promoverse/services"
	"promoverse/utils"
	"promoverse/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, scheduler and sync workers",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := models.AutoMigrate(db); err != nil {
		log.Error("❌ [DB] migration failed", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := buildServices(ctx, cfg, log, db)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Notifications.Close(); err != nil {
			log.Warn("⚠️ [Notify] bus close failed", "error", err)
		}
	}()

	sched, err := svc.Promotions.StartPublishScheduler(cfg.PublishInterval)
	if err != nil {
		return err
	}
	defer func() { _ = sched.Shutdown() }()

	if cfg.SyncServiceURL != "" {
		workers.NewAccountSyncWorker(svc.Accounts, log, cfg.SyncServiceURL, cfg.ServiceToken, cfg.SyncInterval).Start(ctx)
	} else {
		log.Warn("⚠️ [SYNC] SYNC_SERVICE_URL not set, accounts are only created on first request")
	}
	if cfg.PaymentServiceURL != "" {
		workers.NewDepositSyncWorker(svc.Ledger, svc.Accounts, svc.Notifications, log, cfg.PaymentServiceURL, cfg.ServiceToken, cfg.SyncInterval).Start(ctx)
	} else {
		log.Warn("⚠️ [Deposits] PAYMENT_SERVICE_URL not set, deposit import disabled")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: int(utils.MaxMediaBytes) + 1024*1024,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, X-Username, X-Service-Token, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	// only gateway traffic, except health checks, metrics and the SSE stream which carries its own token
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken, log, "/healthz", "/metrics", "/notifications/stream"))

	handlers.SetupRoutes(app, svc, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(fmt.Sprintf(":%d", cfg.Port))
	}()
	log.Info("✅ [HTTP] server running", "port", cfg.Port, "origins", cfg.AllowedOrigins, "db_driver", cfg.DBDriver)

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("❌ [HTTP] server error", "error", err)
			return err
		}
	case <-ctx.Done():
	}

	log.Info("⏹️ [HTTP] shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warn("⚠️ [HTTP] shutdown incomplete", "error", err)
	}
	return nil
}

// buildServices wires the domain services. Redis, R2 and the auth service are optional.
func buildServices(ctx context.Context, cfg *config.Config, log *logger.Logger, db *gorm.DB) (*handlers.Services, error) {
	tiers, err := services.ParseBoostTiers(cfg.BoostTiers)
	if err != nil {
		return nil, fmt.Errorf("BOOST_TIERS: %w", err)
	}

	var bus services.NotificationBus
	if cfg.RedisAddr != "" {
		bus, err = services.NewRedisBus(log, cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			return nil, err
		}
	}
	notifications := services.NewNotificationService(db, log, bus)
	if bus != nil {
		if err := notifications.StartForwarder(ctx); err != nil {
			_ = notifications.Close()
			return nil, fmt.Errorf("start notification forwarder: %w", err)
		}
	}

	achievements := services.NewAchievementService(db, log, notifications)
	boosts := services.NewBoostService(db, log, tiers, achievements, notifications)

	svc := &handlers.Services{
		DB:              db,
		Accounts:        services.NewAccountService(db, log),
		Ledger:          services.NewLedgerService(db, log),
		Boosts:          boosts,
		Trending:        services.NewTrendingService(db, log, boosts),
		Recommendations: services.NewRecommendationService(db, log),
		Analytics:       services.NewAnalyticsService(db, log),
		Verses:          services.NewVerseService(db, log),
		Achievements:    achievements,
		Promotions:      services.NewPromotionService(db, log, achievements),
		Stars:           services.NewStarService(db, log, cfg.StarRewardCredits, achievements, notifications),
		Notifications:   notifications,
	}

	if cfg.AuthServiceURL != "" {
		svc.AuthClient = services.NewAuthServiceClient(cfg.AuthServiceURL, cfg.ServiceToken)
	}
	if cfg.MediaEnabled() {
		store, err := utils.NewR2Store(ctx, cfg.R2AccountID, cfg.R2AccessKeyID, cfg.R2AccessSecret, cfg.R2Bucket, cfg.CDNBaseURL)
		if err != nil {
			_ = notifications.Close()
			return nil, fmt.Errorf("init R2: %w", err)
		}
		svc.Media = store
	} else {
		log.Info("ℹ️ [Media] R2 not configured, promotion uploads disabled")
	}
	return svc, nil
}
