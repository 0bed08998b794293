package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"promoverse/config"
	"promoverse/logger"
	"promoverse/models"
	"promoverse/services"

	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var rootCmd = &cobra.Command{
	Use:   "promoverse",
	Short: "PromoVerse boost economy service",
	Long: `Runs the PromoVerse promotion backend: credit ledger, paid boosts,
trending feed, analytics and achievements. With no subcommand it serves HTTP.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update database tables and exit",
	RunE:  runMigrate,
}

var publishDueCmd = &cobra.Command{
	Use:   "publish-due",
	Short: "Publish scheduled promotions whose time has come, once",
	RunE:  runPublishDue,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(publishDueCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap loads config, builds the logger and opens the database.
func bootstrap() (*config.Config, *logger.Logger, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := openDB(cfg)
	if err != nil {
		log.Sync()
		return nil, nil, nil, err
	}
	return cfg, log, db, nil
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseURL)
	default:
		dialector = postgres.Open(cfg.DatabaseURL)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if cfg.DBDriver == "sqlite" {
		// one writer at a time; the conditional updates rely on it
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	_, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := models.AutoMigrate(db); err != nil {
		log.Error("❌ [DB] migration failed", "error", err)
		return err
	}
	log.Info("✅ [DB] schema up to date")
	return nil
}

func runPublishDue(cmd *cobra.Command, args []string) error {
	_, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	promotions := services.NewPromotionService(db, log, services.NewAchievementService(db, log, nil))
	n, err := promotions.PublishDue(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published %d promotion(s)\n", n)
	return nil
}
