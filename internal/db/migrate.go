package db

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/go-honoraires/internal/config"
	"github.com/diewo77/go-honoraires/internal/models"
)

// Open connects to the configured store. Postgres gets a few attempts to
// leave it time to start.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true}

	switch cfg.Driver {
	case "sqlite":
		log.Info("opening sqlite store", zap.String("path", cfg.Path))
		db, err := gorm.Open(sqlite.Open(cfg.Path), gcfg)
		if err != nil {
			return nil, fmt.Errorf("connexion BDD échouée : %w", err)
		}
		return db, nil
	case "postgres", "":
		var db *gorm.DB
		var err error
		for i := 0; i < 5; i++ {
			db, err = gorm.Open(postgres.Open(cfg.DSN()), gcfg)
			if err == nil {
				break
			}
			log.Warn("database connection failed, retrying",
				zap.Int("attempt", i+1), zap.String("host", cfg.Host), zap.Error(err))
			time.Sleep(2 * time.Second)
		}
		if err != nil {
			return nil, fmt.Errorf("connexion BDD échouée : %w", err)
		}
		log.Info("connected to postgres",
			zap.String("host", cfg.Host), zap.Int("port", cfg.Port), zap.String("dbname", cfg.DBName))
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate runs AutoMigrate for all models.
// Call this at application startup or as part of a migration step.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Cabinet{},
		&models.Client{},
		&models.Subscription{},
		&models.InvoiceLine{},
		&models.TariffReference{},
		&models.ProductionRecord{},
		&models.Run{},
	); err != nil {
		return fmt.Errorf("migrations échouées : %w", err)
	}
	return nil
}

// Seed creates one cabinet per configured code. It is idempotent.
func Seed(db *gorm.DB, cabinets []string) error {
	for _, code := range cabinets {
		c := models.Cabinet{Code: code, Name: code}
		if err := db.Where(models.Cabinet{Code: code}).FirstOrCreate(&c).Error; err != nil {
			return fmt.Errorf("seed cabinet %s: %w", code, err)
		}
	}
	return nil
}
