package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sangkips/coopmart-api/internal/config"
	"github.com/sangkips/coopmart-api/internal/domain/entity"
	"github.com/sangkips/coopmart-api/pkg/utils"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(cfg *config.DatabaseConfig, debug bool, log *zap.Logger) (*gorm.DB, error) {
	logLevel := logger.Warn
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true, // disables implicit prepared statement usage
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	log.Info("connected to postgres", zap.String("host", cfg.Host), zap.String("database", cfg.Name))
	return db, nil
}

// AutoMigrate runs GORM auto-migration for all entities
func AutoMigrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")

	err := db.AutoMigrate(
		// Reference data
		&entity.Branch{},
		&entity.Department{},
		&entity.Member{},
		&entity.Item{},
		&entity.BranchItemPrice{},
		&entity.BranchItemMarkup{},

		// Orders
		&entity.Order{},
		&entity.OrderLine{},

		// Stock ledger
		&entity.Cycle{},
		&entity.InventoryMovement{},

		// System entities
		&entity.IdempotencyKey{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("database migrations completed")
	return nil
}

// SeedOptions lists reference data created when missing
type SeedOptions struct {
	// Branches are "CODE:Name" pairs
	Branches    []string
	Departments []string
	CycleName   string
}

// SeedDefaultData creates branches, departments and an active cycle when they do not exist yet
func SeedDefaultData(db *gorm.DB, opts SeedOptions, log *zap.Logger) error {
	for _, pair := range opts.Branches {
		code, name, _ := strings.Cut(pair, ":")
		code = utils.NormalizeCode(code)
		if code == "" {
			continue
		}
		if name == "" {
			name = code
		}
		var existing entity.Branch
		err := db.Where("code = ?", code).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := db.Create(&entity.Branch{Code: code, Name: strings.TrimSpace(name)}).Error; err != nil {
				log.Warn("failed to seed branch", zap.String("code", code), zap.Error(err))
			}
		} else if err != nil {
			return err
		}
	}

	for _, name := range opts.Departments {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		var existing entity.Department
		err := db.Where("LOWER(name) = ?", utils.NormalizeName(name)).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := db.Create(&entity.Department{Name: name}).Error; err != nil {
				log.Warn("failed to seed department", zap.String("name", name), zap.Error(err))
			}
		} else if err != nil {
			return err
		}
	}

	var active int64
	if err := db.Model(&entity.Cycle{}).Where("is_active = ?", true).Count(&active).Error; err != nil {
		return err
	}
	if active == 0 {
		name := opts.CycleName
		if name == "" {
			name = time.Now().Format("January 2006")
		}
		cycle := entity.Cycle{Name: name, StartsAt: time.Now(), IsActive: true}
		if err := db.Create(&cycle).Error; err != nil {
			return fmt.Errorf("seed active cycle: %w", err)
		}
		log.Info("seeded active cycle", zap.String("name", name), zap.Uint("id", cycle.ID))
	}

	log.Info("default data seeding completed")
	return nil
}
