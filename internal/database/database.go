package database

import (
	"fmt"

	"github.com/autoescuela/backend/internal/config"
	"github.com/autoescuela/backend/internal/models"
	"github.com/autoescuela/backend/pkg/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(cfg config.DBConfig) (*gorm.DB, UserColumns, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, UserColumns{}, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, UserColumns{}, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxIdleTime(cfg.IdleTimeout)

	if err := db.AutoMigrate(&models.Documento{}); err != nil {
		return nil, UserColumns{}, err
	}

	// Startup migration, not a per-request shim: older deployments named the
	// usuarios columns differently, so the compatibility pass owns that table.
	// It inspects the catalog before any ORM migration runs, leaves an
	// existing table's shape alone, and returns the resolved mapping. Running
	// AutoMigrate against a populated legacy table would try to add the modern
	// NOT NULL columns and fail, so only a missing table is created from the
	// model.
	columns, err := EnsureCompatibleSchema(db)
	if err != nil {
		return nil, UserColumns{}, err
	}

	if err := seedAdminUser(db, columns); err != nil {
		return nil, UserColumns{}, err
	}

	return db, columns, nil
}

func seedAdminUser(db *gorm.DB, columns UserColumns) error {
	// The model writes the modern column names; a resolved legacy mapping
	// means the table predates this server and already has its own users.
	if columns != DefaultUserColumns() {
		return nil
	}

	var count int64
	if err := db.Model(&models.Usuario{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	hash, err := utils.HashPassword("admin123")
	if err != nil {
		return err
	}

	admin := models.Usuario{
		Nombre:     "Administrador",
		Correo:     "admin@autoescuela.local",
		Contrasena: hash,
	}

	return db.Create(&admin).Error
}
