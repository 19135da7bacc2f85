package database

import (
	"fmt"

	"github.com/garagehub/backend/internal/config"
	"github.com/garagehub/backend/internal/models"
	"github.com/garagehub/backend/pkg/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	// TranslateError turns driver duplicate-key failures into
	// gorm.ErrDuplicatedKey so races on unique columns surface as conflicts.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := Seed(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate applies the additive schema. Columns only ever gain nullable or
// defaulted additions so rolling upgrades never need downtime.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.CarOwner{},
		&models.Car{},
		&models.CarVisit{},
		&models.Post{},
		&models.Comment{},
		&models.ShopImage{},
		&models.OAuthState{},
		&models.AuditLog{},
	)
}

// Seed creates the static role set and a bootstrap admin account. It is
// idempotent: existing rows are left untouched.
func Seed(db *gorm.DB) error {
	descriptions := map[string]string{
		models.RoleAdmin:        "Administrator role",
		models.RoleMechanic:     "Mechanic role",
		models.RoleCarOwner:     "Car owner role",
		models.RoleFrontendUser: "Frontend user role",
		models.RoleBackendUser:  "Backend user role",
	}

	for _, name := range models.AllRoleNames {
		var count int64
		if err := db.Model(&models.Role{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := db.Create(&models.Role{Name: name, Description: descriptions[name]}).Error; err != nil {
			return err
		}
	}

	var userCount int64
	if err := db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		return err
	}
	if userCount > 0 {
		return nil
	}

	hash, err := utils.HashPassword("admin123")
	if err != nil {
		return err
	}

	var adminRole models.Role
	if err := db.Where("name = ?", models.RoleAdmin).First(&adminRole).Error; err != nil {
		return err
	}

	admin := models.User{
		Username:     "Admin",
		PhoneNumber:  "0877993946",
		Email:        "admin@garagehub.local",
		PasswordHash: hash,
		IsActive:     true,
		Roles:        []models.Role{adminRole},
	}

	return db.Create(&admin).Error
}
