package services

import (
	"database/sql/driver"
	"sync"
	"testing"
	"time"

	"github.com/garagehub/backend/internal/models"
	"github.com/garagehub/backend/pkg/logger"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var testSetupOnce sync.Once

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
		logger.Init()
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
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
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	for _, name := range models.AllRoleNames {
		if err := db.Create(&models.Role{Name: name}).Error; err != nil {
			t.Fatalf("failed seeding role %s: %v", name, err)
		}
	}

	return db
}

func seedMechanic(t *testing.T, db *gorm.DB, username, phone string) *models.User {
	t.Helper()

	var role models.Role
	if err := db.Where("name = ?", models.RoleMechanic).First(&role).Error; err != nil {
		t.Fatalf("mechanic role missing: %v", err)
	}

	user := &models.User{
		Username:     username,
		PhoneNumber:  phone,
		Email:        username + "@example.com",
		PasswordHash: "x",
		IsActive:     true,
		Roles:        []models.Role{role},
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating mechanic: %v", err)
	}
	return user
}
