package handlers

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/garagehub/backend/internal/config"
	"github.com/garagehub/backend/internal/middleware"
	"github.com/garagehub/backend/internal/models"
	"github.com/garagehub/backend/internal/services"
	"github.com/garagehub/backend/pkg/logger"
	"github.com/garagehub/backend/pkg/utils"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

type testEnv struct {
	app *fiber.App
	db  *gorm.DB
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
		logger.Init()
		utils.ConfigureJWT("test-secret", 24)
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

	cfg := &config.Config{
		Server: config.ServerConfig{
			FrontendURL: "http://localhost:3001",
		},
		SSO: config.SSOConfig{
			StateLifetime: 10 * time.Minute,
		},
	}

	garageService := services.NewGarageService(db)
	auditService := services.NewAuditService(db)
	ssoService := services.NewSSOService(db)
	oauthService := services.NewOAuthProviderService(cfg, db)
	ldapService := services.NewLDAPService(cfg)
	transcriptionService := services.NewTranscriptionService(cfg.Transcriber)

	authHandler := NewAuthHandler(db, auditService)
	usersHandler := NewUsersHandler(db, garageService, auditService)
	carsHandler := NewCarsHandler(db, garageService, auditService)
	visitsHandler := NewVisitsHandler(db, garageService, auditService)
	postsHandler := NewPostsHandler(db, auditService)
	ssoHandler := NewSSOHandler(cfg, oauthService, ssoService, ldapService, auditService)
	transcriptionsHandler := NewTranscriptionsHandler(transcriptionService)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 25 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/version", GetVersion)

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/me", authMiddleware.RequireAuth, authHandler.UpdateMe)
	authRoutes.Put("/password", authMiddleware.RequireAuth, authHandler.ChangePassword)

	ssoRoutes := api.Group("/sso")
	ssoRoutes.Get("/providers", ssoHandler.ListProviders)
	ssoRoutes.Post("/ldap/login", ssoHandler.LDAPLogin)
	ssoRoutes.Get("/:provider/login", ssoHandler.Login)
	ssoRoutes.Get("/:provider/callback", ssoHandler.Callback)

	api.Get("/garage", carsHandler.PublicGarage)
	api.Get("/mechanics/:id", usersHandler.PublicMechanicProfile)
	api.Get("/posts", postsHandler.List)
	api.Get("/posts/:id", authMiddleware.OptionalAuth, postsHandler.Get)

	postRoutes := api.Group("/posts", authMiddleware.RequireAuth, middleware.RequirePhone)
	postRoutes.Post("/", postsHandler.Create)
	postRoutes.Post("/:id/comments", postsHandler.CreateComment)

	mechanicRoutes := api.Group("/cars", authMiddleware.RequireAuth, middleware.RequirePhone,
		middleware.RequireRole(models.RoleMechanic, models.RoleAdmin))
	mechanicRoutes.Post("/", carsHandler.Create)
	mechanicRoutes.Get("/", carsHandler.List)
	mechanicRoutes.Get("/:id", carsHandler.Get)
	mechanicRoutes.Put("/:id", carsHandler.Update)
	mechanicRoutes.Delete("/:id", carsHandler.Archive)
	mechanicRoutes.Post("/:id/visits", visitsHandler.Create)
	mechanicRoutes.Get("/:id/visits", visitsHandler.List)

	api.Post("/transcriptions", authMiddleware.RequireAuth, middleware.RequirePhone,
		middleware.RequireRole(models.RoleMechanic, models.RoleAdmin), transcriptionsHandler.Create)

	adminRoutes := api.Group("/admin", authMiddleware.RequireAuth, middleware.AdminOnly)
	adminRoutes.Get("/users", usersHandler.List)
	adminRoutes.Post("/users", usersHandler.Create)
	adminRoutes.Get("/users/:id", usersHandler.Get)
	adminRoutes.Put("/users/:id", usersHandler.Update)
	adminRoutes.Delete("/users/:id", usersHandler.Delete)
	adminRoutes.Get("/cars", carsHandler.AdminList)
	adminRoutes.Post("/cars/:id/restore", carsHandler.AdminRestore)

	return &testEnv{app: app, db: db}
}

func createTestUser(t *testing.T, db *gorm.DB, username, phone, password string, roleNames ...string) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	var roles []models.Role
	if len(roleNames) > 0 {
		if err := db.Where("name IN ?", roleNames).Find(&roles).Error; err != nil {
			t.Fatalf("failed loading roles: %v", err)
		}
		if len(roles) != len(roleNames) {
			t.Fatalf("expected %d roles, found %d", len(roleNames), len(roles))
		}
	}

	user := &models.User{
		Username:     username,
		PhoneNumber:  phone,
		Email:        username + "@example.com",
		PasswordHash: hash,
		IsActive:     true,
		Roles:        roles,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user.ID, user.PhoneNumber, false)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}
