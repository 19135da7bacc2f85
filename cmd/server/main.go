package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garagehub/backend/internal/config"
	"github.com/garagehub/backend/internal/database"
	"github.com/garagehub/backend/internal/handlers"
	"github.com/garagehub/backend/internal/middleware"
	"github.com/garagehub/backend/internal/models"
	"github.com/garagehub/backend/internal/services"
	"github.com/garagehub/backend/internal/storage"
	"github.com/garagehub/backend/pkg/logger"
	"github.com/garagehub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	storageClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("minio initialization failed: %v", err)
	}
	if err := storageClient.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring minio bucket: %v", err)
	}

	garageService := services.NewGarageService(db)
	auditService := services.NewAuditService(db)
	ssoService := services.NewSSOService(db)
	oauthService := services.NewOAuthProviderService(cfg, db)
	ldapService := services.NewLDAPService(cfg)
	transcriptionService := services.NewTranscriptionService(cfg.Transcriber)

	authHandler := handlers.NewAuthHandler(db, auditService)
	usersHandler := handlers.NewUsersHandler(db, garageService, auditService)
	carsHandler := handlers.NewCarsHandler(db, garageService, auditService)
	visitsHandler := handlers.NewVisitsHandler(db, garageService, auditService)
	postsHandler := handlers.NewPostsHandler(db, auditService)
	ssoHandler := handlers.NewSSOHandler(cfg, oauthService, ssoService, ldapService, auditService)
	transcriptionsHandler := handlers.NewTranscriptionsHandler(transcriptionService)
	imagesHandler := handlers.NewProfileImagesHandler(db, storageClient, auditService)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 25 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/version", handlers.GetVersion)

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

	// Anonymous storefront.
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

	profileRoutes := api.Group("/profile", authMiddleware.RequireAuth)
	profileRoutes.Post("/avatar", imagesHandler.UploadAvatar)
	profileRoutes.Post("/shop-images", middleware.RequireRole(models.RoleMechanic), imagesHandler.UploadShopImage)
	profileRoutes.Delete("/shop-images/:id", middleware.RequireRole(models.RoleMechanic), imagesHandler.DeleteShopImage)

	api.Get("/images/url", imagesHandler.ImageURL)

	adminRoutes := api.Group("/admin", authMiddleware.RequireAuth, middleware.AdminOnly)
	adminRoutes.Get("/users", usersHandler.List)
	adminRoutes.Post("/users", usersHandler.Create)
	adminRoutes.Get("/users/:id", usersHandler.Get)
	adminRoutes.Put("/users/:id", usersHandler.Update)
	adminRoutes.Delete("/users/:id", usersHandler.Delete)
	adminRoutes.Get("/cars", carsHandler.AdminList)
	adminRoutes.Post("/cars/:id/restore", carsHandler.AdminRestore)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"address": listenAddr,
		"version": handlers.Version,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
