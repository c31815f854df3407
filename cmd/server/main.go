package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/autoescuela/backend/internal/config"
	"github.com/autoescuela/backend/internal/database"
	"github.com/autoescuela/backend/internal/handlers"
	"github.com/autoescuela/backend/internal/hosted"
	"github.com/autoescuela/backend/internal/middleware"
	"github.com/autoescuela/backend/internal/storage"
	"github.com/autoescuela/backend/pkg/logger"
	"github.com/autoescuela/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, userColumns, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	var storageClient *storage.MinIOClient
	if cfg.MinIO.Endpoint != "" {
		storageClient, err = storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			log.Fatalf("storage initialization failed: %v", err)
		}
		if err := storageClient.EnsureBucket(context.Background()); err != nil {
			log.Fatalf("failed ensuring storage bucket: %v", err)
		}
	}

	hostedClient := hosted.New(cfg.Hosted)

	documentsHandler := handlers.NewDocumentsHandler(db, storageClient)
	usersHandler := handlers.NewUsersHandler(db, userColumns)
	authHandler := handlers.NewAuthHandler(db, hostedClient, userColumns)
	systemHandler := handlers.NewSystemHandler(db, hostedClient, cfg.Hosted)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: cfg.Server.BodyLimitMB * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.AllowOrigins))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	api := app.Group("/api")

	api.Get("/documentos", documentsHandler.List)
	api.Post("/documentos", documentsHandler.Create)
	api.Put("/documentos/:id", documentsHandler.Update)
	api.Delete("/documentos/:id", documentsHandler.Delete)

	api.Get("/usuarios", usersHandler.List)
	api.Post("/usuarios", usersHandler.Create)
	api.Put("/usuarios/:id", usersHandler.Update)
	api.Delete("/usuarios/:id", usersHandler.Delete)

	api.Post("/autenticacion", authHandler.Login)
	api.Get("/autenticacion/yo", authMiddleware.RequireAuth, authHandler.Me)

	api.Get("/estado-bd", systemHandler.EstadoBD)
	api.Get("/diag/supabase", systemHandler.DiagSupabase)
	api.Get("/configuracion-publica", systemHandler.ConfiguracionPublica)

	app.Static("/", cfg.Server.StaticDir)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":          cfg.Server.Port,
		"address":       listenAddr,
		"body_limit_mb": cfg.Server.BodyLimitMB,
		"storage":       storageClient != nil,
		"hosted":        hostedClient.Configured(),
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
