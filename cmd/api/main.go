package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/quoteportal/server/internal/auth"
	"github.com/quoteportal/server/internal/config"
	"github.com/quoteportal/server/internal/db"
	httphandler "github.com/quoteportal/server/internal/http"
	"github.com/quoteportal/server/internal/http/handlers"
	"github.com/quoteportal/server/internal/repo"
	_ "github.com/lib/pq"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	log.Printf("DB DSN (masked): %s", db.RedactDSN(cfg.DatabaseURL))
	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if err := runMigrations(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Repositories
	accountRepo := repo.NewAccountRepo(database)
	credentialRepo := repo.NewCredentialRepo(database)
	deviceRepo := repo.NewDeviceRepo(database)
	attemptRepo := repo.NewAttemptRepo(database)
	refreshRepo := repo.NewRefreshRepo(database)

	// Services
	credStore := auth.NewCredentialStore(credentialRepo, auth.PasswordPolicy{
		MinLength:      cfg.PasswordMinLength,
		RequireClasses: cfg.PasswordRequireClasses,
	})
	bindingManager := auth.NewDeviceBindingManager(deviceRepo, refreshRepo)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL)
	authService := auth.NewAuthService(accountRepo, credStore, bindingManager, refreshRepo, attemptRepo, jwtService, auth.Policy{
		SupplierBindOnFirstLogin: cfg.SupplierBindOnFirstLogin,
		RefreshTokenTTL:          cfg.RefreshTokenTTL,
		LoginFailLimit:           cfg.LoginFailLimit,
		LoginFailWindow:          cfg.LoginFailWindow,
	})
	adminService := auth.NewAdminService(accountRepo, bindingManager, refreshRepo, attemptRepo)

	// Handlers and router
	authHandler := handlers.NewAuthHandler(authService)
	adminHandler := handlers.NewAdminHandler(adminService)
	router := httphandler.NewRouter(authHandler, adminHandler, jwtService, accountRepo)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// runMigrations runs database migrations using goose
func runMigrations(database *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	migrationDir := "internal/db/migrations"
	if info, err := os.Stat(migrationDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory not found (run from the module root)")
	}

	if err := goose.Up(database, migrationDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
