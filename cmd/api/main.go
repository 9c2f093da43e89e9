package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/dkachur-dev/contact-vault/internal/config"
	delivery "github.com/dkachur-dev/contact-vault/internal/delivery/http"
	"github.com/dkachur-dev/contact-vault/internal/notify"
	"github.com/dkachur-dev/contact-vault/internal/repository"
	"github.com/dkachur-dev/contact-vault/internal/usecase"
	"github.com/dkachur-dev/contact-vault/pkg/security"

	_ "github.com/lib/pq" // Postgres driver
)

func main() {
	// 1. Load Configuration (fails fast on invalid signing setup)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	codec, err := security.NewTokenCodec(cfg.JWTSecret, cfg.JWTAlgorithm, nil)
	if err != nil {
		log.Fatalf("Invalid token configuration: %v", err)
	}

	// 2. Initialize Infrastructure (Persistence)
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer rdb.Close()

	// 3. Initialize Repositories and Collaborators
	userRepo := repository.NewPostgresUserRepo(db)
	contactRepo := repository.NewPostgresContactRepo(db)
	identityCache := repository.NewRedisIdentityCache(rdb)
	mailer := notify.NewRabbitMailPublisher(cfg.AMQPURL)

	// 4. Initialize Business Logic (Usecases)
	authUsecase := usecase.NewAuthUsecase(userRepo, identityCache, mailer, codec, usecase.TokenTTLs{
		Access:  cfg.AccessTTL,
		Refresh: cfg.RefreshTTL,
		Confirm: cfg.ConfirmTTL,
		Reset:   cfg.ResetTTL,
	})
	contactUsecase := usecase.NewContactUsecase(contactRepo, nil)

	// 5. Setup Framework and Global Middlewares
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.Secure())

	// 6. Register Delivery Handlers (Routes)
	api := e.Group("/api")
	delivery.NewAuthHandler(api.Group("/auth"), authUsecase)
	delivery.NewUserHandler(api, authUsecase)
	delivery.NewContactHandler(api, contactUsecase, authUsecase)

	// 7. Health Check
	e.GET("/api/healthchecker", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database is not available"})
		}
		return c.JSON(http.StatusOK, echo.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// 8. Start Server with Graceful Shutdown
	go func() {
		log.Printf("Starting contact-vault API on port %s", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Shutting down the server due to error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
