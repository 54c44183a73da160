package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"mealplan-orchestrator/internal/adapter/plan_http"
	"mealplan-orchestrator/internal/di"
	"mealplan-orchestrator/internal/infra"
	"mealplan-orchestrator/internal/infra/config"
	"mealplan-orchestrator/internal/infra/logger"
)

func main() {
	// 1. Load Config
	cfg := config.Load()

	// 2. Initialize Logger
	log := logger.NewWithOTel(cfg.OTelEnabled)
	slog.SetDefault(log)

	// 3. Initialize DB
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	dbPool, err := infra.NewPostgresDB(context.Background(), dsn)
	if err != nil {
		log.Error("failed to connect to db", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// 4. Wire components
	components := di.NewApplicationComponents(cfg, dbPool, log)

	// 5. Verify the vector index score contract before accepting traffic.
	// A polarity flip here would silently invert every ranking downstream.
	verifyCtx, verifyCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := components.Searcher.VerifyScoreContract(verifyCtx); err != nil {
		verifyCancel()
		log.Error("score contract verification failed", "error", err)
		os.Exit(1)
	}
	verifyCancel()
	log.Info("score_contract_verified", "encoder_version", components.Encoder.Version())

	// 6. Initialize Echo
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// 7. Initialize Handlers
	handler := plan_http.NewHandler(components.RetrieveUsecase, components.GenerateUsecase)

	e.POST("/v1/plan/candidates", handler.RetrieveCandidates)
	e.POST("/v1/plan/generate", handler.GeneratePlan)

	// 8. Health Checks
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/readyz", func(c echo.Context) error {
		if err := dbPool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "db down", "error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	})

	// 9. Start Server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		log.Info("Starting server", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	// 10. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
}
