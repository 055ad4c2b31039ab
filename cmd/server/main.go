package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/ai-meal-planner/backend/internal/config"
	"example.com/ai-meal-planner/backend/internal/database"
	"example.com/ai-meal-planner/backend/internal/server"
	"example.com/ai-meal-planner/backend/internal/telemetry"
	"example.com/ai-meal-planner/backend/migrations"
)

func main() {
	ensureEnvFile()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	telemetryCfg, err := telemetry.LoadConfig()
	if err != nil {
		return err
	}
	shutdownTelemetry, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return err
	}

	db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := database.Migrate(ctx, db, migrations.FS, logger)
	if err != nil {
		return err
	}
	logger.Info("migrations applied", slog.Int("count", applied))

	core, err := server.NewCore(ctx, cfg, logger, db)
	if err != nil {
		return err
	}

	e := server.New(cfg, logger, db, core)
	httpServer := server.NewHTTPServer(cfg.Server, e)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", slog.String("addr", httpServer.Addr), slog.String("ai_provider", cfg.AI.Provider))
		if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, syscall.SIGINT, syscall.SIGTERM)

	var startErr error
	select {
	case <-shutdownSignal:
	case startErr = <-serverErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Planner.GenerationTimeout+10*time.Second)
	defer cancel()

	// SSE-потоки держат соединения, поэтому хаб закрывается раньше остановки HTTP.
	var errs []error
	if startErr != nil {
		errs = append(errs, startErr)
	}
	core.Hub.Close()
	if err := e.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := core.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func ensureEnvFile() {
	if os.Getenv("ENV_FILE") != "" {
		return
	}

	if _, err := os.Stat(".env"); err == nil {
		_ = os.Setenv("ENV_FILE", ".env")
		return
	}

	if _, err := os.Stat("../.env"); err == nil {
		_ = os.Setenv("ENV_FILE", "../.env")
	}
}
