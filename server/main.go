package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/chepyr/calendar-planner/internal/auth"
	"github.com/chepyr/calendar-planner/internal/config"
	"github.com/chepyr/calendar-planner/internal/db"
	"github.com/chepyr/calendar-planner/internal/handlers"
	"github.com/chepyr/calendar-planner/internal/tasks"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "server configuration file")
	flag.Parse()

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			slog.Error("cannot load .env file", "error", err)
			os.Exit(1)
		}
	}

	cfg := config.MustLoad(configPath)
	log := mustMakeLogger(cfg.LogLevel)

	if err := run(log, cfg); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, cfg config.Config) error {
	dbConn, err := db.Connect(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			log.Error("error closing database connection", "error", err)
		}
	}()

	migrateCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.Timeout)
	defer cancel()
	if err := db.Migrate(migrateCtx, dbConn); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	taskRepo := db.NewTaskRepository(dbConn)
	hub := handlers.NewWSHub(log)
	defer hub.Close()

	handler := &handlers.Handler{
		Tasks:          tasks.NewService(taskRepo, cfg.Location()),
		DB:             taskRepo,
		WSHub:          hub,
		Log:            log,
		Timeout:        cfg.HTTP.Timeout,
		DefaultUserID:  cfg.Auth.DefaultUserID,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}
	if cfg.Auth.Enabled {
		tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience, cfg.Auth.JWTTTL)
		handler.Auth = auth.NewService(db.NewUserRepository(dbConn), auth.NewPasswordHasher(bcrypt.DefaultCost), tokens)
		// allow max AUTH_RATE_LIMIT login/register attempts per window from the same IP
		handler.RateLimiter = handlers.NewRateLimiter(cfg.Auth.RateLimit, cfg.Auth.RateWindow)
		defer handler.RateLimiter.Stop()
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           handlers.WithCORS(handler.Routes(), cfg.HTTP.AllowedOrigins),
		ReadHeaderTimeout: cfg.HTTP.Timeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server",
			"address", server.Addr,
			"db_driver", cfg.DB.Driver,
			"auth_enabled", cfg.Auth.Enabled,
			"timezone", cfg.Location().String(),
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down server")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	// hijacked WebSocket connections are not tracked by Shutdown
	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func mustMakeLogger(logLevel string) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
