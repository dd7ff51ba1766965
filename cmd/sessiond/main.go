package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/codeassess/sessiond/internal/config"
	"github.com/codeassess/sessiond/internal/database"
	"github.com/codeassess/sessiond/internal/events"
	"github.com/codeassess/sessiond/internal/handler"
	"github.com/codeassess/sessiond/internal/logger"
	"github.com/codeassess/sessiond/internal/router"
	"github.com/codeassess/sessiond/internal/service"
	"github.com/codeassess/sessiond/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("authority", cfg.AuthorityURL).
		Msg("Starting sessiond")

	ensureSecret(cfg, log)

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to Redis (optional) ───────────────────────────────────
	// Without Redis, drafts live in memory and die with the process; the
	// attempt itself always survives on the server either way.
	var rdb *redis.Client
	var store service.WorkspaceStore = service.NewMemoryWorkspaceStore()
	if cfg.RedisURL != "" {
		var err error
		rdb, err = database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		store = service.NewRedisWorkspaceStore(rdb)
	}

	// ─── Initialize Event Bus ──────────────────────────────────────────
	bus := events.NewBus(log)
	defer bus.Close()

	// ─── Initialize Services ──────────────────────────────────────────
	tokens := service.NewTokenService(cfg.JWTSecret)
	manager := service.NewSessionManager(cfg, bus, store, rdb, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(manager, log),
		WS:      handler.NewWSHandler(manager, bus, log, cfg.AllowedOrigins),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(tokens, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the active session's workers; the reconciler drains its
	// queued timer updates on the way out.
	manager.Shutdown()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// ensureSecret refuses to run on the development JWT secret unless a
// human can type a real one at the terminal.
func ensureSecret(cfg *config.Config, log zerolog.Logger) {
	if cfg.JWTSecret != config.DefaultJWTSecret {
		return
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		log.Warn().Msg("JWT_SECRET is the development default; session tokens are NOT secure")
		return
	}

	os.Stdout.WriteString("JWT_SECRET is unset. Enter the platform signing secret (empty keeps the insecure default): ")
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	os.Stdout.WriteString("\n")
	if err != nil || len(secret) == 0 {
		log.Warn().Msg("Keeping the development default secret")
		return
	}
	cfg.JWTSecret = string(secret)
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
