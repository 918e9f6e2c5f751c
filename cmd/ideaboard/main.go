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

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"ideaboard/internal/auth"
	"ideaboard/internal/config"
	"ideaboard/internal/server"
	"ideaboard/internal/storage/sqlite"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(2)
	}
	level, _ := cfg.Level()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	logger.Info("ideaboard starting", slog.String("db", cfg.DBPath), slog.String("log_level", level.String()))

	store, err := sqlite.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("unable to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		logger.Error("unable to configure tokens", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go reconcileLoop(ctx, store, cfg.ReconcileInterval, logger)

	srv := server.New(store, tokens, logger, server.Options{
		StaticDir:        cfg.StaticDir,
		AllowedOrigins:   cfg.AllowedOrigins,
		DefaultBoardName: cfg.DefaultBoardName,
		SuggestDebounce:  cfg.SuggestDebounce,
		SuggestLimit:     cfg.SuggestLimit,
		DirectoryLimit:   cfg.DirectoryLimit,
		ShareCloseDelay:  cfg.ShareCloseDelay,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
			stop()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

// reconcileLoop repairs membership drift once at startup and then every
// interval. A zero interval runs the startup sweep only.
func reconcileLoop(ctx context.Context, store *sqlite.Store, interval time.Duration, logger *slog.Logger) {
	sweep := func() {
		if _, err := store.Reconcile(ctx); err != nil && ctx.Err() == nil {
			logger.Error("membership reconcile failed", slog.String("error", err.Error()))
		}
	}

	sweep()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
