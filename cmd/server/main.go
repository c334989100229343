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

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pedefacil/api/internal/cart"
	"github.com/pedefacil/api/internal/config"
	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/realtime"
	"github.com/pedefacil/api/internal/router"
	"github.com/pedefacil/api/internal/service"
	"github.com/pedefacil/api/internal/ws"
)

const occupancyInterval = 15 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("ping database", "error", err)
		os.Exit(1)
	}

	queries := database.New(pool)

	hub := ws.NewHub()
	go hub.Run()

	// NATS bridge is optional: without it events fan out within this
	// process only.
	var bus *realtime.Bus
	if cfg.NATSURL != "" {
		bus, err = realtime.Connect(cfg.NATSURL, hub)
		if err != nil {
			logger.Error("connect to nats", "url", cfg.NATSURL, "error", err)
			os.Exit(1)
		}
		defer bus.Close()
		logger.Info("realtime bridge connected", "url", cfg.NATSURL)
	}
	notifier := realtime.NewNotifier(hub, bus)

	tableService := service.NewTableService(pool, func(db database.DBTX) service.TableStore {
		return database.New(db)
	})
	tracker := service.NewTracker(tableService, queries, notifier, occupancyInterval, logger)
	tracker.FollowRooms(hub.Rooms)
	go tracker.Run(ctx)

	carts := cart.NewMemoryStore()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router.New(cfg, queries, pool, hub, notifier, carts),
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
