package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/Spok95/workshop-stock/internal/config"
	"github.com/Spok95/workshop-stock/internal/domain/combos"
	"github.com/Spok95/workshop-stock/internal/domain/materials"
	"github.com/Spok95/workshop-stock/internal/domain/production"
	"github.com/Spok95/workshop-stock/internal/domain/products"
	"github.com/Spok95/workshop-stock/internal/domain/purchases"
	"github.com/Spok95/workshop-stock/internal/domain/refguard"
	"github.com/Spok95/workshop-stock/internal/domain/sales"
	"github.com/Spok95/workshop-stock/internal/infra/db"
	httpx "github.com/Spok95/workshop-stock/internal/infra/http"
	"github.com/Spok95/workshop-stock/internal/infra/logger"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/subosito/gotenv"
)

func runMigrations(dsn string, log *slog.Logger) error {
	sqlDB, err := goose.OpenDBWithDriver("postgres", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

func main() {
	_ = gotenv.Load()

	cfg, err := config.Load("config/example.yaml")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	if err := runMigrations(cfg.Postgres.DSN, log); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return
	}
	defer pool.Close()
	log.Info("db connected")

	store := production.NewPgStore(pool, cfg.Postgres.QueryTimeout)
	engine := production.NewEngine(store, log, cfg.Produce.MaxRetries)
	guard := refguard.New(refguard.NewPgScanner(pool))

	srv := httpx.New(cfg.HTTP.Addr, cfg.Metrics.Enabled, httpx.Deps{
		Log:       log,
		Producer:  engine,
		Guard:     guard,
		Materials: materials.NewRepo(pool),
		Products:  products.NewRepo(pool),
		Sales:     sales.NewRepo(pool),
		Purchases: purchases.NewRepo(pool),
		Combos:    combos.NewRepo(pool),
	})
	go func() {
		if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
