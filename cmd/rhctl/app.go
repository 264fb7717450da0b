package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/septivank/running-hours-ledger/internal/cache"
	"github.com/septivank/running-hours-ledger/internal/config"
	"github.com/septivank/running-hours-ledger/internal/db"
	"github.com/septivank/running-hours-ledger/internal/ledger"
	"github.com/septivank/running-hours-ledger/internal/logging"
	"github.com/septivank/running-hours-ledger/internal/repository"
	"github.com/septivank/running-hours-ledger/internal/utilization"
	"go.uber.org/zap"
)

// app holds what every command needs to reach the ledger
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
	repo   *repository.Repository
	ledger *ledger.Ledger
}

func openApp(ctx context.Context) (*app, error) {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewConsoleLogger(logLevel)
	if err != nil {
		return nil, err
	}

	strategy, err := utilization.ByName(cfg.Ledger.UtilizationStrategy)
	if err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	repo := repository.NewRepository(pool)
	rates := cache.NewUtilizationRateCache(cfg.Ledger.CacheTTL(), nil)
	l := ledger.New(repo, rates, strategy, logger,
		ledger.WithUtilizationWindow(cfg.Ledger.UtilizationWindow()),
		ledger.WithBulkWorkers(cfg.Ledger.BulkWorkers),
	)

	return &app{cfg: cfg, logger: logger, pool: pool, repo: repo, ledger: l}, nil
}

func (a *app) Close() {
	a.pool.Close()
	_ = a.logger.Sync()
}

// timezoneOr returns tz, or the configured default zone when tz is empty
func (a *app) timezoneOr(tz string) string {
	if tz == "" {
		return a.cfg.Ledger.DefaultTimezone
	}
	return tz
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
