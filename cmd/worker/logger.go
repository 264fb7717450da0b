package main

import (
	"github.com/septivank/running-hours-ledger/internal/config"
	"github.com/septivank/running-hours-ledger/internal/logging"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
}
