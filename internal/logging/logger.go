package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger creates a new structured logger
func NewLogger(serviceName, level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
	}
	if err := setLevel(&config, level); err != nil {
		return nil, err
	}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return logger, nil
}

// NewConsoleLogger creates a human-readable logger for command line tools
func NewConsoleLogger(level string) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.DisableStacktrace = true
	if err := setLevel(&config, level); err != nil {
		return nil, err
	}
	return config.Build()
}

// WithRequestID returns a logger with request_id field
func WithRequestID(logger *zap.Logger, requestID string) *zap.Logger {
	return logger.With(zap.String("request_id", requestID))
}

func setLevel(config *zap.Config, level string) error {
	if level == "" {
		return nil
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level %q: %w", level, err)
	}
	config.Level = lvl
	return nil
}
