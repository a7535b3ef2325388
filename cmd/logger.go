package cmd

import (
	"fmt"
	"log/slog"

	"github.com/psds-microservice/portal-service/internal/config"
	"github.com/psds-microservice/portal-service/internal/logger"
)

func setupLogger(cfg *config.Config) error {
	log, err := logger.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	slog.SetDefault(log)
	return nil
}
