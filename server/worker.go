package server

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"material-pipeline/config"
)

// RunWorker consumes generation and transcode jobs without serving HTTP.
func RunWorker(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !cfg.Queue.Enabled() {
		return errors.New("worker requires rabbitmq settings")
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to start")
		return err
	}
	defer a.close(ctx)

	zerolog.Ctx(ctx).Info().Int("workers", cfg.Server.Workers).Msg("worker started")
	err = a.consumers(ctx)
	zerolog.Ctx(ctx).Info().Msg("worker stopped")
	return err
}
