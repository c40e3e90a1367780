package server

import (
	"github.com/rs/zerolog"
	"gorm.io/gorm/logger"
	"material-pipeline/config"
	"material-pipeline/repository"
)

func RunMigrate(cfg *config.Config) error {
	ctx := setupLogger(cfg)
	defer cfg.DB.Close()

	db, err := repository.Open(cfg.DB, logger.Info)
	if err != nil {
		return err
	}
	if err := repository.Migrate(ctx, db); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("migration failed")
		return err
	}
	zerolog.Ctx(ctx).Info().Msg("schema up to date")
	return nil
}
