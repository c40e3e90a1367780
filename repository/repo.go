package repository

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"material-pipeline/entities"
)

type txKey struct{}

// Open wraps an already opened *sql.DB (lib/pq) in gorm.
func Open(db *sql.DB, logLevel logger.LogLevel) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger:         logger.Default.LogMode(logLevel),
			TranslateError: true,
		},
	)
}

// Migrate creates the tables this module owns. Transcripts, courses and
// users belong to other services and are never migrated here.
func Migrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(&entities.MaterialRecord{}, &entities.CourseMaterial{})
}

type base struct {
	db *gorm.DB
}

// GetDB returns the transaction bound to ctx, if any, otherwise the root handle.
func (b *base) GetDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return b.db.WithContext(ctx)
}

func (b *base) Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error {
	return b.GetDB(ctx).Transaction(func(tx *gorm.DB) error {
		return callback(context.WithValue(ctx, txKey{}, tx))
	}, opts...)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
