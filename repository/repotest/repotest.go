// Package repotest opens throwaway sqlite databases for package tests.
package repotest

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"material-pipeline/entities"
)

// DB returns an in-memory database private to tb with every table migrated,
// including the collaborator tables this module only reads in production.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(tb.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sqlite handle: %v", err)
	}
	// a single connection keeps every query on the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&entities.MaterialRecord{},
		&entities.CourseMaterial{},
		&entities.Transcript{},
		&entities.Course{},
		&entities.User{},
	)
	if err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return db
}
