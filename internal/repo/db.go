// Package repo implements the data persistence layer for the conversation
// aggregate, backed by GORM. This file contains engine bootstrapping: driver
// selection by connection URL, SQLite PRAGMAs, pool settings, tracing, and
// schema migration.
package repo

import (
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Open creates a database engine for the given connection URL. The URL is
// the identity of the backing database: postgres:// and postgresql:// select
// the Postgres driver, everything else the pure-Go SQLite driver. SQLite
// URLs may use the sqlite:// prefix or a bare path, including :memory:.
//
// The engine is verified with a ping before being returned (pre-ping), so a
// bad URL fails at Open rather than on first use.
func Open(url string) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		dial = postgres.Open(url)
	default:
		dial = sqlite.Open(sqliteDSN(url))
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	if dial.Name() == "sqlite" {
		db.Exec("PRAGMA journal_mode=WAL;")
		db.Exec("PRAGMA synchronous=NORMAL;")
		db.Exec("PRAGMA foreign_keys=ON;")
		db.Exec("PRAGMA busy_timeout=5000;")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// sqliteDSN strips the sqlite URL prefix, mapping sqlite:///:memory: and
// friends onto the driver's native DSN form.
func sqliteDSN(url string) string {
	for _, p := range []string{"sqlite:///", "sqlite://", "sqlite:"} {
		if strings.HasPrefix(url, p) {
			return strings.TrimPrefix(url, p)
		}
	}
	return url
}

// AutoMigrate creates or updates the conversation schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ConversationRecord{},
		&MessageRecord{},
		&ContentRecord{},
		&FeedbackRecord{},
		&ParticipantRecord{},
	)
}
