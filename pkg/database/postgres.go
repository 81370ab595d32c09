package database

import (
	"fmt"
	"time"

	"go-loyalty-store/pkg/config"
	"go-loyalty-store/pkg/logger"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ConnectDB opens the store selected by cfg.DBDriver.
func ConnectDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DBDriver == "sqlite" {
		dsn := cfg.DBURL
		if dsn == "" {
			dsn = "loyalty.db"
		}
		return OpenSQLite(dsn)
	}
	return ConnectPostgres(cfg)
}

// ConnectPostgres opens a pooled PostgreSQL connection.
func ConnectPostgres(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.DBURL
	if dsn == "" {
		dsn = fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=%s",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
			cfg.DBTimezone,
		)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true, // Disables implicit prepared statements for pgbouncer transaction mode
	}), &gorm.Config{
		Logger:         newGormLogger(cfg.LogDevelopment),
		PrepareStmt:    false,
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql.DB")
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Info("database connection established", zap.String("driver", "postgres"))
	return db, nil
}

func newGormLogger(verbose bool) gormlogger.Interface {
	level := gormlogger.Warn
	if verbose {
		level = gormlogger.Info
	}
	return gormlogger.New(
		logger.StdLog(),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
