package db

import (
	"fmt"
	"net/url"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type ConnOption func(*connOptions)

type connOptions struct {
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
	logLevel        logger.LogLevel
}

func WithMaxOpenConns(n int) ConnOption {
	return func(o *connOptions) {
		o.maxOpenConns = n
	}
}

func WithMaxIdleConns(n int) ConnOption {
	return func(o *connOptions) {
		o.maxIdleConns = n
	}
}

func WithSQLLogging() ConnOption {
	return func(o *connOptions) {
		o.logLevel = logger.Info
	}
}

// GetDbConn 建立 gorm 連線池
func GetDbConn(dbname, host, port, user, pas string, opts ...ConnOption) (*gorm.DB, error) {
	o := connOptions{
		maxOpenConns:    20,
		maxIdleConns:    5,
		connMaxLifetime: 30 * time.Minute,
		logLevel:        logger.Silent,
	}
	for _, opt := range opts {
		opt(&o)
	}

	// 資料來源名稱 (DSN)
	dsn := fmt.Sprintf("user=%s password=%s host=%s port=%s dbname=%s sslmode=disable", user, pas, host, port, dbname)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(o.logLevel),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(o.maxOpenConns)
	sqlDB.SetMaxIdleConns(o.maxIdleConns)
	sqlDB.SetConnMaxLifetime(o.connMaxLifetime)

	return db, nil
}

// MigrationURL golang-migrate 使用的 postgres url
func MigrationURL(dbname, host, port, user, pas string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, pas),
		Host:     fmt.Sprintf("%s:%s", host, port),
		Path:     dbname,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
