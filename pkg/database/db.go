package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options selects the backing store. DSN wins over the discrete postgres fields.
type Options struct {
	Driver     string
	DSN        string
	Host       string
	User       string
	Password   string
	Name       string
	Port       string
	SQLitePath string
	LogLevel   logger.LogLevel
}

func (o Options) postgresDSN() string {
	if o.DSN != "" {
		return o.DSN
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		valueOrDefault(o.Host, "localhost"),
		valueOrDefault(o.User, "postgres"),
		o.Password,
		valueOrDefault(o.Name, "bazhay"),
		valueOrDefault(o.Port, "5432"),
	)
}

// Connect opens the configured database. Timestamps are always written in UTC.
func Connect(opts Options) (*gorm.DB, error) {
	cfg := &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
		Logger:  logger.Default.LogMode(opts.LogLevel),
	}

	switch opts.Driver {
	case DriverSQLite:
		db, err := gorm.Open(sqlite.Open(valueOrDefault(opts.SQLitePath, "bazhay.db")), cfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite allows a single writer; one connection keeps transactions serialized.
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	case DriverPostgres, "":
		db, err := gorm.Open(postgres.Open(opts.postgresDSN()), cfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

func valueOrDefault(val, fallback string) string {
	if val != "" {
		return val
	}

	return fallback
}
