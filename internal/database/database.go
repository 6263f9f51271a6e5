package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-payments/internal/config"
	"ms-payments/internal/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	connectAttempts = 5
	retryDelay      = 2 * time.Second
)

// PostgresDSN builds a lib/pq connection URL from cfg.
func PostgresDSN(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Path:     cfg.Database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Open connects to the configured database, retrying Postgres a few times while it starts up.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	switch cfg.Driver {
	case DriverSQLite:
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		// sqlite serializes writers; one connection avoids "database is locked"
		sqldb.SetMaxOpenConns(1)
		if err := sqldb.PingContext(ctx); err != nil {
			sqldb.Close()
			return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
		}
		log.Info("DATABASE", fmt.Sprintf("Using SQLite at %s", cfg.SQLitePath))
		return bun.NewDB(sqldb, sqlitedialect.New()), nil

	case DriverPostgres:
		sqldb, err := connectPostgres(ctx, PostgresDSN(cfg), log)
		if err != nil {
			return nil, err
		}
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
		sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
		log.Info("DATABASE", fmt.Sprintf("PostgreSQL connection successful (%s:%s/%s)", cfg.Host, cfg.Port, cfg.Database))
		return bun.NewDB(sqldb, pgdialect.New()), nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func connectPostgres(ctx context.Context, dsn string, log *logger.Logger) (*sql.DB, error) {
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	for i := 0; i < connectAttempts; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, connectAttempts))
		if err = sqldb.PingContext(ctx); err == nil {
			return sqldb, nil
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < connectAttempts-1 {
			select {
			case <-ctx.Done():
				sqldb.Close()
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}

	sqldb.Close()
	return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", connectAttempts, err)
}
