package database

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-payments/internal/config"
	"ms-payments/internal/logger"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DatabaseConfig{
		Host:     "db",
		Port:     "5432",
		Username: "payment_user",
		Password: "p@ss",
		Database: "payment_gateway",
	})
	assert.Equal(t, "postgres://payment_user:p%40ss@db:5432/payment_gateway?sslmode=disable", dsn)
}

func TestOpen_SQLite(t *testing.T) {
	db, err := Open(context.Background(), config.DatabaseConfig{Driver: DriverSQLite, SQLitePath: ":memory:"}, logger.NewLoggerWithWriter(io.Discard))
	require.NoError(t, err)
	defer db.Close()

	var one int
	require.NoError(t, db.NewSelect().ColumnExpr("1").Scan(context.Background(), &one))
	assert.Equal(t, 1, one)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"}, logger.NewLoggerWithWriter(io.Discard))
	assert.ErrorContains(t, err, "unsupported database driver")
}
