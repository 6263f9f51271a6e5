package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/joho/godotenv"

	"ms-payments/internal/config"
	"ms-payments/internal/database"
	"ms-payments/internal/database/migrations"
	"ms-payments/internal/logger"
)

func main() {
	direction := flag.String("direction", "up", "up, down, schema or version")
	seed := flag.Bool("seed", false, "also apply the demo merchant seed")
	dir := flag.String("dir", "", "migrations directory (defaults to MIGRATIONS_DIR)")
	flag.Parse()

	logger := logger.NewLogger()
	defer logger.Close()

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()
	cfg.Database.Driver = database.DriverPostgres
	if *dir != "" {
		cfg.Database.MigrationsDir = *dir
	}

	bunDB, err := database.Open(context.Background(), cfg.Database, logger)
	if err != nil {
		logger.Fatal("MIGRATE", err.Error())
	}
	defer bunDB.Close()

	opts := migrations.DefaultOptions()
	opts.SeedData = *seed
	if cfg.Database.MigrationsDir != "" {
		opts.MigrationsDir = cfg.Database.MigrationsDir
	}
	runner := migrations.NewRunner(bunDB.DB, opts, logger)
	defer runner.Close()

	switch *direction {
	case "up":
		if *seed {
			err = runner.MigrateUp()
		} else {
			err = runner.MigrateTo(migrations.SchemaVersion)
		}
	case "schema":
		err = runner.RunMigrations()
	case "down":
		err = runner.MigrateDown()
	case "version":
	default:
		logger.Fatal("MIGRATE", fmt.Sprintf("unknown direction %q", *direction))
	}
	if err != nil {
		logger.Fatal("MIGRATE", err.Error())
	}

	version, dirty, err := runner.Version()
	if err != nil {
		logger.Fatal("MIGRATE", err.Error())
	}
	logger.Info("MIGRATE", fmt.Sprintf("Schema version %d (dirty=%t)", version, dirty))
}
