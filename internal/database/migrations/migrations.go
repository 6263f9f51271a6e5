package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"ms-payments/internal/logger"
)

// SchemaVersion is the last migration that only creates tables. Later versions seed data.
const SchemaVersion uint = 1

type MigrateOptions struct {
	MigrationsDir string
	// SeedData also applies the demo merchant seed migrations.
	SeedData bool
}

func DefaultOptions() MigrateOptions {
	return MigrateOptions{
		MigrationsDir: "./migrations",
		SeedData:      false,
	}
}

// Runner applies the SQL migrations in MigrationsDir to a Postgres database.
type Runner struct {
	db       *sql.DB
	options  MigrateOptions
	logger   *logger.Logger
	migrator *migrate.Migrate
}

func NewRunner(db *sql.DB, opts MigrateOptions, log *logger.Logger) *Runner {
	return &Runner{
		db:      db,
		options: opts,
		logger:  log,
	}
}

func (r *Runner) Initialize() error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}

	if _, err := os.Stat(r.options.MigrationsDir); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory does not exist: %s", r.options.MigrationsDir)
	}

	migrator, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", r.options.MigrationsDir),
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	r.migrator = migrator
	return nil
}

func (r *Runner) ensure() error {
	if r.migrator != nil {
		return nil
	}
	return r.Initialize()
}

// RunMigrations brings the schema up to date, seeding only when SeedData is set.
// A dirty schema is forced back to its recorded version first.
func (r *Runner) RunMigrations() error {
	if err := r.ensure(); err != nil {
		return err
	}

	version, dirty, err := r.migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		r.logger.Warn("MIGRATE", fmt.Sprintf("Detected dirty migration at version %d, forcing", version))
		if err := r.migrator.Force(int(version)); err != nil {
			return fmt.Errorf("failed to fix dirty migration: %w", err)
		}
	}

	if r.options.SeedData {
		r.logger.Info("MIGRATE", "Running all migrations including seed data")
		err = r.migrator.Up()
	} else if errors.Is(err, migrate.ErrNilVersion) || version < SchemaVersion {
		r.logger.Info("MIGRATE", "Running schema migrations only")
		err = r.migrator.Migrate(SchemaVersion)
	} else {
		err = nil
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if version, _, err := r.migrator.Version(); err == nil {
		r.logger.Info("MIGRATE", fmt.Sprintf("Current schema version: %d", version))
	}
	return nil
}

func (r *Runner) MigrateUp() error {
	if err := r.ensure(); err != nil {
		return err
	}
	if err := r.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

func (r *Runner) MigrateDown() error {
	if err := r.ensure(); err != nil {
		return err
	}
	if err := r.migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

func (r *Runner) MigrateTo(version uint) error {
	if err := r.ensure(); err != nil {
		return err
	}
	if err := r.migrator.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration to version %d failed: %w", version, err)
	}
	return nil
}

// Version reports the applied version; 0 when nothing has run yet.
func (r *Runner) Version() (uint, bool, error) {
	if err := r.ensure(); err != nil {
		return 0, false, err
	}
	version, dirty, err := r.migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Close releases the migrator. The *sql.DB passed to NewRunner is closed with it.
func (r *Runner) Close() error {
	if r.migrator != nil {
		sourceErr, databaseErr := r.migrator.Close()
		if sourceErr != nil {
			return fmt.Errorf("error closing migrator source: %w", sourceErr)
		}
		if databaseErr != nil {
			return fmt.Errorf("error closing migrator database: %w", databaseErr)
		}
	}
	return nil
}
