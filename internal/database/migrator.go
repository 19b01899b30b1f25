package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator applies the schema. Postgres uses the embedded SQL migrations;
// SQLite, which the migrations do not target, is migrated from the models.
type Migrator struct {
	db     *Database
	models []any
}

func NewMigrator(db *Database, models ...any) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("nil database")
	}
	return &Migrator{db: db, models: models}, nil
}

func (mg *Migrator) Up(ctx context.Context) error {
	if mg.db.Pool() == nil {
		if err := mg.db.Gorm(ctx).AutoMigrate(mg.models...); err != nil {
			return fmt.Errorf("auto migrate failed: %w", err)
		}
		slog.InfoContext(ctx, "schema migrated", "driver", mg.db.Dialect(), "models", len(mg.models))
		return nil
	}
	m, err := mg.migrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up failed: %w", err)
	}
	version, dirty, _ := m.Version()
	slog.InfoContext(ctx, "schema migrated", "driver", "postgres", "version", version, "dirty", dirty)
	return nil
}

func (mg *Migrator) Down(ctx context.Context) error {
	if mg.db.Pool() == nil {
		for i := len(mg.models) - 1; i >= 0; i-- {
			if err := mg.db.Gorm(ctx).Migrator().DropTable(mg.models[i]); err != nil {
				return fmt.Errorf("drop table failed: %w", err)
			}
		}
		return nil
	}
	m, err := mg.migrate()
	if err != nil {
		return err
	}
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down failed: %w", err)
	}
	return nil
}

func (mg *Migrator) migrate() (*migrate.Migrate, error) {
	driver, err := pgx.WithInstance(stdlib.OpenDBFromPool(mg.db.Pool()), &pgx.Config{})
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}
	return migrate.NewWithInstance("iofs", src, "pgx", driver)
}
