package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"rankedin.shikanime.studio/internal/config"
	dbpgx "rankedin.shikanime.studio/internal/database/pgx"
)

// Database holds the gorm handle and, for Postgres, the pgx pool behind it.
type Database struct {
	db *gorm.DB
	pg *pgxpool.Pool
}

// NewForConfig opens the database named by the configured DSN.
func NewForConfig(ctx context.Context, cfg *config.Config) (*Database, error) {
	dsn, err := cfg.GetDsn()
	if err != nil {
		return nil, err
	}
	return Open(ctx, dsn)
}

// Open connects to a postgres:// or sqlite:// DSN.
func Open(ctx context.Context, dsn string) (*Database, error) {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return nil, config.ErrInvalidDsn
	}
	gcfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}

	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		pg, err := dbpgx.NewPool(ctx, dsn)
		if err != nil {
			return nil, err
		}
		db, err := gorm.Open(postgres.New(postgres.Config{Conn: stdlib.OpenDBFromPool(pg)}), gcfg)
		if err != nil {
			pg.Close()
			return nil, fmt.Errorf("open postgres failed: %w", err)
		}
		slog.DebugContext(ctx, "database opened", "driver", "postgres")
		return &Database{db: db, pg: pg}, nil
	case "sqlite", "sqlite3":
		db, err := gorm.Open(sqlite.Open(rest), gcfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite failed: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// SQLite allows a single writer; in-memory databases also vanish with their last connection.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(0)
		slog.DebugContext(ctx, "database opened", "driver", "sqlite")
		return &Database{db: db}, nil
	default:
		return nil, config.ErrInvalidDsn
	}
}

// Gorm returns a session bound to ctx.
func (db *Database) Gorm(ctx context.Context) *gorm.DB { return db.db.WithContext(ctx) }

// Pool returns the pgx pool, nil for SQLite.
func (db *Database) Pool() *pgxpool.Pool { return db.pg }

// Dialect returns the gorm dialector name, "postgres" or "sqlite".
func (db *Database) Dialect() string { return db.db.Dialector.Name() }

// Ping verifies the database connection is available
func (db *Database) Ping(ctx context.Context) error {
	tracer := otel.Tracer("rankedin/database")
	ctx, span := tracer.Start(ctx, "Database.Ping")
	defer span.End()
	if db == nil || db.db == nil {
		return fmt.Errorf("database connection not available")
	}
	sqlDB, err := db.db.DB()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get sql.DB failed")
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ping failed")
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

func (db *Database) Close() error {
	if db == nil || db.db == nil {
		return nil
	}
	sqlDB, err := db.db.DB()
	if err == nil {
		err = sqlDB.Close()
	}
	if db.pg != nil {
		db.pg.Close()
	}
	return err
}
