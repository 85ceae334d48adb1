// Package store owns the relational database: connection, schema and the
// unit of work every request runs in.
package store

import (
	"context"
	"embed"
	"strings"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/logx"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Open connects to the configured database and applies pool limits
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, errx.Wrapf(err, errx.TypeInternal, "connect %s", cfg.Driver)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

// Migrate applies the schema of the connection's dialect. Statements are
// idempotent so it runs on every start.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	name := "migrations/postgres.sql"
	if db.DriverName() == "sqlite" {
		name = "migrations/sqlite.sql"
	}
	raw, err := migrations.ReadFile(name)
	if err != nil {
		return errx.Wrap(err, "read migrations", errx.TypeInternal)
	}

	applied := 0
	for _, stmt := range strings.Split(string(raw), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errx.Wrap(err, "apply migration", errx.TypeInternal).WithDetail("statement", stmt)
		}
		applied++
	}

	logx.WithFields(logx.Fields{"driver": db.DriverName(), "statements": applied}).Debug("schema migrated")
	return nil
}
