// Package storetest opens throwaway sqlite databases for package tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/store"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// Open returns a migrated sqlite database living in t.TempDir
func Open(t testing.TB) *sqlx.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "gatekeeper.db") +
		"?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"

	ctx := context.Background()
	db, err := store.Open(ctx, config.DatabaseConfig{Driver: "sqlite", DSN: dsn, MaxOpenConns: 8})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, store.Migrate(ctx, db))
	return db
}

// Tenant inserts a tenant row and returns its id
func Tenant(t testing.TB, db *sqlx.DB, name string) kernel.TenantID {
	t.Helper()

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO tenants (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`, id, name, now, now)
	require.NoError(t, err)
	return kernel.TenantID(id)
}
