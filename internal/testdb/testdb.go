// AngelaMos | 2026
// testdb.go

// Package testdb gives repository tests a migrated, throwaway Postgres
// schema. Tests skip when no database is configured or reachable.
package testdb

import (
	"context"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/migrations"
)

// Open reads PORTAL_TEST_DB, falling back to DATABASE_URL. Each call gets
// its own schema, dropped when the test ends.
func Open(t *testing.T) *sqlx.DB {
	t.Helper()

	base := os.Getenv("PORTAL_TEST_DB")
	if base == "" {
		base = os.Getenv("DATABASE_URL")
	}
	if base == "" {
		t.Skip("PORTAL_TEST_DB or DATABASE_URL not set")
	}

	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" {
		t.Skipf("test database must be a postgres:// URL: %v", err)
	}

	ctx := context.Background()

	admin, err := sqlx.ConnectContext(ctx, "pgx", base)
	if err != nil {
		t.Skipf("db unavailable: %v", err)
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		_ = admin.Close()
		t.Fatalf("create schema: %v", err)
	}

	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()

	db, err := sqlx.ConnectContext(ctx, "pgx", u.String())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
		_, _ = admin.ExecContext(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		_ = admin.Close()
	})

	_, err = core.Migrate(ctx, db, migrations.FS)
	require.NoError(t, err)

	return db
}

// CreateUser inserts an identity row; the signup trigger adds the profile.
func CreateUser(t *testing.T, db *sqlx.DB, email string) string {
	t.Helper()

	var id string
	err := db.GetContext(context.Background(), &id, `
		INSERT INTO auth_users (email, password_hash, email_confirmed_at)
		VALUES ($1, 'x', NOW())
		RETURNING id`, email)
	require.NoError(t, err)
	return id
}
