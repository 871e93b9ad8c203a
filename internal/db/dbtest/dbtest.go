// Package dbtest opens throwaway in-memory SQLite databases with the full
// schema applied.
package dbtest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/learnhub/internal/db"
)

func Open(tb testing.TB) *sql.DB {
	tb.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	h, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}
	tb.Cleanup(func() { _ = h.Close() })
	return h
}

// Exec runs a seeding statement and fails the test on error.
func Exec(tb testing.TB, h *sql.DB, query string, args ...any) {
	tb.Helper()
	if _, err := h.Exec(query, args...); err != nil {
		tb.Fatalf("seed %q: %v", query, err)
	}
}

// SeedUser inserts an active, verified user with a placeholder password hash.
func SeedUser(tb testing.TB, h *sql.DB, id, role string) {
	tb.Helper()
	now := time.Now().Unix()
	Exec(tb, h, `INSERT INTO users (id, email, name, password_hash, role, is_active, email_verified, created_at, updated_at)
VALUES ($1, $2, $3, 'x', $4, TRUE, TRUE, $5, $6)`, id, id+"@example.com", "User "+id, role, now, now)
}
