package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/learnhub/internal/db"
)

const (
	RoleStudent = "STUDENT"
	RoleAdmin   = "ADMIN"
)

type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Role          string     `json:"role"`
	PasswordHash  string     `json:"-"`
	IsActive      bool       `json:"isActive"`
	EmailVerified bool       `json:"emailVerified"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty"`
}

// Users is the SQL-backed user store. Soft-deleted rows are invisible to
// every lookup.
type Users struct{ db *sql.DB }

func NewUsers(h *sql.DB) *Users { return &Users{db: h} }

const userCols = `id, email, name, role, password_hash, is_active, email_verified, created_at, updated_at, deleted_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var (
		u                User
		created, updated int64
		deleted          sql.NullInt64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.IsActive, &u.EmailVerified,
		&created, &updated, &deleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.CreatedAt = db.FromUnix(created)
	u.UpdatedAt = db.FromUnix(updated)
	u.DeletedAt = db.TimePtr(deleted)
	return &u, nil
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func (s *Users) Create(ctx context.Context, u *User, verificationToken string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (id, email, name, password_hash, role, is_active, email_verified, verification_token, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.IsActive, u.EmailVerified,
		sql.NullString{String: verificationToken, Valid: verificationToken != ""},
		u.CreatedAt.Unix(), u.UpdatedAt.Unix())
	if db.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("users: create: %w", err)
	}
	return nil
}

func (s *Users) GetByID(ctx context.Context, id string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1 AND deleted_at IS NULL`, id))
}

func (s *Users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE email = $1 AND deleted_at IS NULL`, normalizeEmail(email)))
}

func (s *Users) GetByVerificationToken(ctx context.Context, tok string) (*User, error) {
	if tok == "" {
		return nil, ErrUserNotFound
	}
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE verification_token = $1 AND deleted_at IS NULL`, tok))
}

// GetByResetToken only matches tokens whose expiry is still after now.
func (s *Users) GetByResetToken(ctx context.Context, tok string, now time.Time) (*User, error) {
	if tok == "" {
		return nil, ErrUserNotFound
	}
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users
WHERE reset_token = $1 AND reset_token_expires_at > $2 AND deleted_at IS NULL`, tok, now.Unix()))
}

// List pages through non-deleted users, newest first.
func (s *Users) List(ctx context.Context, limit, offset int) ([]User, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+userCols+` FROM users
WHERE deleted_at IS NULL ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *Users) exec(ctx context.Context, op, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("users: %s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdatePassword also burns any outstanding reset token.
func (s *Users) UpdatePassword(ctx context.Context, id, hash string, now time.Time) error {
	return s.exec(ctx, "update password", `
UPDATE users SET password_hash = $1, reset_token = NULL, reset_token_expires_at = NULL, updated_at = $2
WHERE id = $3 AND deleted_at IS NULL`, hash, now.Unix(), id)
}

func (s *Users) SetActive(ctx context.Context, id string, active bool, now time.Time) error {
	return s.exec(ctx, "set active",
		`UPDATE users SET is_active = $1, updated_at = $2 WHERE id = $3 AND deleted_at IS NULL`, active, now.Unix(), id)
}

func (s *Users) MarkVerified(ctx context.Context, id string, now time.Time) error {
	return s.exec(ctx, "mark verified", `
UPDATE users SET email_verified = TRUE, verification_token = NULL, updated_at = $1
WHERE id = $2 AND deleted_at IS NULL`, now.Unix(), id)
}

func (s *Users) SetVerificationToken(ctx context.Context, id, tok string, now time.Time) error {
	return s.exec(ctx, "set verification token",
		`UPDATE users SET verification_token = $1, updated_at = $2 WHERE id = $3 AND deleted_at IS NULL`, tok, now.Unix(), id)
}

func (s *Users) SetResetToken(ctx context.Context, id, tok string, expires, now time.Time) error {
	return s.exec(ctx, "set reset token", `
UPDATE users SET reset_token = $1, reset_token_expires_at = $2, updated_at = $3
WHERE id = $4 AND deleted_at IS NULL`, tok, expires.Unix(), now.Unix(), id)
}

func (s *Users) SetRole(ctx context.Context, id, role string, now time.Time) error {
	return s.exec(ctx, "set role",
		`UPDATE users SET role = $1, updated_at = $2 WHERE id = $3 AND deleted_at IS NULL`, role, now.Unix(), id)
}

// SoftDelete stamps deleted_at and deactivates the account. The row stays.
func (s *Users) SoftDelete(ctx context.Context, id string, now time.Time) error {
	return s.exec(ctx, "soft delete", `
UPDATE users SET deleted_at = $1, is_active = FALSE, updated_at = $2
WHERE id = $3 AND deleted_at IS NULL`, now.Unix(), now.Unix(), id)
}
