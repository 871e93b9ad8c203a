// Package session persists one row per (user, device fingerprint), caps the
// number of concurrently active devices per role and rotates refresh tokens.
package session

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/learnhub/internal/clock"
	"github.com/mind-engage/learnhub/internal/db"
	"github.com/mind-engage/learnhub/internal/device"
	"github.com/mind-engage/learnhub/internal/token"
)

var (
	// ErrInvalidRefresh covers bad signature, unknown token, revoked and
	// expired sessions alike.
	ErrInvalidRefresh = errors.New("session: invalid refresh token")
	ErrNotFound       = errors.New("session: not found")
	ErrDeviceLimit    = errors.New("session: device limit reached")
	ErrUnknownUser    = errors.New("session: unknown user")
)

// StaleAfter is how long an unused session survives the cleanup sweep.
const StaleAfter = 30 * 24 * time.Hour

// DeviceLimitError reports the counts behind a refused login.
type DeviceLimitError struct {
	ActiveDevices int
	MaxDevices    int
}

func (e *DeviceLimitError) Error() string {
	return fmt.Sprintf("device limit reached: %d of %d devices active", e.ActiveDevices, e.MaxDevices)
}

func (e *DeviceLimitError) Is(target error) bool { return target == ErrDeviceLimit }

type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Fingerprint  string    `json:"-"`
	DeviceName   string    `json:"deviceName"`
	DeviceType   string    `json:"deviceType"`
	Browser      string    `json:"browser"`
	IPAddress    string    `json:"ipAddress"`
	ExpiresAt    time.Time `json:"expiresAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Limits holds the per-role device caps.
type Limits struct {
	Student int
	Admin   int
}

func (l Limits) For(role string) int {
	if role == "ADMIN" {
		return l.Admin
	}
	return l.Student
}

type Store struct {
	db     *sql.DB
	issuer *token.Issuer
	clock  clock.Clock
	limits Limits
}

func NewStore(h *sql.DB, issuer *token.Issuer, clk clock.Clock, limits Limits) *Store {
	if clk == nil {
		clk = clock.System()
	}
	if limits.Student <= 0 {
		limits.Student = 3
	}
	if limits.Admin <= 0 {
		limits.Admin = 10
	}
	return &Store{db: h, issuer: issuer, clock: clk, limits: limits}
}

func (s *Store) Limits() Limits { return s.limits }

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

const sessionCols = `id, user_id, fingerprint, device_name, device_type, browser, ip_address,
expires_at, last_active_at, is_active, created_at`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var (
		s                           Session
		expires, lastActive, create int64
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.Fingerprint, &s.DeviceName, &s.DeviceType, &s.Browser,
		&s.IPAddress, &expires, &lastActive, &s.IsActive, &create); err != nil {
		return nil, err
	}
	s.ExpiresAt = db.FromUnix(expires)
	s.LastActiveAt = db.FromUnix(lastActive)
	s.CreatedAt = db.FromUnix(create)
	return &s, nil
}

// CreateSession logs a device in. A known active fingerprint reuses its row
// and never counts against the cap. A new device is refused with a
// *DeviceLimitError once the role's cap of active sessions is reached.
//
// The whole sequence runs in one transaction that first touches the user row,
// so concurrent logins for the same user serialise on that row lock.
func (s *Store) CreateSession(ctx context.Context, userID, role string, dev device.Info) (*Session, string, error) {
	raw, err := s.issuer.IssueRefreshToken(userID)
	if err != nil {
		return nil, "", err
	}
	now := s.clock.Now()
	expires := now.Add(s.issuer.RefreshTTL())
	hash := hashToken(raw)
	limit := s.limits.For(role)

	var out *Session
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE users SET updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`, now.Unix(), userID)
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrUnknownUser
		}

		existing, err := scanSession(tx.QueryRowContext(ctx,
			`SELECT `+sessionCols+` FROM device_sessions WHERE user_id = $1 AND fingerprint = $2`, userID, dev.Fingerprint))
		switch {
		case errors.Is(err, sql.ErrNoRows):
			existing = nil
		case err != nil:
			return fmt.Errorf("find session: %w", err)
		}

		if existing != nil && existing.IsActive {
			_, err := tx.ExecContext(ctx, `
UPDATE device_sessions
SET refresh_token_hash = $1, expires_at = $2, last_active_at = $3, ip_address = $4,
    device_name = $5, device_type = $6, browser = $7
WHERE id = $8`,
				hash, expires.Unix(), now.Unix(), dev.IP, dev.Meta.Name, dev.Meta.Type, dev.Meta.Browser, existing.ID)
			if err != nil {
				return fmt.Errorf("refresh session: %w", err)
			}
			existing.ExpiresAt = db.FromUnix(expires.Unix())
			existing.LastActiveAt = db.FromUnix(now.Unix())
			existing.IPAddress = dev.IP
			existing.DeviceName, existing.DeviceType, existing.Browser = dev.Meta.Name, dev.Meta.Type, dev.Meta.Browser
			out = existing
			return nil
		}

		var active int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM device_sessions WHERE user_id = $1 AND is_active = TRUE AND expires_at > $2`,
			userID, now.Unix()).Scan(&active); err != nil {
			return fmt.Errorf("count sessions: %w", err)
		}
		if active >= limit {
			return &DeviceLimitError{ActiveDevices: active, MaxDevices: limit}
		}

		// revoked rows are never revived; replace them
		if existing != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM device_sessions WHERE id = $1`, existing.ID); err != nil {
				return fmt.Errorf("drop revoked session: %w", err)
			}
		}

		sess := &Session{
			ID:           uuid.NewString(),
			UserID:       userID,
			Fingerprint:  dev.Fingerprint,
			DeviceName:   dev.Meta.Name,
			DeviceType:   dev.Meta.Type,
			Browser:      dev.Meta.Browser,
			IPAddress:    dev.IP,
			ExpiresAt:    db.FromUnix(expires.Unix()),
			LastActiveAt: db.FromUnix(now.Unix()),
			IsActive:     true,
			CreatedAt:    db.FromUnix(now.Unix()),
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO device_sessions (id, user_id, fingerprint, device_name, device_type, browser, ip_address,
  refresh_token_hash, expires_at, last_active_at, is_active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,TRUE,$11)`,
			sess.ID, sess.UserID, sess.Fingerprint, sess.DeviceName, sess.DeviceType, sess.Browser, sess.IPAddress,
			hash, expires.Unix(), now.Unix(), now.Unix())
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		out = sess
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return out, raw, nil
}

// VerifyRefreshToken returns the live session owning raw. Every non-storage
// failure is ErrInvalidRefresh so callers learn nothing about why.
func (s *Store) VerifyRefreshToken(ctx context.Context, raw string) (*Session, error) {
	claims, err := s.issuer.VerifyRefreshToken(raw)
	if err != nil {
		return nil, ErrInvalidRefresh
	}
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM device_sessions
WHERE refresh_token_hash = $1 AND is_active = TRUE AND expires_at > $2`,
		hashToken(raw), s.clock.Now().Unix()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidRefresh
	}
	if err != nil {
		return nil, fmt.Errorf("session: verify: %w", err)
	}
	if sess.UserID != claims.UserID {
		return nil, ErrInvalidRefresh
	}
	return sess, nil
}

// RotateRefreshToken swaps oldRaw for a freshly minted token. The swap is a
// compare-and-set on the stored hash, so a replayed or concurrently rotated
// token loses and gets ErrInvalidRefresh.
func (s *Store) RotateRefreshToken(ctx context.Context, oldRaw, userID string) (*Session, string, error) {
	sess, err := s.VerifyRefreshToken(ctx, oldRaw)
	if err != nil {
		return nil, "", err
	}
	if sess.UserID != userID {
		return nil, "", ErrInvalidRefresh
	}

	raw, err := s.issuer.IssueRefreshToken(userID)
	if err != nil {
		return nil, "", err
	}
	now := s.clock.Now()
	expires := now.Add(s.issuer.RefreshTTL())
	res, err := s.db.ExecContext(ctx, `
UPDATE device_sessions
SET refresh_token_hash = $1, expires_at = $2, last_active_at = $3
WHERE id = $4 AND refresh_token_hash = $5 AND is_active = TRUE AND expires_at > $6`,
		hashToken(raw), expires.Unix(), now.Unix(), sess.ID, hashToken(oldRaw), now.Unix())
	if err != nil {
		return nil, "", fmt.Errorf("session: rotate: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return nil, "", ErrInvalidRefresh
	}
	sess.ExpiresAt = db.FromUnix(expires.Unix())
	sess.LastActiveAt = db.FromUnix(now.Unix())
	return sess, raw, nil
}

// DeactivateSession revokes the session holding raw. Unknown tokens are a no-op.
func (s *Store) DeactivateSession(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `UPDATE device_sessions SET is_active = FALSE WHERE refresh_token_hash = $1`, hashToken(raw))
	if err != nil {
		return fmt.Errorf("session: deactivate: %w", err)
	}
	return nil
}

func (s *Store) DeactivateAllSessions(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE device_sessions SET is_active = FALSE WHERE user_id = $1 AND is_active = TRUE`, userID)
	if err != nil {
		return 0, fmt.Errorf("session: deactivate all: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *Store) RemoveSession(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM device_sessions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("session: remove: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateDeviceName(ctx context.Context, id, userID, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE device_sessions SET device_name = $1 WHERE id = $2 AND user_id = $3`, name, id, userID)
	if err != nil {
		return fmt.Errorf("session: rename: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Cleanup deletes expired, revoked and stale sessions and returns how many
// rows went away.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	res, err := s.db.ExecContext(ctx, `
DELETE FROM device_sessions
WHERE expires_at <= $1 OR is_active = FALSE OR last_active_at < $2`,
		now.Unix(), now.Add(-StaleAfter).Unix())
	if err != nil {
		return 0, fmt.Errorf("session: cleanup: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ListActive returns the user's live sessions, most recently used first.
func (s *Store) ListActive(ctx context.Context, userID string) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionCols+` FROM device_sessions
WHERE user_id = $1 AND is_active = TRUE AND expires_at > $2
ORDER BY last_active_at DESC, created_at DESC`, userID, s.clock.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

func (s *Store) CountActive(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM device_sessions WHERE user_id = $1 AND is_active = TRUE AND expires_at > $2`,
		userID, s.clock.Now().Unix()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("session: count: %w", err)
	}
	return n, nil
}
