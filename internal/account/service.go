// Package account owns users and the credential flows around device sessions:
// registration, login, refresh rotation, logout, verification and resets.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/learnhub/internal/clock"
	"github.com/mind-engage/learnhub/internal/device"
	"github.com/mind-engage/learnhub/internal/eventlog"
	"github.com/mind-engage/learnhub/internal/logger"
	"github.com/mind-engage/learnhub/internal/ratelimit"
	"github.com/mind-engage/learnhub/internal/session"
	"github.com/mind-engage/learnhub/internal/token"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrAccountDeactivated  = errors.New("account is deactivated")
	ErrAlreadyVerified     = errors.New("email already verified")
	ErrInvalidVerification = errors.New("invalid verification token")
	ErrInvalidResetToken   = errors.New("invalid or expired reset token")
	ErrWrongPassword       = errors.New("current password is incorrect")
	ErrInvalidRole         = errors.New("invalid role")
)

const MinPasswordLength = 8

// Notifier delivers verification and reset tokens to the user out of band.
type Notifier interface {
	SendVerification(ctx context.Context, u *User, token string) error
	SendPasswordReset(ctx context.Context, u *User, token string) error
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type LoginResult struct {
	User    *User            `json:"user"`
	Session *session.Session `json:"session"`
	Tokens  TokenPair        `json:"tokens"`
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

type Service struct {
	users    *Users
	sessions *session.Store
	issuer   *token.Issuer
	limiter  *ratelimit.Limiter
	notifier Notifier
	events   eventlog.Sink
	clock    clock.Clock
	log      *logger.Logger
	cost     int
}

type Deps struct {
	Users    *Users
	Sessions *session.Store
	Issuer   *token.Issuer
	Limiter  *ratelimit.Limiter // nil disables throttling
	Notifier Notifier
	Events   eventlog.Sink
	Clock    clock.Clock
	Log      *logger.Logger
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

func NewService(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = clock.System()
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Events == nil {
		d.Events = eventlog.Nop{}
	}
	if d.Notifier == nil {
		d.Notifier = NewLogNotifier(d.Log)
	}
	if d.BcryptCost == 0 {
		d.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:    d.Users,
		sessions: d.Sessions,
		issuer:   d.Issuer,
		limiter:  d.Limiter,
		notifier: d.Notifier,
		events:   d.Events,
		clock:    d.Clock,
		log:      d.Log.With("service", "AccountService"),
		cost:     d.BcryptCost,
	}
}

func (s *Service) hash(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	verify, err := token.IssueOpaqueToken()
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	u := &User{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(in.Email),
		Name:         strings.TrimSpace(in.Name),
		Role:         RoleStudent,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u, verify); err != nil {
		return nil, err
	}
	s.log.Info("user registered", "user_id", u.ID)
	if err := s.notifier.SendVerification(ctx, u, verify); err != nil {
		s.log.Warn("verification notice failed", "user_id", u.ID, "error", err)
	}
	return u, nil
}

// Login checks the throttle, the password and the account state, then opens
// (or reuses) the device session. A *session.DeviceLimitError comes back
// unchanged.
func (s *Service) Login(ctx context.Context, email, password string, dev device.Info) (*LoginResult, error) {
	email = normalizeEmail(email)
	if err := s.limiter.Check(ctx, email, dev.IP); err != nil {
		if errors.Is(err, ratelimit.ErrRateLimited) {
			return nil, err
		}
		s.log.Warn("login throttle unavailable", "error", err)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		s.recordFailure(ctx, email, dev.IP)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.recordFailure(ctx, email, dev.IP)
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrAccountDeactivated
	}

	sess, refresh, err := s.sessions.CreateSession(ctx, u.ID, u.Role, dev)
	if err != nil {
		return nil, err
	}
	access, err := s.issuer.IssueAccessToken(u.ID, u.Email)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Reset(ctx, email, dev.IP); err != nil {
		s.log.Warn("login throttle reset failed", "error", err)
	}
	s.log.Info("login", "user_id", u.ID, "session_id", sess.ID, "device", sess.DeviceName)
	return &LoginResult{User: u, Session: sess, Tokens: s.pair(access, refresh)}, nil
}

func (s *Service) recordFailure(ctx context.Context, email, ip string) {
	if err := s.limiter.RecordFailure(ctx, email, ip); err != nil {
		s.log.Warn("login throttle record failed", "error", err)
	}
}

func (s *Service) pair(access, refresh string) TokenPair {
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(s.issuer.AccessTTL().Seconds())}
}

// Refresh rotates the refresh token and mints a new access token. Every
// failure short of storage errors is session.ErrInvalidRefresh.
func (s *Service) Refresh(ctx context.Context, refresh string) (*TokenPair, error) {
	claims, err := s.issuer.VerifyRefreshToken(refresh)
	if err != nil {
		return nil, session.ErrInvalidRefresh
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, session.ErrInvalidRefresh
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrAccountDeactivated
	}
	_, next, err := s.sessions.RotateRefreshToken(ctx, refresh, u.ID)
	if err != nil {
		return nil, err
	}
	access, err := s.issuer.IssueAccessToken(u.ID, u.Email)
	if err != nil {
		return nil, err
	}
	p := s.pair(access, next)
	return &p, nil
}

func (s *Service) Logout(ctx context.Context, refresh string) error {
	return s.sessions.DeactivateSession(ctx, refresh)
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	return s.users.List(ctx, limit, offset)
}

// ChangePassword signs the user out everywhere.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return ErrWrongPassword
	}
	hash, err := s.hash(next)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash, s.clock.Now()); err != nil {
		return err
	}
	return s.revokeAll(ctx, u.ID, "password_change")
}

func (s *Service) VerifyEmail(ctx context.Context, tok string) (*User, error) {
	u, err := s.users.GetByVerificationToken(ctx, tok)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidVerification
	}
	if err != nil {
		return nil, err
	}
	if err := s.users.MarkVerified(ctx, u.ID, s.clock.Now()); err != nil {
		return nil, err
	}
	u.EmailVerified = true
	return u, nil
}

func (s *Service) ResendVerification(ctx context.Context, userID string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.EmailVerified {
		return ErrAlreadyVerified
	}
	tok, err := token.IssueOpaqueToken()
	if err != nil {
		return err
	}
	if err := s.users.SetVerificationToken(ctx, u.ID, tok, s.clock.Now()); err != nil {
		return err
	}
	return s.notifier.SendVerification(ctx, u, tok)
}

// ForgotPassword succeeds silently for unknown emails so the endpoint cannot
// be used to probe for accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	tok, err := s.issuer.IssueOpaqueToken()
	if err != nil {
		return err
	}
	if err := s.users.SetResetToken(ctx, u.ID, tok, s.issuer.PasswordResetExpiry(), s.clock.Now()); err != nil {
		return err
	}
	if err := s.notifier.SendPasswordReset(ctx, u, tok); err != nil {
		s.log.Warn("reset notice failed", "user_id", u.ID, "error", err)
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, tok, password string) error {
	now := s.clock.Now()
	u, err := s.users.GetByResetToken(ctx, tok, now)
	if errors.Is(err, ErrUserNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return err
	}
	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash, now); err != nil {
		return err
	}
	return s.revokeAll(ctx, u.ID, "password_reset")
}

func (s *Service) ListSessions(ctx context.Context, userID string) ([]session.Session, error) {
	return s.sessions.ListActive(ctx, userID)
}

func (s *Service) RemoveSession(ctx context.Context, userID, sessionID string) error {
	return s.sessions.RemoveSession(ctx, sessionID, userID)
}

func (s *Service) RenameSession(ctx context.Context, userID, sessionID, name string) error {
	return s.sessions.UpdateDeviceName(ctx, sessionID, userID, strings.TrimSpace(name))
}

// SetActive is the admin switch. Deactivation revokes every session.
func (s *Service) SetActive(ctx context.Context, userID string, active bool) error {
	if err := s.users.SetActive(ctx, userID, active, s.clock.Now()); err != nil {
		return err
	}
	if active {
		return nil
	}
	s.appendEvent(ctx, eventlog.AccountDisabled, userID, nil)
	return s.revokeAll(ctx, userID, "admin_deactivate")
}

func (s *Service) SetRole(ctx context.Context, userID, role string) error {
	if role != RoleStudent && role != RoleAdmin {
		return ErrInvalidRole
	}
	return s.users.SetRole(ctx, userID, role, s.clock.Now())
}

// RevokeSessions is the admin "sign out everywhere".
func (s *Service) RevokeSessions(ctx context.Context, userID string) (int64, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return 0, err
	}
	n, err := s.sessions.DeactivateAllSessions(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.appendEvent(ctx, eventlog.SessionsRevoked, userID, map[string]any{"reason": "admin_revoke", "count": n})
	return n, nil
}

// LogoutAll ends every session the user holds, the calling one included.
func (s *Service) LogoutAll(ctx context.Context, userID string) (int64, error) {
	n, err := s.sessions.DeactivateAllSessions(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.appendEvent(ctx, eventlog.SessionsRevoked, userID, map[string]any{"reason": "logout_all", "count": n})
	return n, nil
}

func (s *Service) SoftDelete(ctx context.Context, userID string) error {
	if err := s.users.SoftDelete(ctx, userID, s.clock.Now()); err != nil {
		return err
	}
	return s.revokeAll(ctx, userID, "account_deleted")
}

func (s *Service) revokeAll(ctx context.Context, userID, reason string) error {
	n, err := s.sessions.DeactivateAllSessions(ctx, userID)
	if err != nil {
		return err
	}
	s.appendEvent(ctx, eventlog.SessionsRevoked, userID, map[string]any{"reason": reason, "count": n})
	return nil
}

func (s *Service) appendEvent(ctx context.Context, typ, userID string, data any) {
	if err := s.events.Append(ctx, typ, "user:"+userID, data); err != nil {
		s.log.Warn("event append failed", "type", typ, "error", err)
	}
}
