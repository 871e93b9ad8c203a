// Package token mints and verifies the access/refresh JWT pair and the opaque
// tokens used for email verification and password reset.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mind-engage/learnhub/internal/clock"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"

	DefaultAccessTTL      = 15 * time.Minute
	DefaultRefreshTTL     = 30 * 24 * time.Hour
	PasswordResetLifetime = time.Hour

	opaqueTokenBytes = 32
)

type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email,omitempty"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

type Issuer struct {
	access     []byte
	refresh    []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	clock      clock.Clock
}

// NewIssuer requires two distinct non-empty secrets so a leaked access token
// can never be replayed as a refresh token.
func NewIssuer(cfg Config, clk clock.Clock) (*Issuer, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token: access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("token: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "learnhub"
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Issuer{
		access:     []byte(cfg.AccessSecret),
		refresh:    []byte(cfg.RefreshSecret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		issuer:     cfg.Issuer,
		clock:      clk,
	}, nil
}

func (i *Issuer) AccessTTL() time.Duration  { return i.accessTTL }
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

func (i *Issuer) IssueAccessToken(userID, email string) (string, error) {
	return i.sign(i.access, typeAccess, userID, email, i.accessTTL)
}

// IssueRefreshToken carries a random jti so two tokens minted in the same
// second are still distinct strings.
func (i *Issuer) IssueRefreshToken(userID string) (string, error) {
	return i.sign(i.refresh, typeRefresh, userID, "", i.refreshTTL)
}

// RefreshExpiry is the expiry a refresh token issued now would carry.
func (i *Issuer) RefreshExpiry() time.Time {
	return i.clock.Now().Add(i.refreshTTL)
}

func (i *Issuer) sign(secret []byte, typ, userID, email string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("token: empty user id")
	}
	now := i.clock.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return s, nil
}

// VerifyAccessToken distinguishes ErrTokenExpired from ErrInvalidToken so
// callers can tell clients to refresh rather than log in again.
func (i *Issuer) VerifyAccessToken(tokenStr string) (*Claims, error) {
	c, err := i.parse(tokenStr, i.access)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if c.Type != typeAccess {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// VerifyRefreshToken reports every failure, expiry included, as ErrInvalidToken.
func (i *Issuer) VerifyRefreshToken(tokenStr string) (*Claims, error) {
	c, err := i.parse(tokenStr, i.refresh)
	if err != nil || c.Type != typeRefresh {
		return nil, ErrInvalidToken
	}
	return c, nil
}

func (i *Issuer) parse(tokenStr string, secret []byte) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock.Now),
		jwt.WithIssuer(i.issuer),
	)
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || c.UserID == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// IssueOpaqueToken returns 256 random bits as lowercase hex. Expiry, when
// relevant, is tracked by the caller.
func IssueOpaqueToken() (string, error) {
	b := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("token: random: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (i *Issuer) IssueOpaqueToken() (string, error) { return IssueOpaqueToken() }

func (i *Issuer) PasswordResetExpiry() time.Time {
	return i.clock.Now().Add(PasswordResetLifetime)
}
