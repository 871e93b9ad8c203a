// Package auth is the request gate: it resolves a bearer access token to an
// active user and enforces verification and role preconditions.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/mind-engage/learnhub/internal/account"
	"github.com/mind-engage/learnhub/internal/api/response"
	"github.com/mind-engage/learnhub/internal/apierr"
	"github.com/mind-engage/learnhub/internal/rbac"
	"github.com/mind-engage/learnhub/internal/token"
)

// UserLookup resolves a user id. *account.Service satisfies it.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*account.User, error)
}

// AccessVerifier is satisfied by *token.Issuer.
type AccessVerifier interface {
	VerifyAccessToken(tok string) (*token.Claims, error)
}

func bearer(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// Resolve runs the gate checks in order: token present, token valid and
// unexpired, user exists, account active.
func Resolve(ctx context.Context, v AccessVerifier, users UserLookup, raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, apierr.Unauthenticated("No token provided")
	}
	claims, err := v.VerifyAccessToken(raw)
	if errors.Is(err, token.ErrTokenExpired) {
		e := apierr.Unauthenticated("Token expired")
		e.Code = apierr.CodeTokenExpired
		return Identity{}, e
	}
	if err != nil {
		return Identity{}, apierr.Unauthenticated("Invalid token")
	}
	u, err := users.GetUser(ctx, claims.UserID)
	if errors.Is(err, account.ErrUserNotFound) {
		return Identity{}, apierr.Unauthenticated("User not found")
	}
	if err != nil {
		return Identity{}, err
	}
	if !u.IsActive {
		return Identity{}, apierr.Forbidden(apierr.CodeAccountDeactivated, "Account is deactivated")
	}
	return Identity{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
	}, nil
}

// Authenticate attaches the caller's Identity and role to the request context.
func Authenticate(v AccessVerifier, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := Resolve(r.Context(), v, users, bearer(r))
			if err != nil {
				response.Error(w, err)
				return
			}
			ctx := WithIdentity(r.Context(), id)
			ctx = rbac.WithRole(ctx, id.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireEmailVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			response.Error(w, apierr.Unauthenticated("No token provided"))
			return
		}
		if !id.EmailVerified {
			response.Error(w, apierr.Forbidden(apierr.CodeEmailNotVerified, "Please verify your email address"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin admits only the ADMIN role.
func RequireAdmin(next http.Handler) http.Handler {
	return rbac.Require(rbac.PermAdmin)(next)
}
