package auth

import "context"

// Identity is the resolved caller attached to the request context.
type Identity struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"emailVerified"`
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// UserID is a shortcut for handlers mounted behind Authenticate.
func UserID(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.ID
}
