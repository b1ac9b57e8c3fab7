package auth

import (
	"context"
	"slices"
)

type contextKey string

const authContextKey contextKey = "predictor_auth"

// AuthInfo holds authenticated identity information extracted from an API key.
type AuthInfo struct {
	KeyID  string
	Name   string
	Scopes []string
}

// HasScope reports whether the caller may use scope. Admin keys may do everything.
func (a *AuthInfo) HasScope(scope string) bool {
	return slices.Contains(a.Scopes, scope) || slices.Contains(a.Scopes, ScopeAdmin)
}

func ContextWithAuth(ctx context.Context, info *AuthInfo) context.Context {
	return context.WithValue(ctx, authContextKey, info)
}

func AuthFromContext(ctx context.Context) (*AuthInfo, bool) {
	info, ok := ctx.Value(authContextKey).(*AuthInfo)
	return info, ok
}
