package middleware

import (
	"context"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Context key type to avoid collisions
type contextKey string

// ClaimsKey is the context key for JWT claims
const ClaimsKey contextKey = "claims"

// Claims represents the access token claims of an authenticated caller
type Claims struct {
	Sub       string `json:"sub"`    // Username
	AccountID string `json:"nameid"` // Account ID
	Role      string `json:"role,omitempty"`
	Jti       string `json:"jti"`
	LoggedOn  string `json:"LoggedOn"`
	Iss       string `json:"iss"` // Issuer
	Exp       int64  `json:"exp"` // Expiration
	Iat       int64  `json:"iat"` // Issued at
}

// HasRole reports whether the caller holds any of roles
func (c *Claims) HasRole(roles ...string) bool {
	if c == nil || c.Role == "" {
		return false
	}
	for _, role := range roles {
		if strings.EqualFold(c.Role, role) {
			return true
		}
	}
	return false
}

// GetRequestIDFromContext returns the ID set by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// GetClaimsFromContext retrieves JWT claims from context
func GetClaimsFromContext(ctx context.Context) *Claims {
	if val := ctx.Value(ClaimsKey); val != nil {
		if claims, ok := val.(*Claims); ok {
			return claims
		}
	}
	return nil
}

// WithClaims adds JWT claims to the context
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}
