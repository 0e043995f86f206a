package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/upb/portal-auth/services"
	"github.com/upb/portal-auth/utils"
	"go.uber.org/zap"
)

// TokenValidator defines the interface for validating JWT tokens
type TokenValidator interface {
	// ValidateToken validates a JWT token and returns claims
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator TokenValidator
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(validator TokenValidator, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		logger:    logger,
	}
}

// RequireAuth is a middleware that requires a valid bearer token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractBearerToken(r)
		if token == "" {
			m.logger.Warn("missing token",
				zap.String("request_id", requestID))
			writeAuthError(w, services.ErrUnauthorized)
			return
		}

		claims, err := m.validator.ValidateToken(ctx, token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			writeAuthError(w, err)
			return
		}

		ctx = WithClaims(ctx, claims)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", claims.Sub),
			zap.String("role", claims.Role))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole is a middleware that admits callers holding any of roles.
// It must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			claims := GetClaimsFromContext(ctx)
			if claims == nil {
				m.logger.Error("claims not found in context",
					zap.String("request_id", requestID))
				writeAuthError(w, services.ErrUnauthorized)
				return
			}

			if !claims.HasRole(roles...) {
				m.logger.Warn("insufficient permissions",
					zap.String("request_id", requestID),
					zap.Strings("required_roles", roles),
					zap.String("role", claims.Role))
				writeAuthError(w, services.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeAuthError writes a 403 for forbidden errors and a 401 otherwise.
// Validator errors that are not domain errors are reported as an invalid token.
func writeAuthError(w http.ResponseWriter, err error) {
	var domainErr *services.DomainError
	if !errors.As(err, &domainErr) {
		domainErr = services.ErrInvalidToken
	}
	if services.IsForbiddenError(domainErr) {
		_ = utils.WriteForbidden(w, domainErr.Message)
		return
	}
	_ = utils.WriteUnauthorized(w, domainErr.Message)
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
