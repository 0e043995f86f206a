package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/upb/portal-auth/config"
	"github.com/upb/portal-auth/models"
	"github.com/upb/portal-auth/services"
)

// AccessClaims are the claims carried by an issued access token.
// sub is the username and jti is unique per token.
type AccessClaims struct {
	NameID   string `json:"nameid"`
	Role     string `json:"role,omitempty"`
	LoggedOn string `json:"LoggedOn"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates HS256 access tokens
type TokenIssuer struct {
	secret   []byte
	issuer   string
	audience string
	expiry   time.Duration
	now      func() time.Time
}

// NewTokenIssuer creates an issuer from a validated token configuration
func NewTokenIssuer(cfg config.TokenConfig) (*TokenIssuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid token configuration: %w", err)
	}
	return &TokenIssuer{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		expiry:   cfg.Expiry(),
		now:      time.Now,
	}, nil
}

// Issue signs a token for account. An empty role leaves the role claim out.
// The returned expiry is UTC and matches the exp claim.
func (i *TokenIssuer) Issue(account *models.Account, role string, now time.Time) (string, time.Time, error) {
	if account == nil {
		return "", time.Time{}, errors.New("account is required")
	}

	// JWT NumericDate has second precision
	issuedAt := now.UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(i.expiry)

	claims := AccessClaims{
		NameID:   account.ID.String(),
		Role:     role,
		LoggedOn: issuedAt.Format(time.RFC3339),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.Username,
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate verifies signature, algorithm, issuer, audience and expiry
func (i *TokenIssuer) Validate(ctx context.Context, tokenString string) (*AccessClaims, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)

	claims := &AccessClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, services.ErrTokenExpired.Wrap(err)
		}
		return nil, services.ErrInvalidToken.Wrap(err)
	}
	if !token.Valid {
		return nil, services.ErrInvalidToken
	}

	return claims, nil
}
