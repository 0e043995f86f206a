// Package auth implements account registration and login with signed access tokens.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/upb/portal-auth/models"
	"github.com/upb/portal-auth/repositories"
	"github.com/upb/portal-auth/services"
	"github.com/upb/portal-auth/utils"
	"go.uber.org/zap"
)

// Service registers accounts and exchanges credentials for access tokens
type Service struct {
	store  repositories.CredentialStore
	txMgr  repositories.TransactionManager
	issuer *TokenIssuer
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source used for token issuance
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new authentication service
func NewService(store repositories.CredentialStore, txMgr repositories.TransactionManager, issuer *TokenIssuer, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		txMgr:  txMgr,
		issuer: issuer,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account named after the email and assigns it the Users role.
// Both writes share one transaction.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if msgs := utils.ValidateRequest(&req); len(msgs) > 0 {
		return nil, services.ErrInvalidInput.WithReasons(msgs...)
	}

	stamp := uuid.NewString()
	id, err := services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) (uuid.UUID, error) {
		id, err := s.store.CreateAccount(ctx, req.Email, req.Email, stamp, req.Password)
		if err != nil {
			return uuid.Nil, err
		}
		return id, s.store.AssignRole(ctx, id, models.RoleUsers)
	})
	if err != nil {
		var rejected *repositories.AccountRejectedError
		if errors.As(err, &rejected) {
			s.logger.Info("registration rejected",
				zap.String("username", req.Email),
				zap.Int("reasons", len(rejected.Reasons)))
			return nil, services.ErrAccountRejected.WithReasons(rejected.Reasons...).Wrap(err)
		}
		return nil, s.unavailable("register", err)
	}

	s.logger.Info("account registered", zap.String("username", req.Email), zap.String("account_id", id.String()))
	return &RegisterResult{
		Username: req.Email,
		Email:    req.Email,
		Status:   RegisteredStatus,
		Message:  "Registration Successful",
	}, nil
}

// Login verifies the credentials and issues an access token carrying the
// account's first role. Unknown users and wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if msgs := utils.ValidateRequest(&req); len(msgs) > 0 {
		return nil, services.ErrInvalidInput.WithReasons(msgs...)
	}

	account, err := s.store.FindAccountByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			s.logger.Info("login failed", zap.String("username", req.Username), zap.String("reason", "unknown user"))
			return nil, services.ErrAuthenticationFailed
		}
		return nil, s.unavailable("find account", err)
	}

	ok, err := s.store.VerifySecret(ctx, account, req.Password)
	if err != nil {
		return nil, s.unavailable("verify secret", err)
	}
	if !ok {
		s.logger.Info("login failed", zap.String("username", req.Username), zap.String("reason", "bad password"))
		return nil, services.ErrAuthenticationFailed
	}

	roles, err := s.store.RolesFor(ctx, account)
	if err != nil {
		return nil, s.unavailable("load roles", err)
	}
	var role string
	if len(roles) > 0 {
		role = roles[0]
	}

	token, expiresAt, err := s.issuer.Issue(account, role, s.now())
	if err != nil {
		s.logger.Error("failed to issue token", zap.String("username", account.Username), zap.Error(err))
		return nil, services.ErrTokenIssue.Wrap(err)
	}

	s.logger.Info("login succeeded", zap.String("username", account.Username), zap.String("role", role))
	return &LoginResult{
		Token:      token,
		Expiration: expiresAt,
		Username:   account.Username,
		Role:       role,
	}, nil
}

// Roles returns the role catalog
func (s *Service) Roles(ctx context.Context) ([]string, error) {
	roles, err := s.store.ListRoles(ctx)
	if err != nil {
		return nil, s.unavailable("list roles", err)
	}
	return roles, nil
}

func (s *Service) unavailable(op string, err error) error {
	s.logger.Error("credential store call failed", zap.String("op", op), zap.Error(err))
	return services.ErrStoreUnavailable.WithDetail("operation", op).Wrap(err)
}
