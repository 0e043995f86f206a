package app

import (
	"context"
	"fmt"

	"github.com/upb/portal-auth/config"
	"github.com/upb/portal-auth/handlers"
	"github.com/upb/portal-auth/internal/security"
	"github.com/upb/portal-auth/middleware"
	"github.com/upb/portal-auth/repositories"
	"github.com/upb/portal-auth/repositories/memory"
	"github.com/upb/portal-auth/repositories/postgres"
	"github.com/upb/portal-auth/services/auth"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger

	// Repository Factory, nil when running on the memory store
	RepoFactory *postgres.RepositoryFactory

	// Store
	Store     repositories.CredentialStore
	TxManager repositories.TransactionManager

	// Services
	TokenIssuer *auth.TokenIssuer
	AuthService *auth.Service

	// HTTP
	AccountHandler *handlers.AccountHandler
	HealthHandler  *handlers.HealthHandler
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Initialize the credential store
	if err := deps.initStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}

	// Initialize token issuing and the account service
	if err := deps.initAuth(cfg); err != nil {
		_ = deps.closeStore()
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	deps.initHandlers()

	logger.Info("all dependencies initialized successfully",
		zap.String("store_driver", cfg.StoreDriver))
	return deps, nil
}

// initStore selects the credential store by driver
func (d *Dependencies) initStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		store := memory.NewCredentialStore(
			security.NewBcryptHasher(cfg.Password.BcryptCost),
			security.NewPasswordPolicy(cfg.Password),
			d.Logger,
		)
		d.Store = store
		d.TxManager = memory.NewTransactionManager(store)
		d.Logger.Warn("using in-memory credential store; accounts are lost on restart")
		return nil

	case config.StoreDriverPostgres:
		factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to create repository factory: %w", err)
		}
		d.RepoFactory = factory

		// Test the connection
		if err := factory.GetDB().PingContext(ctx); err != nil {
			_ = d.closeStore()
			return fmt.Errorf("database ping failed: %w", err)
		}

		if err := factory.InitSchema(ctx); err != nil {
			_ = d.closeStore()
			return fmt.Errorf("failed to initialize schema: %w", err)
		}

		d.Store = factory.NewCredentialStore()
		d.TxManager = factory.GetTransactionManager()

		d.Logger.Info("postgres credential store ready",
			zap.String("connection", cfg.Database.LogString()))
		return nil

	default:
		return fmt.Errorf("unsupported store driver: %s", cfg.StoreDriver)
	}
}

func (d *Dependencies) initAuth(cfg *config.Config) error {
	issuer, err := auth.NewTokenIssuer(cfg.Token)
	if err != nil {
		return err
	}
	d.TokenIssuer = issuer
	d.AuthService = auth.NewService(d.Store, d.TxManager, issuer, d.Logger)
	d.AuthMiddleware = middleware.NewAuthMiddleware(&tokenValidatorAdapter{issuer: issuer}, d.Logger)

	d.Logger.Info("token issuer initialized",
		zap.String("issuer", cfg.Token.Issuer),
		zap.String("audience", cfg.Token.Audience),
		zap.Duration("expiry", cfg.Token.Expiry()))
	return nil
}

func (d *Dependencies) initHandlers() {
	d.AccountHandler = handlers.NewAccountHandler(d.AuthService, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.Store, d.Logger)
}

// tokenValidatorAdapter adapts auth.TokenIssuer to middleware.TokenValidator
type tokenValidatorAdapter struct {
	issuer *auth.TokenIssuer
}

func (a *tokenValidatorAdapter) ValidateToken(ctx context.Context, token string) (*middleware.Claims, error) {
	parsed, err := a.issuer.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	claims := &middleware.Claims{
		Sub:       parsed.Subject,
		AccountID: parsed.NameID,
		Role:      parsed.Role,
		Jti:       parsed.ID,
		LoggedOn:  parsed.LoggedOn,
		Iss:       parsed.Issuer,
	}
	if parsed.ExpiresAt != nil {
		claims.Exp = parsed.ExpiresAt.Unix()
	}
	if parsed.IssuedAt != nil {
		claims.Iat = parsed.IssuedAt.Unix()
	}
	return claims, nil
}

func (d *Dependencies) closeStore() error {
	if d.RepoFactory == nil {
		return nil
	}
	return d.RepoFactory.Close()
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.closeStore(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
