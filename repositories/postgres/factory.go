package postgres

import (
	"context"

	"github.com/upb/portal-auth/config"
	"github.com/upb/portal-auth/internal/security"
	"github.com/upb/portal-auth/repositories"
	"go.uber.org/zap"
)

// RepositoryFactory owns the connection pool and builds the stores on top of it
type RepositoryFactory struct {
	db     *DB
	cfg    *config.Config
	logger *zap.Logger
}

// NewRepositoryFactory opens the database described by cfg
func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	return &RepositoryFactory{db: db, cfg: cfg, logger: logger}, nil
}

// InitSchema creates tables and seeds roles when DB_INIT_SCHEMA is enabled
func (f *RepositoryFactory) InitSchema(ctx context.Context) error {
	if !f.cfg.Database.InitSchema {
		f.logger.Info("schema initialization disabled")
		return nil
	}
	return f.db.InitSchema(ctx)
}

// NewCredentialStore creates the credential store
func (f *RepositoryFactory) NewCredentialStore() repositories.CredentialStore {
	return NewCredentialStore(
		f.db,
		security.NewBcryptHasher(f.cfg.Password.BcryptCost),
		security.NewPasswordPolicy(f.cfg.Password),
		f.logger,
	)
}

// GetTransactionManager returns a transaction manager
func (f *RepositoryFactory) GetTransactionManager() repositories.TransactionManager {
	return NewTransactionManager(f.db, f.logger)
}

// GetDB returns the database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// Close closes the database connection
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}
