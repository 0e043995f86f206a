package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/upb/portal-auth/config"
	"github.com/upb/portal-auth/models"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// WrapDB wraps an already opened pool (used with sqlmock in tests)
func WrapDB(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: db, logger: logger}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	// Check if we can query
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// InitSchema creates the credential tables and seeds the fixed roles. It is idempotent.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS accounts (
			id UUID PRIMARY KEY,
			username VARCHAR(256) NOT NULL,
			normalized_username VARCHAR(256) NOT NULL,
			email VARCHAR(256) NOT NULL,
			normalized_email VARCHAR(256) NOT NULL,
			password_hash TEXT NOT NULL,
			security_stamp VARCHAR(64) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS roles (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(256) NOT NULL,
			normalized_name VARCHAR(256) NOT NULL
		);

		CREATE TABLE IF NOT EXISTS account_roles (
			account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			role_id VARCHAR(36) NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
			PRIMARY KEY (account_id, role_id)
		);

		CREATE UNIQUE INDEX IF NOT EXISTS ux_accounts_normalized_username ON accounts(normalized_username);
		CREATE INDEX IF NOT EXISTS idx_accounts_normalized_email ON accounts(normalized_email);
		CREATE UNIQUE INDEX IF NOT EXISTS ux_roles_normalized_name ON roles(normalized_name);
		CREATE INDEX IF NOT EXISTS idx_account_roles_role_id ON account_roles(role_id);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	seed := `INSERT INTO roles (id, name, normalized_name) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
	for i, role := range models.DefaultRoles {
		if _, err := db.ExecContext(ctx, seed, fmt.Sprint(i+1), role, models.Normalize(role)); err != nil {
			return fmt.Errorf("failed to seed role %s: %w", role, err)
		}
	}

	db.logger.Info("database schema initialized successfully",
		zap.Strings("roles", models.DefaultRoles))
	return nil
}
