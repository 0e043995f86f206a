package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/upb/portal-auth/internal/security"
	"github.com/upb/portal-auth/models"
	"github.com/upb/portal-auth/repositories"
	"go.uber.org/zap"
)

// pqUniqueViolation is the SQLSTATE for unique_violation
const pqUniqueViolation = "23505"

const accountRolesQuery = `
	SELECT r.name
	FROM roles r
	JOIN account_roles ar ON ar.role_id = r.id
	WHERE ar.account_id = $1
	ORDER BY r.name
`

// CredentialStore implements repositories.CredentialStore on PostgreSQL
type CredentialStore struct {
	db     *DB
	hasher security.Hasher
	policy *security.PasswordPolicy
	logger *zap.Logger
}

// NewCredentialStore creates a new PostgreSQL credential store
func NewCredentialStore(db *DB, hasher security.Hasher, policy *security.PasswordPolicy, logger *zap.Logger) *CredentialStore {
	return &CredentialStore{
		db:     db,
		hasher: hasher,
		policy: policy,
		logger: logger,
	}
}

// CreateAccount validates the secret, checks username uniqueness and inserts the account
func (s *CredentialStore) CreateAccount(ctx context.Context, username, email, securityStamp, secret string) (uuid.UUID, error) {
	var reasons []string

	executor := GetExecutor(ctx, s.db)

	var taken bool
	err := executor.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE normalized_username = $1)`,
		models.Normalize(username),
	).Scan(&taken)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to check username: %w", err)
	}
	if taken {
		reasons = append(reasons, duplicateUsername(username))
	}

	reasons = append(reasons, s.policy.Check(secret)...)
	if len(reasons) > 0 {
		return uuid.Nil, &repositories.AccountRejectedError{Reasons: reasons}
	}

	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to hash secret: %w", err)
	}

	account := models.NewAccount(username, email, securityStamp, hash)

	query := `
		INSERT INTO accounts (id, username, normalized_username, email, normalized_email,
			password_hash, security_stamp, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = executor.ExecContext(ctx, query,
		account.ID,
		account.Username,
		account.NormalizedUsername,
		account.Email,
		account.NormalizedEmail,
		account.PasswordHash,
		account.SecurityStamp,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		// A concurrent registration won the race past the EXISTS check
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return uuid.Nil, &repositories.AccountRejectedError{Reasons: []string{duplicateUsername(username)}}
		}
		return uuid.Nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Debug("account created", zap.String("id", account.ID.String()), zap.String("username", account.Username))
	return account.ID, nil
}

// AssignRole adds the account to the named role; assigning an existing membership is a no-op
func (s *CredentialStore) AssignRole(ctx context.Context, accountID uuid.UUID, roleName string) error {
	executor := GetExecutor(ctx, s.db)

	var roleID string
	err := executor.QueryRowContext(ctx,
		`SELECT id FROM roles WHERE normalized_name = $1`,
		models.Normalize(roleName),
	).Scan(&roleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", repositories.ErrRoleNotFound, roleName)
		}
		return fmt.Errorf("failed to get role: %w", err)
	}

	_, err = executor.ExecContext(ctx,
		`INSERT INTO account_roles (account_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		accountID, roleID,
	)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	s.logger.Debug("role assigned", zap.String("account_id", accountID.String()), zap.String("role", roleName))
	return nil
}

// FindAccountByUsername retrieves an account by normalized username
func (s *CredentialStore) FindAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `
		SELECT id, username, normalized_username, email, normalized_email,
			password_hash, security_stamp, created_at, updated_at
		FROM accounts
		WHERE normalized_username = $1
	`

	executor := GetExecutor(ctx, s.db)
	account := &models.Account{}

	err := executor.QueryRowContext(ctx, query, models.Normalize(username)).Scan(
		&account.ID,
		&account.Username,
		&account.NormalizedUsername,
		&account.Email,
		&account.NormalizedEmail,
		&account.PasswordHash,
		&account.SecurityStamp,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	account.RoleNames, err = s.queryNames(ctx, accountRolesQuery, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}

	return account, nil
}

// RolesFor returns the account's role names ordered by name
func (s *CredentialStore) RolesFor(ctx context.Context, account *models.Account) ([]string, error) {
	if account == nil {
		return nil, repositories.ErrAccountNotFound
	}

	roles, err := s.queryNames(ctx, accountRolesQuery, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	return roles, nil
}

// VerifySecret compares secret with the account's bcrypt hash
func (s *CredentialStore) VerifySecret(ctx context.Context, account *models.Account, secret string) (bool, error) {
	if account == nil || account.PasswordHash == "" {
		return false, nil
	}

	err := s.hasher.Verify(secret, account.PasswordHash)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, security.ErrPasswordMismatch):
		return false, nil
	default:
		return false, fmt.Errorf("failed to verify secret: %w", err)
	}
}

// ListRoles returns the role catalog ordered by name
func (s *CredentialStore) ListRoles(ctx context.Context) ([]string, error) {
	roles, err := s.queryNames(ctx, `SELECT name FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

// Ping checks that the database answers both a ping and a query
func (s *CredentialStore) Ping(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

func (s *CredentialStore) queryNames(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	executor := GetExecutor(ctx, s.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return names, nil
}

func duplicateUsername(username string) string {
	return fmt.Sprintf("Username '%s' is already taken.", username)
}
