package repositories

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/upb/portal-auth/models"
)

var (
	// ErrAccountNotFound is returned when no account matches a lookup
	ErrAccountNotFound = errors.New("account not found")

	// ErrRoleNotFound is returned when assigning a role that was never seeded
	ErrRoleNotFound = errors.New("role not found")
)

// AccountRejectedError is returned by CreateAccount when the store refuses the
// account (duplicate identity, password policy). Reasons are human readable.
type AccountRejectedError struct {
	Reasons []string
}

// Error implements the error interface
func (e *AccountRejectedError) Error() string {
	return "account rejected: " + strings.Join(e.Reasons, "; ")
}

// TransactionManager manages store transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a store transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context; store calls made with it join the transaction
	Context() context.Context
}

// CredentialStore owns accounts, hashed secrets and role memberships
type CredentialStore interface {
	// CreateAccount hashes secret and persists a new account.
	// Returns *AccountRejectedError when the username is taken or the secret violates policy.
	CreateAccount(ctx context.Context, username, email, securityStamp, secret string) (uuid.UUID, error)

	// AssignRole adds the account to the named role
	AssignRole(ctx context.Context, accountID uuid.UUID, roleName string) error

	// FindAccountByUsername looks an account up by normalized username.
	// Returns ErrAccountNotFound when absent.
	FindAccountByUsername(ctx context.Context, username string) (*models.Account, error)

	// RolesFor returns the account's role names ordered by name; may be empty
	RolesFor(ctx context.Context, account *models.Account) ([]string, error)

	// VerifySecret reports whether secret matches the account's stored hash
	VerifySecret(ctx context.Context, account *models.Account, secret string) (bool, error)

	// ListRoles returns every role name in the catalog ordered by name
	ListRoles(ctx context.Context) ([]string, error)

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error
}
