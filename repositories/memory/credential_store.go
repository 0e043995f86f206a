// Package memory provides an in-process credential store for tests and local
// development. Data does not survive a restart.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/upb/portal-auth/internal/security"
	"github.com/upb/portal-auth/models"
	"github.com/upb/portal-auth/repositories"
	"go.uber.org/zap"
)

// CredentialStore implements repositories.CredentialStore with maps guarded by a mutex
type CredentialStore struct {
	mu          sync.RWMutex
	accounts    map[string]*models.Account // keyed by normalized username
	byID        map[uuid.UUID]*models.Account
	roles       map[string]string // normalized name -> display name
	memberships map[uuid.UUID]map[string]struct{}

	hasher security.Hasher
	policy *security.PasswordPolicy
	logger *zap.Logger
}

// NewCredentialStore creates a store seeded with models.DefaultRoles
func NewCredentialStore(hasher security.Hasher, policy *security.PasswordPolicy, logger *zap.Logger) *CredentialStore {
	s := &CredentialStore{
		accounts:    make(map[string]*models.Account),
		byID:        make(map[uuid.UUID]*models.Account),
		roles:       make(map[string]string),
		memberships: make(map[uuid.UUID]map[string]struct{}),
		hasher:      hasher,
		policy:      policy,
		logger:      logger,
	}
	for _, role := range models.DefaultRoles {
		s.roles[models.Normalize(role)] = role
	}
	return s
}

// CreateAccount validates the secret and stores the account under its normalized username
func (s *CredentialStore) CreateAccount(ctx context.Context, username, email, securityStamp, secret string) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}

	reasons := s.policy.Check(secret)

	// Hash outside the lock; bcrypt is slow on purpose
	var hash string
	if len(reasons) == 0 {
		h, err := s.hasher.Hash(secret)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to hash secret: %w", err)
		}
		hash = h
	}

	account := models.NewAccount(username, email, securityStamp, hash)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.accounts[account.NormalizedUsername]; taken {
		reasons = append([]string{fmt.Sprintf("Username '%s' is already taken.", username)}, reasons...)
	}
	if len(reasons) > 0 {
		return uuid.Nil, &repositories.AccountRejectedError{Reasons: reasons}
	}

	s.accounts[account.NormalizedUsername] = account
	s.byID[account.ID] = account
	recordUndo(ctx, func() {
		delete(s.accounts, account.NormalizedUsername)
		delete(s.byID, account.ID)
		delete(s.memberships, account.ID)
	})

	s.logger.Debug("account created", zap.String("id", account.ID.String()), zap.String("username", account.Username))
	return account.ID, nil
}

// AssignRole adds the account to the named role
func (s *CredentialStore) AssignRole(ctx context.Context, accountID uuid.UUID, roleName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.Normalize(roleName)
	if _, ok := s.roles[key]; !ok {
		return fmt.Errorf("%w: %s", repositories.ErrRoleNotFound, roleName)
	}
	if _, ok := s.byID[accountID]; !ok {
		return fmt.Errorf("%w: %s", repositories.ErrAccountNotFound, accountID)
	}

	set, ok := s.memberships[accountID]
	if !ok {
		set = make(map[string]struct{})
		s.memberships[accountID] = set
	}
	if _, exists := set[key]; exists {
		return nil
	}
	set[key] = struct{}{}
	recordUndo(ctx, func() {
		if set, ok := s.memberships[accountID]; ok {
			delete(set, key)
		}
	})

	s.logger.Debug("role assigned", zap.String("account_id", accountID.String()), zap.String("role", roleName))
	return nil
}

// FindAccountByUsername returns a copy of the stored account
func (s *CredentialStore) FindAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[models.Normalize(username)]
	if !ok {
		return nil, repositories.ErrAccountNotFound
	}
	found := *account
	found.RoleNames = s.roleNamesLocked(account.ID)
	return &found, nil
}

// RolesFor returns the account's role names ordered by name
func (s *CredentialStore) RolesFor(ctx context.Context, account *models.Account) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if account == nil {
		return nil, repositories.ErrAccountNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roleNamesLocked(account.ID), nil
}

// VerifySecret compares secret with the account's hash
func (s *CredentialStore) VerifySecret(ctx context.Context, account *models.Account, secret string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
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
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.roles))
	for _, name := range s.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Ping always succeeds unless ctx is done
func (s *CredentialStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// AccountCount returns the number of stored accounts
func (s *CredentialStore) AccountCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

func (s *CredentialStore) roleNamesLocked(accountID uuid.UUID) []string {
	names := []string{}
	for key := range s.memberships[accountID] {
		names = append(names, s.roles[key])
	}
	sort.Strings(names)
	return names
}
