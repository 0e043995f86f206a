package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/portal-auth/config"
	"github.com/upb/portal-auth/internal/security"
	"github.com/upb/portal-auth/models"
	"github.com/upb/portal-auth/repositories"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newTestStore() *CredentialStore {
	policy := security.NewPasswordPolicy(config.PasswordConfig{
		MinLength:              6,
		RequireDigit:           true,
		RequireLowercase:       true,
		RequireUppercase:       true,
		RequireNonAlphanumeric: true,
	})
	return NewCredentialStore(security.NewBcryptHasher(bcrypt.MinCost), policy, zap.NewNop())
}

func TestCreateAndFindAccount(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	id, err := store.CreateAccount(ctx, "a@x.com", "a@x.com", "stamp", "Secret123!")
	require.NoError(t, err)
	require.NoError(t, store.AssignRole(ctx, id, models.RoleUsers))

	account, err := store.FindAccountByUsername(ctx, "A@X.COM")
	require.NoError(t, err)
	assert.Equal(t, id, account.ID)
	assert.Equal(t, "a@x.com", account.Username)
	assert.NotEqual(t, "Secret123!", account.PasswordHash)
	assert.Equal(t, []string{models.RoleUsers}, account.RoleNames)

	ok, err := store.VerifySecret(ctx, account, "Secret123!")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.VerifySecret(ctx, account, "secret123!")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateAccount_Rejections(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	_, err := store.CreateAccount(ctx, "a@x.com", "a@x.com", "stamp", "Secret123!")
	require.NoError(t, err)

	t.Run("duplicate username differing only in case", func(t *testing.T) {
		_, err := store.CreateAccount(ctx, "A@x.com", "A@x.com", "stamp", "Secret123!")

		var rejected *repositories.AccountRejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, []string{"Username 'A@x.com' is already taken."}, rejected.Reasons)
	})

	t.Run("weak secret", func(t *testing.T) {
		_, err := store.CreateAccount(ctx, "b@x.com", "b@x.com", "stamp", "abc")

		var rejected *repositories.AccountRejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Contains(t, rejected.Reasons, "Passwords must be at least 6 characters.")
	})

	assert.Equal(t, 1, store.AccountCount())
}

func TestAssignRole(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	id, err := store.CreateAccount(ctx, "a@x.com", "a@x.com", "stamp", "Secret123!")
	require.NoError(t, err)

	assert.ErrorIs(t, store.AssignRole(ctx, id, "Ghosts"), repositories.ErrRoleNotFound)
	assert.ErrorIs(t, store.AssignRole(ctx, uuid.New(), models.RoleUsers), repositories.ErrAccountNotFound)

	require.NoError(t, store.AssignRole(ctx, id, "instructor"))
	require.NoError(t, store.AssignRole(ctx, id, models.RoleUsers))
	require.NoError(t, store.AssignRole(ctx, id, models.RoleUsers))

	roles, err := store.RolesFor(ctx, &models.Account{ID: id})
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleInstructor, models.RoleUsers}, roles)
}

func TestRolesFor_NoRoles(t *testing.T) {
	store := newTestStore()

	roles, err := store.RolesFor(context.Background(), &models.Account{ID: uuid.New()})
	require.NoError(t, err)
	assert.NotNil(t, roles)
	assert.Empty(t, roles)
}

func TestFindAccountByUsername_NotFound(t *testing.T) {
	store := newTestStore()

	_, err := store.FindAccountByUsername(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, repositories.ErrAccountNotFound)
}

func TestListRolesAndPing(t *testing.T) {
	store := newTestStore()

	roles, err := store.ListRoles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultRoles, roles)

	assert.NoError(t, store.Ping(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Ping(ctx), context.Canceled)
}

func TestCreateAccount_ConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		rejected int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CreateAccount(ctx, "race@x.com", "race@x.com", uuid.NewString(), "Secret123!")

			mu.Lock()
			defer mu.Unlock()
			var rej *repositories.AccountRejectedError
			switch {
			case err == nil:
				created++
			case errors.As(err, &rej):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, rejected)
	assert.Equal(t, 1, store.AccountCount())
}

func TestTransactionManager(t *testing.T) {
	ctx := context.Background()

	t.Run("rollback undoes account and membership", func(t *testing.T) {
		store := newTestStore()
		tm := NewTransactionManager(store)

		err := tm.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
			id, err := store.CreateAccount(ctx, "a@x.com", "a@x.com", "stamp", "Secret123!")
			if err != nil {
				return err
			}
			if err := store.AssignRole(ctx, id, models.RoleUsers); err != nil {
				return err
			}
			return store.AssignRole(ctx, id, "Ghosts")
		})
		assert.ErrorIs(t, err, repositories.ErrRoleNotFound)

		assert.Equal(t, 0, store.AccountCount())
		_, err = store.FindAccountByUsername(ctx, "a@x.com")
		assert.ErrorIs(t, err, repositories.ErrAccountNotFound)

		// The username is free again
		_, err = store.CreateAccount(ctx, "a@x.com", "a@x.com", "stamp", "Secret123!")
		assert.NoError(t, err)
	})

	t.Run("commit keeps writes", func(t *testing.T) {
		store := newTestStore()
		tm := NewTransactionManager(store)

		err := tm.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
			id, err := store.CreateAccount(ctx, "a@x.com", "a@x.com", "stamp", "Secret123!")
			if err != nil {
				return err
			}
			return store.AssignRole(ctx, id, models.RoleUsers)
		})
		require.NoError(t, err)

		account, err := store.FindAccountByUsername(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, []string{models.RoleUsers}, account.RoleNames)
	})

	t.Run("finished transaction", func(t *testing.T) {
		store := newTestStore()
		tm := NewTransactionManager(store)

		tx, err := tm.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		assert.ErrorIs(t, tx.Commit(), ErrTxDone)
		assert.NoError(t, tx.Rollback())
	})

	t.Run("writes outside the transaction context are not undone", func(t *testing.T) {
		store := newTestStore()
		tm := NewTransactionManager(store)

		tx, err := tm.Begin(ctx)
		require.NoError(t, err)
		for i := 0; i < 2; i++ {
			_, err := store.CreateAccount(ctx, fmt.Sprintf("u%d@x.com", i), "e", "stamp", "Secret123!")
			require.NoError(t, err)
		}
		require.NoError(t, tx.Rollback())
		assert.Equal(t, 2, store.AccountCount())
	})
}
