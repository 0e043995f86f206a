package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/upb/portal-auth/repositories"
)

// ErrTxDone is returned when committing or rolling back a finished transaction
var ErrTxDone = errors.New("transaction has already been committed or rolled back")

type transactionContextKey struct{}

// TransactionManager provides all-or-nothing writes for the memory store. Writes
// are visible to other callers before commit; Rollback replays an undo log.
type TransactionManager struct {
	store *CredentialStore
}

// NewTransactionManager creates a transaction manager bound to store
func NewTransactionManager(store *CredentialStore) repositories.TransactionManager {
	return &TransactionManager{store: store}
}

// Begin starts a transaction. Store writes made with its Context are undone on Rollback.
func (tm *TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx := &Transaction{store: tm.store}
	tx.ctx = context.WithValue(ctx, transactionContextKey{}, tx)
	return tx, nil
}

// InTransaction executes fn and commits, or rolls back when fn fails
func (tm *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx, err := tm.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx.Context(), tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Transaction collects undo operations for store writes
type Transaction struct {
	store *CredentialStore
	ctx   context.Context

	mu   sync.Mutex
	undo []func()
	done bool
}

// Commit discards the undo log
func (t *Transaction) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.undo = nil
	return nil
}

// Rollback replays the undo log in reverse order. Rolling back a finished transaction is a no-op.
func (t *Transaction) Rollback() error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return nil
	}
	t.done = true
	undo := t.undo
	t.undo = nil
	t.mu.Unlock()

	// recordUndo takes the store lock before t.mu, so t.mu is released first
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
	return nil
}

// Context returns the transaction context
func (t *Transaction) Context() context.Context {
	return t.ctx
}

// recordUndo registers fn with the transaction carried by ctx, if any.
// Callers hold the store lock; fn runs later under the same lock.
func recordUndo(ctx context.Context, fn func()) {
	tx, ok := ctx.Value(transactionContextKey{}).(*Transaction)
	if !ok {
		return
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if !tx.done {
		tx.undo = append(tx.undo, fn)
	}
}
