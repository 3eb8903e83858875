// Package gateway defines the contract between the expense screens and the remote store.
// Backends live in sub-packages (firestoredb, memory) and in the repository package (Postgres).
package gateway

import (
	"context"
	"errors"
	"fmt"

	"gitlab.com/yelinaung/expense-share/internal/models"
)

// ErrNotFound is returned by Update when no expense has the given id.
var ErrNotFound = errors.New("expense not found")

// StoreError wraps any failure reported by a backend.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Wrap returns nil for a nil err and a *StoreError otherwise.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// ChangeFunc receives the full current set of expenses.
type ChangeFunc func(expenses []models.Expense)

// ExpenseStore is the expense collection.
type ExpenseStore interface {
	// Create inserts a new expense. The store assigns the id and the creation date.
	Create(ctx context.Context, draft models.ExpenseDraft) (models.Expense, error)

	// Update merges the patch into an existing expense.
	// Returns an error wrapping ErrNotFound if the id does not exist.
	Update(ctx context.Context, id string, patch models.ExpensePatch) error

	// Delete removes an expense.
	Delete(ctx context.Context, id string) error

	// List returns every expense, newest first.
	List(ctx context.Context) ([]models.Expense, error)

	// Subscribe calls onChange with the current set, then again after every change.
	// Deliveries are in store order. The returned func stops deliveries and releases
	// the underlying listener; it may be called more than once.
	Subscribe(ctx context.Context, onChange ChangeFunc) (unsubscribe func(), err error)
}

// TokenStore is the side collection of device push tokens.
type TokenStore interface {
	// SaveToken stores a token unless an identical one already exists.
	SaveToken(ctx context.Context, token string) error

	// ListTokens returns every stored non-empty token.
	ListTokens(ctx context.Context) ([]string, error)
}

// Gateway is the full store surface used by the application.
type Gateway interface {
	ExpenseStore
	TokenStore
}
