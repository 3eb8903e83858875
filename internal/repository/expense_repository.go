package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"gitlab.com/yelinaung/expense-share/internal/database"
	"gitlab.com/yelinaung/expense-share/internal/gateway"
	"gitlab.com/yelinaung/expense-share/internal/models"
)

const expenseColumns = `id, name, payer, amount, paided, date_created`

// ExpenseRepository handles expense database operations.
type ExpenseRepository struct {
	db  database.PGXDB
	now func() time.Time
}

// NewExpenseRepository creates a new ExpenseRepository.
func NewExpenseRepository(db database.PGXDB) *ExpenseRepository {
	return &ExpenseRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Create inserts a new expense and returns the stored row.
func (r *ExpenseRepository) Create(ctx context.Context, draft models.ExpenseDraft) (models.Expense, error) {
	settled := draft.SettledBy
	if settled == nil {
		settled = []string{}
	}

	var exp models.Expense
	err := r.db.QueryRow(ctx, `
		INSERT INTO expenses (name, payer, amount, paided, date_created)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+expenseColumns,
		draft.Name, draft.Payer, draft.Amount, settled, r.now(),
	).Scan(&exp.ID, &exp.Name, &exp.Payer, &exp.Amount, &exp.SettledBy, &exp.DateCreated)
	if err != nil {
		return models.Expense{}, fmt.Errorf("failed to create expense: %w", err)
	}
	return exp.Clone(), nil
}

// Update writes the fields set in patch. It returns gateway.ErrNotFound when no row has id.
func (r *ExpenseRepository) Update(ctx context.Context, id string, patch models.ExpensePatch) error {
	args := []any{id}
	var sets []string
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.Payer != nil {
		set("payer", *patch.Payer)
	}
	if patch.Amount != nil {
		set("amount", *patch.Amount)
	}
	if patch.SettledBy != nil {
		settled := *patch.SettledBy
		if settled == nil {
			settled = []string{}
		}
		set("paided", settled)
	}

	if len(sets) == 0 {
		var exists bool
		err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM expenses WHERE id = $1)`, id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check expense: %w", err)
		}
		if !exists {
			return fmt.Errorf("expense %s: %w", id, gateway.ErrNotFound)
		}
		return nil
	}

	tag, err := r.db.Exec(ctx, `UPDATE expenses SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("expense %s: %w", id, gateway.ErrNotFound)
	}
	return nil
}

// GetByID retrieves an expense by ID.
func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (models.Expense, error) {
	var exp models.Expense
	err := r.db.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id).
		Scan(&exp.ID, &exp.Name, &exp.Payer, &exp.Amount, &exp.SettledBy, &exp.DateCreated)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Expense{}, fmt.Errorf("expense %s: %w", id, gateway.ErrNotFound)
	}
	if err != nil {
		return models.Expense{}, fmt.Errorf("failed to get expense: %w", err)
	}
	return exp.Clone(), nil
}

// Delete removes an expense by ID. Deleting a missing row succeeds.
func (r *ExpenseRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return nil
}

// List returns every expense, newest first.
func (r *ExpenseRepository) List(ctx context.Context) ([]models.Expense, error) {
	return r.query(ctx, `SELECT `+expenseColumns+` FROM expenses ORDER BY date_created DESC, id DESC`)
}

// ListInsertionOrder returns every expense, oldest first. Subscriptions deliver this order.
func (r *ExpenseRepository) ListInsertionOrder(ctx context.Context) ([]models.Expense, error) {
	return r.query(ctx, `SELECT `+expenseColumns+` FROM expenses ORDER BY date_created ASC, id ASC`)
}

func (r *ExpenseRepository) query(ctx context.Context, sql string) ([]models.Expense, error) {
	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	return scanExpenses(rows)
}

func scanExpenses(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
},
) ([]models.Expense, error) {
	expenses := []models.Expense{}
	for rows.Next() {
		var exp models.Expense
		if err := rows.Scan(&exp.ID, &exp.Name, &exp.Payer, &exp.Amount, &exp.SettledBy, &exp.DateCreated); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, exp.Clone())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expenses: %w", err)
	}
	return expenses, nil
}
