package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/expense-share/internal/database"
	"gitlab.com/yelinaung/expense-share/internal/gateway"
	"gitlab.com/yelinaung/expense-share/internal/models"
)

func setupExpenseTest(t *testing.T) (*ExpenseRepository, context.Context) {
	t.Helper()
	return NewExpenseRepository(database.TestTx(t)), context.Background()
}

func TestExpenseRepository_Create(t *testing.T) {
	repo, ctx := setupExpenseTest(t)

	t.Run("creates expense with settled list", func(t *testing.T) {
		exp, err := repo.Create(ctx, models.ExpenseDraft{
			Name:      "Lunch",
			Payer:     "Nam",
			Amount:    decimal.NewFromInt(150000),
			SettledBy: []string{"Tân", "Định"},
		})
		require.NoError(t, err)
		require.NotEmpty(t, exp.ID)
		require.Equal(t, "Lunch", exp.Name)
		require.Equal(t, "Nam", exp.Payer)
		require.True(t, decimal.NewFromInt(150000).Equal(exp.Amount))
		require.Equal(t, []string{"Tân", "Định"}, exp.SettledBy)
		require.WithinDuration(t, time.Now(), exp.DateCreated, time.Minute)
	})

	t.Run("nil settled list is stored empty", func(t *testing.T) {
		exp, err := repo.Create(ctx, models.ExpenseDraft{
			Name:   "Taxi",
			Amount: decimal.NewFromInt(50000),
		})
		require.NoError(t, err)
		require.NotNil(t, exp.SettledBy)
		require.Empty(t, exp.SettledBy)
		require.Empty(t, exp.Payer)
	})

	t.Run("keeps two decimal places", func(t *testing.T) {
		exp, err := repo.Create(ctx, models.ExpenseDraft{
			Name:   "Coffee",
			Payer:  "Tân",
			Amount: decimal.RequireFromString("12.34"),
		})
		require.NoError(t, err)
		require.Equal(t, "12.34", exp.Amount.StringFixed(2))
	})
}

func TestExpenseRepository_Update(t *testing.T) {
	repo, ctx := setupExpenseTest(t)

	exp, err := repo.Create(ctx, models.ExpenseDraft{
		Name:   "Dinner",
		Payer:  "Nam",
		Amount: decimal.NewFromInt(300000),
	})
	require.NoError(t, err)

	t.Run("updates only patched fields", func(t *testing.T) {
		name := "Team dinner"
		settled := []string{"Tuyển"}
		err := repo.Update(ctx, exp.ID, models.ExpensePatch{Name: &name, SettledBy: &settled})
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, exp.ID)
		require.NoError(t, err)
		require.Equal(t, "Team dinner", got.Name)
		require.Equal(t, "Nam", got.Payer)
		require.True(t, exp.Amount.Equal(got.Amount))
		require.Equal(t, []string{"Tuyển"}, got.SettledBy)
	})

	t.Run("amount zero is stored", func(t *testing.T) {
		zero := decimal.Zero
		require.NoError(t, repo.Update(ctx, exp.ID, models.ExpensePatch{Amount: &zero}))

		got, err := repo.GetByID(ctx, exp.ID)
		require.NoError(t, err)
		require.True(t, got.Amount.IsZero())
	})

	t.Run("empty patch on existing row succeeds", func(t *testing.T) {
		require.NoError(t, repo.Update(ctx, exp.ID, models.ExpensePatch{}))
	})

	t.Run("missing row is not found", func(t *testing.T) {
		name := "ghost"
		err := repo.Update(ctx, "missing", models.ExpensePatch{Name: &name})
		require.ErrorIs(t, err, gateway.ErrNotFound)

		err = repo.Update(ctx, "missing", models.ExpensePatch{})
		require.ErrorIs(t, err, gateway.ErrNotFound)
	})
}

func TestExpenseRepository_GetByID_NotFound(t *testing.T) {
	repo, ctx := setupExpenseTest(t)

	_, err := repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestExpenseRepository_Delete(t *testing.T) {
	repo, ctx := setupExpenseTest(t)

	exp, err := repo.Create(ctx, models.ExpenseDraft{Name: "Snacks", Amount: decimal.NewFromInt(20000)})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, exp.ID))
	require.NoError(t, repo.Delete(ctx, exp.ID))

	_, err = repo.GetByID(ctx, exp.ID)
	require.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestExpenseRepository_ListOrdering(t *testing.T) {
	repo, ctx := setupExpenseTest(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var created []string
	for i, name := range []string{"first", "second", "third"} {
		repo.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		exp, err := repo.Create(ctx, models.ExpenseDraft{Name: name, Amount: decimal.NewFromInt(1)})
		require.NoError(t, err)
		created = append(created, exp.ID)
	}

	newest, err := repo.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{created[2], created[1], created[0]}, idsOf(newest))

	oldest, err := repo.ListInsertionOrder(ctx)
	require.NoError(t, err)
	require.Equal(t, created, idsOf(oldest))
}

func idsOf(expenses []models.Expense) []string {
	out := make([]string, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, e.ID)
	}
	return out
}
