package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/expense-share/internal/gateway"
	"gitlab.com/yelinaung/expense-share/internal/gateway/gatewaytest"
	"gitlab.com/yelinaung/expense-share/internal/models"
)

func TestContract(t *testing.T) {
	gatewaytest.RunContract(t, func(t *testing.T) gateway.Gateway {
		t.Helper()
		return New()
	})
}

func TestStore_Deterministic(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	seq := 0
	s := New(
		WithClock(func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Minute)
		}),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("exp-%d", seq)
		}),
	)
	ctx := context.Background()

	first, err := s.Create(ctx, models.ExpenseDraft{Name: "a", Payer: "Nam", Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	require.Equal(t, "exp-1", first.ID)
	require.Equal(t, base.Add(time.Minute), first.DateCreated)
	require.NotNil(t, first.SettledBy)

	second, err := s.Create(ctx, models.ExpenseDraft{Name: "b", Payer: "Tân", Amount: decimal.NewFromInt(2)})
	require.NoError(t, err)
	require.Equal(t, "exp-2", second.ID)

	t.Run("subscription delivers insertion order", func(t *testing.T) {
		var got []models.Expense
		unsubscribe, err := s.Subscribe(ctx, func(expenses []models.Expense) { got = expenses })
		require.NoError(t, err)
		defer unsubscribe()

		require.Len(t, got, 2)
		require.Equal(t, "exp-1", got[0].ID)
		require.Equal(t, "exp-2", got[1].ID)
	})
}

func TestStore_FailNext(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	boom := errors.New("backend unavailable")

	s.FailNext(OpCreate, boom)
	_, err := s.Create(ctx, models.ExpenseDraft{Name: "x", Payer: "Nam", Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, boom)

	var se *gateway.StoreError
	require.ErrorAs(t, err, &se)
	require.Equal(t, OpCreate, se.Op)

	_, err = s.Create(ctx, models.ExpenseDraft{Name: "x", Payer: "Nam", Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	require.Equal(t, 2, s.Calls(OpCreate))
}

func TestStore_SubscribersTracked(t *testing.T) {
	t.Parallel()

	s := New()
	unsubscribe, err := s.Subscribe(context.Background(), func([]models.Expense) {})
	require.NoError(t, err)
	require.Equal(t, 1, s.Subscribers())

	unsubscribe()
	unsubscribe()
	require.Equal(t, 0, s.Subscribers())
}

func TestStore_ReturnedExpensesAreCopies(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	exp, err := s.Create(ctx, models.ExpenseDraft{
		Name: "x", Payer: "Nam", Amount: decimal.NewFromInt(1), SettledBy: []string{"Tân"},
	})
	require.NoError(t, err)

	exp.SettledBy[0] = "mutated"

	listed, err := s.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Tân"}, listed[0].SettledBy)
}
