// Package gatewaytest holds the behavioral contract every gateway backend must satisfy.
package gatewaytest

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/expense-share/internal/gateway"
	"gitlab.com/yelinaung/expense-share/internal/models"
)

// deliveryWait bounds how long the contract waits for an asynchronous subscription delivery.
const deliveryWait = 5 * time.Second

// Factory returns an empty gateway for one subtest.
type Factory func(t *testing.T) gateway.Gateway

// recorder collects subscription deliveries.
type recorder struct {
	mu         sync.Mutex
	deliveries [][]models.Expense
}

func (r *recorder) onChange(expenses []models.Expense) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, expenses)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deliveries)
}

func (r *recorder) first() []models.Expense {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.deliveries) == 0 {
		return nil
	}
	return r.deliveries[0]
}

func (r *recorder) last() []models.Expense {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.deliveries) == 0 {
		return nil
	}
	return r.deliveries[len(r.deliveries)-1]
}

func draft(name string, amount int64) models.ExpenseDraft {
	return models.ExpenseDraft{
		Name:      name,
		Payer:     "Nam",
		Amount:    decimal.NewFromInt(amount),
		SettledBy: []string{},
	}
}

func ids(expenses []models.Expense) []string {
	out := make([]string, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, e.ID)
	}
	return out
}

// RunContract runs the gateway contract against backends produced by newGateway.
func RunContract(t *testing.T, newGateway Factory) {
	t.Helper()

	t.Run("create assigns id and date", func(t *testing.T) {
		g := newGateway(t)
		ctx := context.Background()

		before := time.Now().Add(-time.Minute)
		exp, err := g.Create(ctx, models.ExpenseDraft{
			Name:      "Lunch",
			Payer:     "Nam",
			Amount:    decimal.NewFromInt(150000),
			SettledBy: []string{"Tân"},
		})
		require.NoError(t, err)
		require.NotEmpty(t, exp.ID)
		require.Equal(t, "Lunch", exp.Name)
		require.Equal(t, "Nam", exp.Payer)
		require.True(t, decimal.NewFromInt(150000).Equal(exp.Amount))
		require.Equal(t, []string{"Tân"}, exp.SettledBy)
		require.True(t, exp.DateCreated.After(before))

		listed, err := g.List(ctx)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		require.Equal(t, exp.ID, listed[0].ID)
		require.True(t, exp.Amount.Equal(listed[0].Amount))
	})

	t.Run("list is newest first", func(t *testing.T) {
		g := newGateway(t)
		ctx := context.Background()

		var created []string
		for _, name := range []string{"first", "second", "third"} {
			exp, err := g.Create(ctx, draft(name, 1000))
			require.NoError(t, err)
			created = append(created, exp.ID)
			time.Sleep(10 * time.Millisecond)
		}

		listed, err := g.List(ctx)
		require.NoError(t, err)
		slices.Reverse(created)
		require.Equal(t, created, ids(listed))
	})

	t.Run("update merges patch", func(t *testing.T) {
		g := newGateway(t)
		ctx := context.Background()

		exp, err := g.Create(ctx, draft("Taxi", 50000))
		require.NoError(t, err)

		amount := decimal.NewFromInt(65000)
		settled := []string{"Nam", "Định"}
		err = g.Update(ctx, exp.ID, models.ExpensePatch{Amount: &amount, SettledBy: &settled})
		require.NoError(t, err)

		listed, err := g.List(ctx)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		require.Equal(t, "Taxi", listed[0].Name)
		require.True(t, amount.Equal(listed[0].Amount))
		require.ElementsMatch(t, settled, listed[0].SettledBy)
		require.WithinDuration(t, exp.DateCreated, listed[0].DateCreated, time.Millisecond)
	})

	t.Run("update of missing id is not found", func(t *testing.T) {
		g := newGateway(t)

		name := "ghost"
		err := g.Update(context.Background(), "does-not-exist", models.ExpensePatch{Name: &name})
		require.ErrorIs(t, err, gateway.ErrNotFound)

		var se *gateway.StoreError
		require.ErrorAs(t, err, &se)
	})

	t.Run("delete removes expense", func(t *testing.T) {
		g := newGateway(t)
		ctx := context.Background()

		keep, err := g.Create(ctx, draft("keep", 1))
		require.NoError(t, err)
		drop, err := g.Create(ctx, draft("drop", 2))
		require.NoError(t, err)

		require.NoError(t, g.Delete(ctx, drop.ID))

		listed, err := g.List(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{keep.ID}, ids(listed))
	})

	t.Run("subscribe delivers current set then changes", func(t *testing.T) {
		g := newGateway(t)
		ctx := context.Background()

		existing, err := g.Create(ctx, draft("existing", 10))
		require.NoError(t, err)

		rec := &recorder{}
		unsubscribe, err := g.Subscribe(ctx, rec.onChange)
		require.NoError(t, err)
		defer unsubscribe()

		require.Eventually(t, func() bool { return rec.count() >= 1 }, deliveryWait, 10*time.Millisecond)
		require.Equal(t, []string{existing.ID}, ids(rec.first()))

		added, err := g.Create(ctx, draft("added", 20))
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return slices.Contains(ids(rec.last()), added.ID)
		}, deliveryWait, 10*time.Millisecond)

		require.NoError(t, g.Delete(ctx, existing.ID))
		require.Eventually(t, func() bool {
			got := ids(rec.last())
			return len(got) == 1 && got[0] == added.ID
		}, deliveryWait, 10*time.Millisecond)
	})

	t.Run("subscribe returns after the current set is delivered", func(t *testing.T) {
		g := newGateway(t)
		ctx := context.Background()

		existing, err := g.Create(ctx, draft("existing", 10))
		require.NoError(t, err)

		rec := &recorder{}
		unsubscribe, err := g.Subscribe(ctx, rec.onChange)
		require.NoError(t, err)
		defer unsubscribe()

		require.GreaterOrEqual(t, rec.count(), 1)
		require.Equal(t, []string{existing.ID}, ids(rec.first()))
	})

	t.Run("unsubscribe stops deliveries", func(t *testing.T) {
		g := newGateway(t)
		ctx := context.Background()

		rec := &recorder{}
		unsubscribe, err := g.Subscribe(ctx, rec.onChange)
		require.NoError(t, err)
		require.Eventually(t, func() bool { return rec.count() >= 1 }, deliveryWait, 10*time.Millisecond)

		unsubscribe()
		unsubscribe()
		seen := rec.count()

		_, err = g.Create(ctx, draft("after", 1))
		require.NoError(t, err)
		time.Sleep(200 * time.Millisecond)

		require.Equal(t, seen, rec.count())
	})

	t.Run("save token is idempotent", func(t *testing.T) {
		g := newGateway(t)
		ctx := context.Background()

		require.NoError(t, g.SaveToken(ctx, "ExponentPushToken[tok-A]"))
		require.NoError(t, g.SaveToken(ctx, "ExponentPushToken[tok-A]"))
		require.NoError(t, g.SaveToken(ctx, "ExponentPushToken[tok-B]"))

		tokens, err := g.ListTokens(ctx)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"ExponentPushToken[tok-A]", "ExponentPushToken[tok-B]"}, tokens)
	})

	t.Run("concurrent saves of one token keep one row", func(t *testing.T) {
		g := newGateway(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		for range 8 {
			wg.Go(func() {
				_ = g.SaveToken(ctx, "ExponentPushToken[race]")
			})
		}
		wg.Wait()

		tokens, err := g.ListTokens(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"ExponentPushToken[race]"}, tokens)
	})
}
