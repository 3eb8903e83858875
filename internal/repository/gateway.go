// Package repository implements the expense gateway on PostgreSQL. Change
// notifications travel over LISTEN/NOTIFY on database.ExpensesChannel.
package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"gitlab.com/yelinaung/expense-share/internal/database"
	"gitlab.com/yelinaung/expense-share/internal/gateway"
	"gitlab.com/yelinaung/expense-share/internal/logger"
	"gitlab.com/yelinaung/expense-share/internal/models"
)

// Gateway adapts the repositories to gateway.Gateway.
type Gateway struct {
	expenses *ExpenseRepository
	tokens   *PushTokenRepository
	listener database.Acquirer
}

var _ gateway.Gateway = (*Gateway)(nil)

// NewGateway builds a gateway over pool.
func NewGateway(pool *pgxpool.Pool) *Gateway {
	return &Gateway{
		expenses: NewExpenseRepository(pool),
		tokens:   NewPushTokenRepository(pool),
		listener: pool,
	}
}

// Create inserts a new expense.
func (g *Gateway) Create(ctx context.Context, draft models.ExpenseDraft) (models.Expense, error) {
	exp, err := g.expenses.Create(ctx, draft)
	if err != nil {
		return models.Expense{}, gateway.Wrap("create", err)
	}
	return exp, nil
}

// Update merges patch into the stored expense.
func (g *Gateway) Update(ctx context.Context, id string, patch models.ExpensePatch) error {
	return gateway.Wrap("update", g.expenses.Update(ctx, id, patch))
}

// Delete removes the expense.
func (g *Gateway) Delete(ctx context.Context, id string) error {
	return gateway.Wrap("delete", g.expenses.Delete(ctx, id))
}

// List returns every expense, newest first.
func (g *Gateway) List(ctx context.Context) ([]models.Expense, error) {
	expenses, err := g.expenses.List(ctx)
	if err != nil {
		return nil, gateway.Wrap("list", err)
	}
	return expenses, nil
}

// Subscribe takes a connection out of the pool, LISTENs on it, delivers the current
// rows and re-reads the table after every notification. The listener outlives ctx;
// it stops when unsubscribe is called.
func (g *Gateway) Subscribe(ctx context.Context, onChange gateway.ChangeFunc) (func(), error) {
	pooled, err := g.listener.Acquire(ctx)
	if err != nil {
		return nil, gateway.Wrap("subscribe", fmt.Errorf("failed to acquire listener connection: %w", err))
	}
	conn := pooled.Hijack()

	if _, err := conn.Exec(ctx, "LISTEN "+database.ExpensesChannel); err != nil {
		_ = conn.Close(context.Background())
		return nil, gateway.Wrap("subscribe", fmt.Errorf("failed to listen: %w", err))
	}

	initial, err := g.expenses.ListInsertionOrder(ctx)
	if err != nil {
		_ = conn.Close(context.Background())
		return nil, gateway.Wrap("subscribe", fmt.Errorf("failed to load expenses: %w", err))
	}
	onChange(initial)

	listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer func() { _ = conn.Close(context.Background()) }()

		for {
			if _, err := conn.WaitForNotification(listenCtx); err != nil {
				if listenCtx.Err() == nil {
					logger.Log.Error().Err(err).Msg("Expense listener stopped")
				}
				return
			}
			g.deliver(listenCtx, onChange)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (g *Gateway) deliver(ctx context.Context, onChange gateway.ChangeFunc) {
	expenses, err := g.expenses.ListInsertionOrder(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Log.Error().Err(err).Msg("Failed to reload expenses after notification")
		}
		return
	}
	if ctx.Err() != nil {
		return
	}
	onChange(expenses)
}

// SaveToken stores token once.
func (g *Gateway) SaveToken(ctx context.Context, token string) error {
	created, err := g.tokens.Save(ctx, token)
	if err != nil {
		return gateway.Wrap("save_token", err)
	}
	if created {
		logger.Log.Info().Str("token_hash", logger.HashToken(token)).Msg("Token saved to database")
	} else {
		logger.Log.Debug().Str("token_hash", logger.HashToken(token)).Msg("Token already exists in the database")
	}
	return nil
}

// ListTokens returns every stored token.
func (g *Gateway) ListTokens(ctx context.Context) ([]string, error) {
	tokens, err := g.tokens.List(ctx)
	if err != nil {
		return nil, gateway.Wrap("list_tokens", err)
	}
	return tokens, nil
}
