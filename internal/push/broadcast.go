package push

import (
	"context"
	"fmt"
	"sync"

	"gitlab.com/yelinaung/expense-share/internal/logger"
	"gitlab.com/yelinaung/expense-share/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "gitlab.com/yelinaung/expense-share/internal/push"

// Sender delivers one message. Implemented by ExpoClient.
type Sender interface {
	Send(ctx context.Context, msg Message) (Ticket, error)
}

// TokenLister returns every registered device token. Implemented by gateway backends.
type TokenLister interface {
	ListTokens(ctx context.Context) ([]string, error)
}

// Broadcaster fans a new-expense notification out to every registered device.
type Broadcaster struct {
	tokens   TokenLister
	sender   Sender
	people   models.Roster
	currency string

	wg    sync.WaitGroup
	sends metric.Int64Counter
}

// NewBroadcaster creates a Broadcaster. Amounts in message bodies use currency.
func NewBroadcaster(tokens TokenLister, sender Sender, people models.Roster, currency string) *Broadcaster {
	b := &Broadcaster{
		tokens:   tokens,
		sender:   sender,
		people:   people,
		currency: currency,
	}

	counter, err := otel.Meter(meterName).Int64Counter(
		"push.sends",
		metric.WithDescription("Push notifications attempted, by outcome"),
	)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to create push send counter")
	}
	b.sends = counter
	return b
}

// NewExpenseMessage builds the notification announcing exp to token.
func NewExpenseMessage(token string, exp models.Expense, people models.Roster, currency string) Message {
	payer := people.Label(exp.Payer)
	if payer == "" {
		payer = "Someone"
	}
	return Message{
		To:    token,
		Sound: "default",
		Title: "New expense: " + exp.Name,
		Body:  fmt.Sprintf("%s paid %s", payer, models.FormatAmount(exp.Amount, currency)),
		Data:  map[string]any{"expenseId": exp.ID},
		Android: &AndroidOptions{
			Priority:   "high",
			Visibility: "public",
		},
	}
}

// Broadcast returns immediately. In the background it lists tokens and sends one
// message per token, each on its own goroutine. Failures are logged and counted.
func (b *Broadcaster) Broadcast(ctx context.Context, exp models.Expense) {
	ctx = context.WithoutCancel(ctx)
	exp = exp.Clone()

	b.wg.Go(func() {
		tokens, err := b.tokens.ListTokens(ctx)
		if err != nil {
			logger.Log.Error().Err(err).Str("expense_id", exp.ID).Msg("Failed to list push tokens for broadcast")
			return
		}

		logger.Log.Debug().Str("expense_id", exp.ID).Int("tokens", len(tokens)).Msg("Broadcasting new expense")
		for _, token := range tokens {
			b.wg.Go(func() {
				b.send(ctx, token, exp)
			})
		}
	})
}

func (b *Broadcaster) send(ctx context.Context, token string, exp models.Expense) {
	msg := NewExpenseMessage(token, exp, b.people, b.currency)
	ticket, err := b.sender.Send(ctx, msg)
	if err != nil {
		b.count(ctx, "error")
		logger.Log.Warn().
			Err(err).
			Str("token_hash", logger.HashToken(token)).
			Str("expense_id", exp.ID).
			Msg("Failed to send push notification")
		return
	}

	b.count(ctx, "ok")
	logger.Log.Debug().
		Str("token_hash", logger.HashToken(token)).
		Str("ticket_id", ticket.ID).
		Msg("Push notification sent")
}

func (b *Broadcaster) count(ctx context.Context, outcome string) {
	if b.sends == nil {
		return
	}
	b.sends.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Wait blocks until every in-flight broadcast has finished.
func (b *Broadcaster) Wait() {
	b.wg.Wait()
}
