package gateway

import (
	"context"

	"gitlab.com/yelinaung/expense-share/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "gitlab.com/yelinaung/expense-share/internal/gateway"

// traced decorates a Gateway with one span per call.
type traced struct {
	next    Gateway
	backend string
	tracer  trace.Tracer
}

// WithTracing wraps g so every call is recorded as a span tagged with the backend name.
func WithTracing(g Gateway, backend string) Gateway {
	return &traced{
		next:    g,
		backend: backend,
		tracer:  otel.Tracer(tracerName),
	}
}

func (t *traced) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("store.backend", t.backend))
	return t.tracer.Start(ctx, "gateway."+op, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t *traced) Create(ctx context.Context, draft models.ExpenseDraft) (models.Expense, error) {
	ctx, span := t.start(ctx, "Create")
	exp, err := t.next.Create(ctx, draft)
	if err == nil {
		span.SetAttributes(attribute.String("expense.id", exp.ID))
	}
	finish(span, err)
	return exp, err
}

func (t *traced) Update(ctx context.Context, id string, patch models.ExpensePatch) error {
	ctx, span := t.start(ctx, "Update", attribute.String("expense.id", id))
	err := t.next.Update(ctx, id, patch)
	finish(span, err)
	return err
}

func (t *traced) Delete(ctx context.Context, id string) error {
	ctx, span := t.start(ctx, "Delete", attribute.String("expense.id", id))
	err := t.next.Delete(ctx, id)
	finish(span, err)
	return err
}

func (t *traced) List(ctx context.Context) ([]models.Expense, error) {
	ctx, span := t.start(ctx, "List")
	expenses, err := t.next.List(ctx)
	span.SetAttributes(attribute.Int("expense.count", len(expenses)))
	finish(span, err)
	return expenses, err
}

func (t *traced) Subscribe(ctx context.Context, onChange ChangeFunc) (func(), error) {
	// The listener outlives the span, so it keeps the caller's context.
	_, span := t.start(ctx, "Subscribe")
	unsubscribe, err := t.next.Subscribe(ctx, onChange)
	finish(span, err)
	return unsubscribe, err
}

func (t *traced) SaveToken(ctx context.Context, token string) error {
	ctx, span := t.start(ctx, "SaveToken")
	err := t.next.SaveToken(ctx, token)
	finish(span, err)
	return err
}

func (t *traced) ListTokens(ctx context.Context) ([]string, error) {
	ctx, span := t.start(ctx, "ListTokens")
	tokens, err := t.next.ListTokens(ctx)
	span.SetAttributes(attribute.Int("token.count", len(tokens)))
	finish(span, err)
	return tokens, err
}
