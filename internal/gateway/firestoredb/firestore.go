// Package firestoredb implements the gateway on Cloud Firestore, the document store the
// mobile clients share. Realtime updates come from Firestore query snapshots.
package firestoredb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/expense-share/internal/gateway"
	"gitlab.com/yelinaung/expense-share/internal/logger"
	"gitlab.com/yelinaung/expense-share/internal/models"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Collection and field names shared with the mobile clients.
const (
	ExpensesCollection = "expenses"
	TokensCollection   = "expoPushTokens"
	tokenField         = "expoPushToken"
)

type expenseDoc struct {
	Name        string    `firestore:"name"`
	Payer       string    `firestore:"payer"`
	Amount      float64   `firestore:"amount"`
	Paided      []string  `firestore:"paided"`
	DateCreated time.Time `firestore:"dateCreated"`
}

type tokenDoc struct {
	ExpoPushToken string `firestore:"expoPushToken"`
}

// Store is a Firestore-backed gateway.
type Store struct {
	client *firestore.Client
	now    func() time.Time
}

var _ gateway.Gateway = (*Store)(nil)

// New connects to Firestore. FIRESTORE_EMULATOR_HOST is honored by the client library.
func New(ctx context.Context, projectID string) (*Store, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return NewFromClient(client), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *firestore.Client) *Store {
	return &Store{
		client: client,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) expenses() *firestore.CollectionRef {
	return s.client.Collection(ExpensesCollection)
}

func (s *Store) tokens() *firestore.CollectionRef {
	return s.client.Collection(TokensCollection)
}

func toExpense(doc *firestore.DocumentSnapshot) (models.Expense, error) {
	var d expenseDoc
	if err := doc.DataTo(&d); err != nil {
		return models.Expense{}, fmt.Errorf("failed to decode expense %s: %w", doc.Ref.ID, err)
	}
	exp := models.Expense{
		ID:          doc.Ref.ID,
		Name:        d.Name,
		Payer:       d.Payer,
		Amount:      decimal.NewFromFloat(d.Amount),
		SettledBy:   d.Paided,
		DateCreated: d.DateCreated,
	}
	return exp.Clone(), nil
}

// toExpenses decodes docs, skipping documents other clients wrote in a shape this
// store cannot read.
func toExpenses(docs []*firestore.DocumentSnapshot) []models.Expense {
	out := make([]models.Expense, 0, len(docs))
	for _, doc := range docs {
		exp, err := toExpense(doc)
		if err != nil {
			logger.Log.Warn().Str("doc_id", doc.Ref.ID).Err(err).Msg("Skipping malformed expense")
			continue
		}
		out = append(out, exp)
	}
	return out
}

// Create adds a document with a Firestore-generated id.
func (s *Store) Create(ctx context.Context, draft models.ExpenseDraft) (models.Expense, error) {
	settled := draft.SettledBy
	if settled == nil {
		settled = []string{}
	}
	doc := expenseDoc{
		Name:        draft.Name,
		Payer:       draft.Payer,
		Amount:      draft.Amount.InexactFloat64(),
		Paided:      settled,
		DateCreated: s.now(),
	}

	ref, _, err := s.expenses().Add(ctx, doc)
	if err != nil {
		return models.Expense{}, gateway.Wrap("create", fmt.Errorf("failed to create expense: %w", err))
	}

	exp := models.Expense{
		ID:          ref.ID,
		Name:        doc.Name,
		Payer:       doc.Payer,
		Amount:      draft.Amount,
		SettledBy:   settled,
		DateCreated: doc.DateCreated,
	}
	return exp.Clone(), nil
}

// Update applies the patch with a field-level update. Firestore rejects updates of
// missing documents with NotFound.
func (s *Store) Update(ctx context.Context, id string, patch models.ExpensePatch) error {
	var updates []firestore.Update
	if patch.Name != nil {
		updates = append(updates, firestore.Update{Path: "name", Value: *patch.Name})
	}
	if patch.Payer != nil {
		updates = append(updates, firestore.Update{Path: "payer", Value: *patch.Payer})
	}
	if patch.Amount != nil {
		updates = append(updates, firestore.Update{Path: "amount", Value: patch.Amount.InexactFloat64()})
	}
	if patch.SettledBy != nil {
		settled := *patch.SettledBy
		if settled == nil {
			settled = []string{}
		}
		updates = append(updates, firestore.Update{Path: "paided", Value: settled})
	}

	ref := s.expenses().Doc(id)
	if len(updates) == 0 {
		// Firestore refuses empty updates; still honor the not-found contract.
		if _, err := ref.Get(ctx); err != nil {
			return gateway.Wrap("update", mapNotFound(err))
		}
		return nil
	}

	if _, err := ref.Update(ctx, updates); err != nil {
		return gateway.Wrap("update", mapNotFound(err))
	}
	return nil
}

func mapNotFound(err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %w", gateway.ErrNotFound, err)
	}
	return fmt.Errorf("failed to update expense: %w", err)
}

// Delete removes the document. Deleting a missing document succeeds.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.expenses().Doc(id).Delete(ctx); err != nil {
		return gateway.Wrap("delete", fmt.Errorf("failed to delete expense: %w", err))
	}
	return nil
}

// List reads every expense ordered by dateCreated descending.
func (s *Store) List(ctx context.Context) ([]models.Expense, error) {
	docs, err := s.expenses().OrderBy("dateCreated", firestore.Desc).Documents(ctx).GetAll()
	if err != nil {
		return nil, gateway.Wrap("list", fmt.Errorf("failed to list expenses: %w", err))
	}
	return toExpenses(docs), nil
}

// Subscribe attaches a snapshot listener to the collection and waits for the first
// snapshot, so a listener the backend refuses fails here. The listener then runs
// until unsubscribe is called, independent of ctx cancellation.
func (s *Store) Subscribe(ctx context.Context, onChange gateway.ChangeFunc) (func(), error) {
	listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	it := s.expenses().Snapshots(listenCtx)
	done := make(chan struct{})
	ready := make(chan error, 1)

	go func() {
		defer close(done)
		started := false
		for {
			snap, err := it.Next()
			if err != nil {
				if !started {
					ready <- err
					return
				}
				if listenCtx.Err() == nil && !errors.Is(err, iterator.Done) && status.Code(err) != codes.Canceled {
					logger.Log.Error().Err(err).Msg("Expense snapshot listener stopped")
				}
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				if !started {
					ready <- err
					return
				}
				logger.Log.Error().Err(err).Msg("Failed to read expense snapshot")
				continue
			}
			onChange(toExpenses(docs))
			if !started {
				started = true
				ready <- nil
			}
		}
	}()

	stop := func() {
		cancel()
		it.Stop()
		<-done
	}

	select {
	case err := <-ready:
		if err != nil {
			stop()
			return nil, gateway.Wrap("subscribe", fmt.Errorf("failed to listen for expenses: %w", err))
		}
	case <-ctx.Done():
		stop()
		return nil, gateway.Wrap("subscribe", ctx.Err())
	}

	var once sync.Once
	return func() { once.Do(stop) }, nil
}

// tokenDocID derives a stable document id so concurrent saves of one token collide.
func tokenDocID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// SaveToken stores the token unless a document with the same value exists.
// Rows written by older clients under random ids are found by the equality query;
// new rows use a derived id so two racing writers cannot both insert.
func (s *Store) SaveToken(ctx context.Context, token string) error {
	existing, err := s.tokens().Where(tokenField, "==", token).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return gateway.Wrap("save_token", fmt.Errorf("failed to query push token: %w", err))
	}
	if len(existing) > 0 {
		logger.Log.Debug().Str("token_hash", logger.HashToken(token)).Msg("Token already exists in the database")
		return nil
	}

	_, err = s.tokens().Doc(tokenDocID(token)).Create(ctx, tokenDoc{ExpoPushToken: token})
	if status.Code(err) == codes.AlreadyExists {
		logger.Log.Debug().Str("token_hash", logger.HashToken(token)).Msg("Token already exists in the database")
		return nil
	}
	if err != nil {
		return gateway.Wrap("save_token", fmt.Errorf("failed to save push token: %w", err))
	}
	logger.Log.Info().Str("token_hash", logger.HashToken(token)).Msg("Token saved to database")
	return nil
}

// ListTokens scans the token collection, skipping empty or malformed rows.
func (s *Store) ListTokens(ctx context.Context) ([]string, error) {
	docs, err := s.tokens().Documents(ctx).GetAll()
	if err != nil {
		return nil, gateway.Wrap("list_tokens", fmt.Errorf("failed to list push tokens: %w", err))
	}

	tokens := make([]string, 0, len(docs))
	for _, doc := range docs {
		var d tokenDoc
		if err := doc.DataTo(&d); err != nil {
			logger.Log.Warn().Str("doc_id", doc.Ref.ID).Err(err).Msg("Skipping malformed push token")
			continue
		}
		if strings.TrimSpace(d.ExpoPushToken) == "" {
			continue
		}
		tokens = append(tokens, d.ExpoPushToken)
	}
	return tokens, nil
}
