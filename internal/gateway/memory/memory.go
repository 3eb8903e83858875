// Package memory is an in-process gateway backend. It serves local runs without a
// database and the controller, bot and API tests.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gitlab.com/yelinaung/expense-share/internal/gateway"
	"gitlab.com/yelinaung/expense-share/internal/models"
)

// Operation names accepted by FailNext and Calls.
const (
	OpCreate     = "create"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpList       = "list"
	OpSubscribe  = "subscribe"
	OpSaveToken  = "save_token"
	OpListTokens = "list_tokens"
)

// Store keeps expenses and tokens in memory and notifies subscribers synchronously.
type Store struct {
	// deliverMu serializes deliveries so subscribers see snapshots in write order.
	deliverMu sync.Mutex

	mu       sync.Mutex
	expenses map[string]models.Expense
	order    []string
	tokens   []string
	subs     map[int]gateway.ChangeFunc
	nextSub  int
	calls    map[string]int
	failures map[string]error

	now   func() time.Time
	newID func() string
}

var _ gateway.Gateway = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for DateCreated.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator sets the function used to assign expense ids.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		expenses: make(map[string]models.Expense),
		subs:     make(map[int]gateway.ChangeFunc),
		calls:    make(map[string]int),
		failures: make(map[string]error),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailNext makes the next call to op return err wrapped in a StoreError.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// Calls returns how many times op has been invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Subscribers returns the number of live subscriptions.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// enter records a call and returns the injected failure, if any. Caller holds s.mu.
func (s *Store) enter(op string) error {
	s.calls[op]++
	if err, ok := s.failures[op]; ok {
		delete(s.failures, op)
		return &gateway.StoreError{Op: op, Err: err}
	}
	return nil
}

// snapshotLocked returns the expenses in insertion order. Caller holds s.mu.
func (s *Store) snapshotLocked() []models.Expense {
	out := make([]models.Expense, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.expenses[id].Clone())
	}
	return out
}

// broadcast delivers the current snapshot to every subscriber.
func (s *Store) broadcast() {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	snapshot := s.snapshotLocked()
	subs := make([]gateway.ChangeFunc, 0, len(s.subs))
	keys := make([]int, 0, len(s.subs))
	for k := range s.subs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		subs = append(subs, s.subs[k])
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(slices.Clone(snapshot))
	}
}

// Create inserts a new expense.
func (s *Store) Create(_ context.Context, draft models.ExpenseDraft) (models.Expense, error) {
	s.mu.Lock()
	if err := s.enter(OpCreate); err != nil {
		s.mu.Unlock()
		return models.Expense{}, err
	}
	exp := models.Expense{
		ID:          s.newID(),
		Name:        draft.Name,
		Payer:       draft.Payer,
		Amount:      draft.Amount,
		SettledBy:   slices.Clone(draft.SettledBy),
		DateCreated: s.now(),
	}
	exp = exp.Clone()
	s.expenses[exp.ID] = exp
	s.order = append(s.order, exp.ID)
	s.mu.Unlock()

	s.broadcast()
	return exp.Clone(), nil
}

// Update merges patch into the expense with the given id.
func (s *Store) Update(_ context.Context, id string, patch models.ExpensePatch) error {
	s.mu.Lock()
	if err := s.enter(OpUpdate); err != nil {
		s.mu.Unlock()
		return err
	}
	exp, ok := s.expenses[id]
	if !ok {
		s.mu.Unlock()
		return gateway.Wrap(OpUpdate, gateway.ErrNotFound)
	}
	patch.Apply(&exp)
	s.expenses[id] = exp
	s.mu.Unlock()

	s.broadcast()
	return nil
}

// Delete removes the expense. Deleting a missing id is a no-op.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	if err := s.enter(OpDelete); err != nil {
		s.mu.Unlock()
		return err
	}
	if _, ok := s.expenses[id]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.expenses, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	s.mu.Unlock()

	s.broadcast()
	return nil
}

// List returns all expenses, newest first.
func (s *Store) List(_ context.Context) ([]models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpList); err != nil {
		return nil, err
	}
	out := s.snapshotLocked()
	models.SortByDateCreatedDesc(out)
	return out, nil
}

// Subscribe registers onChange and delivers the current snapshot before returning.
func (s *Store) Subscribe(_ context.Context, onChange gateway.ChangeFunc) (func(), error) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if err := s.enter(OpSubscribe); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	key := s.nextSub
	s.nextSub++
	s.subs[key] = onChange
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	onChange(snapshot)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, key)
			s.mu.Unlock()
		})
	}, nil
}

// SaveToken stores token unless it is already present.
func (s *Store) SaveToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpSaveToken); err != nil {
		return err
	}
	if slices.Contains(s.tokens, token) {
		return nil
	}
	s.tokens = append(s.tokens, token)
	return nil
}

// ListTokens returns every non-empty stored token.
func (s *Store) ListTokens(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpListTokens); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(s.tokens))
	for _, tok := range s.tokens {
		if strings.TrimSpace(tok) != "" {
			out = append(out, tok)
		}
	}
	return out, nil
}
