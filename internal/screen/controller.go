// Package screen holds the expense screen state machine shared by the chat and
// HTTP front-ends: the create form, the edit selection, modal flags and the live
// expense list.
package screen

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"gitlab.com/yelinaung/expense-share/internal/gateway"
	"gitlab.com/yelinaung/expense-share/internal/logger"
	"gitlab.com/yelinaung/expense-share/internal/models"
)

var (
	// ErrAlreadyMounted is returned by Mount while a subscription is live.
	ErrAlreadyMounted = errors.New("screen already mounted")
	// ErrNoSelection is returned by edit operations when nothing is selected.
	ErrNoSelection = errors.New("no expense selected")
	// ErrUnknownExpense is returned when selecting an id that is not in the list.
	ErrUnknownExpense = errors.New("expense not in list")
)

// User-visible notices.
const (
	MsgCreated      = "Expense created successfully!"
	MsgUpdated      = "Expense updated."
	MsgCreateFailed = "Something went wrong while creating the expense."
	MsgUpdateFailed = "Something went wrong while updating the expense."
	MsgGone         = "This expense no longer exists."
	MsgLoadFailed   = "Could not load expenses."
)

// NoticeKind classifies a notice shown to the user.
type NoticeKind int

// Notice kinds.
const (
	NoticeSuccess NoticeKind = iota
	NoticeInvalid
	NoticeError
)

// Notifier shows short messages to the user.
type Notifier interface {
	Notify(kind NoticeKind, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(kind NoticeKind, message string)

// Notify calls f.
func (f NotifierFunc) Notify(kind NoticeKind, message string) { f(kind, message) }

// Broadcaster announces a newly created expense. Implemented by push.Broadcaster.
type Broadcaster interface {
	Broadcast(ctx context.Context, exp models.Expense)
}

// Options selects between the two app variants.
type Options struct {
	// BroadcastOnCreate sends a push notification after every successful create.
	BroadcastOnCreate bool
	// Ordered sorts rows newest first instead of keeping delivery order.
	Ordered bool
}

// Deps are the collaborators of a Controller. Broadcaster, Notifier and OnRows may be nil.
type Deps struct {
	Store       gateway.ExpenseStore
	Broadcaster Broadcaster
	Notifier    Notifier
	People      models.Roster
	Currency    string
	// OnRows is called with the rendered rows after every subscription delivery.
	OnRows func([]Row)
}

// Selection is an expense chosen for editing together with its edit form.
// Expense is never modified; Form holds the user's changes.
type Selection struct {
	Expense models.Expense
	Form    Draft
}

// State is a copy of everything the screen shows.
type State struct {
	Draft      Draft
	Selection  *Selection
	CreateOpen bool
	EditOpen   bool
	Expenses   []models.Expense
}

// Row is one rendered list entry.
type Row struct {
	ID          string
	Name        string
	Payer       string
	Amount      string
	SettledBy   []string
	DateCreated time.Time
}

// Controller owns the screen state. Methods are safe for concurrent use; the
// lock is never held across a store call or a callback.
type Controller struct {
	deps Deps
	opts Options

	mu          sync.Mutex
	state       State
	mounted     bool
	unsubscribe func()
}

// New creates a Controller with an empty draft and no expenses.
func New(deps Deps, opts Options) *Controller {
	if deps.Currency == "" {
		deps.Currency = models.DefaultCurrency
	}
	return &Controller{
		deps: deps,
		opts: opts,
		state: State{
			Draft:    emptyDraft(),
			Expenses: []models.Expense{},
		},
	}
}

func (c *Controller) notify(kind NoticeKind, message string) {
	if c.deps.Notifier != nil {
		c.deps.Notifier.Notify(kind, message)
	}
}

// Mount subscribes to the expense list. It must be paired with Unmount.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return ErrAlreadyMounted
	}
	c.mounted = true
	c.mu.Unlock()

	unsubscribe, err := c.deps.Store.Subscribe(ctx, c.onChange)
	if err != nil {
		c.mu.Lock()
		c.mounted = false
		c.mu.Unlock()
		logger.Log.Error().Err(err).Msg("Failed to subscribe to expenses")
		c.notify(NoticeError, MsgLoadFailed)
		return err
	}

	c.mu.Lock()
	if !c.mounted {
		// Unmount ran while subscribing.
		c.mu.Unlock()
		unsubscribe()
		return nil
	}
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
	return nil
}

// Unmount releases the subscription. Calling it again is a no-op.
func (c *Controller) Unmount() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mounted = false
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Mounted reports whether a subscription is live.
func (c *Controller) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted
}

func (c *Controller) onChange(expenses []models.Expense) {
	list := make([]models.Expense, 0, len(expenses))
	for _, e := range expenses {
		list = append(list, e.Clone())
	}

	c.mu.Lock()
	c.state.Expenses = list
	c.mu.Unlock()

	if c.deps.OnRows != nil {
		c.deps.OnRows(c.Rows())
	}
}

// OpenCreate resets the draft and opens the create form.
func (c *Controller) OpenCreate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Draft = emptyDraft()
	c.state.CreateOpen = true
}

// CloseCreate closes the create form. The draft is kept.
func (c *Controller) CloseCreate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.CreateOpen = false
}

// SetDraftName sets the draft name.
func (c *Controller) SetDraftName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Draft.Name = name
}

// SetDraftPayer sets the draft payer.
func (c *Controller) SetDraftPayer(payer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Draft.Payer = payer
}

// SetDraftAmount sets the draft amount text.
func (c *Controller) SetDraftAmount(amount string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Draft.Amount = amount
}

// SetDraftSettledBy replaces the draft settled-by list.
func (c *Controller) SetDraftSettledBy(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Draft.SettledBy = slices.Clone(ids)
}

// SubmitCreate validates the draft and stores it. On success the form closes,
// the draft resets and, if enabled, a broadcast is started without waiting.
func (c *Controller) SubmitCreate(ctx context.Context) error {
	c.mu.Lock()
	draft := c.state.Draft.clone()
	c.mu.Unlock()

	valid, err := ValidateDraft(draft, c.deps.People, true)
	if err != nil {
		c.notify(NoticeInvalid, err.Error())
		return err
	}

	exp, err := c.deps.Store.Create(ctx, valid)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to create expense")
		c.notify(NoticeError, MsgCreateFailed)
		return err
	}

	c.mu.Lock()
	c.state.CreateOpen = false
	c.state.Draft = emptyDraft()
	c.mu.Unlock()

	logger.Log.Info().
		Str("expense_id", exp.ID).
		Str("amount", exp.Amount.String()).
		Msg("Expense created")

	if c.opts.BroadcastOnCreate && c.deps.Broadcaster != nil {
		c.deps.Broadcaster.Broadcast(ctx, exp)
	}

	c.notify(NoticeSuccess, MsgCreated)
	return nil
}

// SelectForEdit copies the listed expense with id into the selection and opens
// the edit form.
func (c *Controller) SelectForEdit(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := slices.IndexFunc(c.state.Expenses, func(e models.Expense) bool { return e.ID == id })
	if idx < 0 {
		return ErrUnknownExpense
	}
	exp := c.state.Expenses[idx].Clone()
	c.state.Selection = &Selection{Expense: exp, Form: draftFromExpense(exp)}
	c.state.EditOpen = true
	return nil
}

func (c *Controller) editForm(fn func(*Draft)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Selection == nil {
		return ErrNoSelection
	}
	fn(&c.state.Selection.Form)
	return nil
}

// SetEditName sets the edit form name.
func (c *Controller) SetEditName(name string) error {
	return c.editForm(func(d *Draft) { d.Name = name })
}

// SetEditPayer sets the edit form payer.
func (c *Controller) SetEditPayer(payer string) error {
	return c.editForm(func(d *Draft) { d.Payer = payer })
}

// SetEditAmount sets the edit form amount text.
func (c *Controller) SetEditAmount(amount string) error {
	return c.editForm(func(d *Draft) { d.Amount = amount })
}

// SetEditSettledBy replaces the edit form settled-by list.
func (c *Controller) SetEditSettledBy(ids []string) error {
	return c.editForm(func(d *Draft) { d.SettledBy = slices.Clone(ids) })
}

// ToggleEditSettled adds id to the edit form settled-by list, or removes it.
func (c *Controller) ToggleEditSettled(id string) error {
	return c.editForm(func(d *Draft) {
		if i := slices.Index(d.SettledBy, id); i >= 0 {
			d.SettledBy = slices.Delete(slices.Clone(d.SettledBy), i, i+1)
			return
		}
		d.SettledBy = append(slices.Clone(d.SettledBy), id)
	})
}

// CloseEdit closes the edit form and discards the selection.
func (c *Controller) CloseEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.EditOpen = false
	c.state.Selection = nil
}

// SubmitEdit validates the edit form and writes all four fields. The payer may
// be empty. On failure the selection is kept.
func (c *Controller) SubmitEdit(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Selection == nil {
		c.mu.Unlock()
		return ErrNoSelection
	}
	id := c.state.Selection.Expense.ID
	form := c.state.Selection.Form.clone()
	c.mu.Unlock()

	valid, err := ValidateDraft(form, c.deps.People, false)
	if err != nil {
		c.notify(NoticeInvalid, err.Error())
		return err
	}

	patch := models.ExpensePatch{
		Name:      &valid.Name,
		Payer:     &valid.Payer,
		Amount:    &valid.Amount,
		SettledBy: &valid.SettledBy,
	}
	if err := c.deps.Store.Update(ctx, id, patch); err != nil {
		logger.Log.Error().Err(err).Str("expense_id", id).Msg("Failed to update expense")
		if errors.Is(err, gateway.ErrNotFound) {
			c.notify(NoticeError, MsgGone)
		} else {
			c.notify(NoticeError, MsgUpdateFailed)
		}
		return err
	}

	c.mu.Lock()
	if c.state.Selection != nil && c.state.Selection.Expense.ID == id {
		c.state.Selection = nil
		c.state.EditOpen = false
	}
	c.mu.Unlock()

	logger.Log.Info().Str("expense_id", id).Msg("Expense updated")
	c.notify(NoticeSuccess, MsgUpdated)
	return nil
}

// Rows renders the current list. Delivery order is kept unless Options.Ordered is set.
func (c *Controller) Rows() []Row {
	c.mu.Lock()
	expenses := slices.Clone(c.state.Expenses)
	c.mu.Unlock()

	if c.opts.Ordered {
		models.SortByDateCreatedDesc(expenses)
	}

	rows := make([]Row, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, Row{
			ID:          e.ID,
			Name:        e.Name,
			Payer:       c.deps.People.Label(e.Payer),
			Amount:      models.FormatAmount(e.Amount, c.deps.Currency),
			SettledBy:   c.deps.People.Labels(e.SettledBy),
			DateCreated: e.DateCreated,
		})
	}
	return rows
}

// Snapshot returns a deep copy of the state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		Draft:      c.state.Draft.clone(),
		CreateOpen: c.state.CreateOpen,
		EditOpen:   c.state.EditOpen,
		Expenses:   make([]models.Expense, 0, len(c.state.Expenses)),
	}
	for _, e := range c.state.Expenses {
		s.Expenses = append(s.Expenses, e.Clone())
	}
	if sel := c.state.Selection; sel != nil {
		s.Selection = &Selection{Expense: sel.Expense.Clone(), Form: sel.Form.clone()}
	}
	return s
}

// People returns the roster.
func (c *Controller) People() models.Roster {
	return c.deps.People
}
