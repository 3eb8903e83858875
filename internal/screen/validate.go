package screen

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/expense-share/internal/models"
)

// Form fields named by ValidationError.
const (
	FieldName      = "name"
	FieldPayer     = "payer"
	FieldAmount    = "amount"
	FieldSettledBy = "settled_by"
)

// ValidationError rejects a form before any store call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Draft is the raw form input for an expense. Amount is kept as typed.
type Draft struct {
	Name      string
	Payer     string
	Amount    string
	SettledBy []string
}

// emptyDraft is the create form after open and after a successful create.
func emptyDraft() Draft {
	return Draft{Amount: "0", SettledBy: []string{}}
}

func (d Draft) clone() Draft {
	settled := make([]string, len(d.SettledBy))
	copy(settled, d.SettledBy)
	d.SettledBy = settled
	return d
}

// draftFromExpense fills an edit form from a stored expense.
func draftFromExpense(exp models.Expense) Draft {
	return Draft{
		Name:      exp.Name,
		Payer:     exp.Payer,
		Amount:    exp.Amount.String(),
		SettledBy: exp.Clone().SettledBy,
	}
}

// ValidateDraft checks d and returns the values to store. requirePayer is set for
// creates only; an edit may leave the payer empty.
func ValidateDraft(d Draft, people models.Roster, requirePayer bool) (models.ExpenseDraft, error) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return models.ExpenseDraft{}, &ValidationError{Field: FieldName, Message: "Expense name cannot be empty."}
	}
	if utf8.RuneCountInString(name) > models.MaxExpenseNameLength {
		return models.ExpenseDraft{}, &ValidationError{
			Field:   FieldName,
			Message: fmt.Sprintf("Expense name must be at most %d characters.", models.MaxExpenseNameLength),
		}
	}

	payer := strings.TrimSpace(d.Payer)
	if requirePayer && payer == "" {
		return models.ExpenseDraft{}, &ValidationError{Field: FieldPayer, Message: "Payer cannot be empty."}
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(d.Amount))
	if err != nil || !amount.IsPositive() {
		return models.ExpenseDraft{}, &ValidationError{Field: FieldAmount, Message: "Amount must be a positive number."}
	}
	if !amount.Equal(amount.Round(models.AmountDecimalPlaces)) {
		return models.ExpenseDraft{}, &ValidationError{
			Field:   FieldAmount,
			Message: fmt.Sprintf("Amount can have at most %d decimal places.", models.AmountDecimalPlaces),
		}
	}
	if amount.GreaterThan(models.MaxAmount) {
		return models.ExpenseDraft{}, &ValidationError{Field: FieldAmount, Message: "Amount is too large."}
	}

	if payer != "" && !people.Contains(payer) {
		return models.ExpenseDraft{}, &ValidationError{Field: FieldPayer, Message: fmt.Sprintf("Unknown payer %q.", payer)}
	}

	settled, unknown := people.Normalize(d.SettledBy)
	if len(unknown) > 0 {
		return models.ExpenseDraft{}, &ValidationError{
			Field:   FieldSettledBy,
			Message: "Unknown people in settled-by: " + strings.Join(unknown, ", ") + ".",
		}
	}

	return models.ExpenseDraft{
		Name:      name,
		Payer:     payer,
		Amount:    amount,
		SettledBy: settled,
	}, nil
}
