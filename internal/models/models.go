// Package models defines the domain entities for the shared expense tracker.
package models

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the display currency used when none is configured.
const DefaultCurrency = "VND"

// MaxExpenseNameLength is the maximum allowed length for expense names.
const MaxExpenseNameLength = 100

// AmountDecimalPlaces is the number of fractional digits an amount may carry.
// Stores keep amounts at this scale.
const AmountDecimalPlaces = 2

// MaxAmount is the largest amount the stores can hold.
var MaxAmount = decimal.RequireFromString("999999999999.99")

// SupportedCurrencies maps display currency codes to their symbols.
var SupportedCurrencies = map[string]string{
	"SGD": "S$",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "¥",
	"MYR": "RM",
	"THB": "฿",
	"IDR": "Rp",
	"PHP": "₱",
	"VND": "₫",
	"KRW": "₩",
	"INR": "₹",
	"AUD": "A$",
	"NZD": "NZ$",
	"HKD": "HK$",
	"TWD": "NT$",
}

// Expense is one shared-cost record.
type Expense struct {
	ID          string
	Name        string
	Payer       string
	Amount      decimal.Decimal
	SettledBy   []string
	DateCreated time.Time
}

// ExpenseDraft holds the fields of an expense that has not been stored yet.
type ExpenseDraft struct {
	Name      string
	Payer     string
	Amount    decimal.Decimal
	SettledBy []string
}

// ExpensePatch describes a partial update. Nil fields are left untouched.
type ExpensePatch struct {
	Name      *string
	Payer     *string
	Amount    *decimal.Decimal
	SettledBy *[]string
}

// Apply merges the non-nil patch fields into e.
func (p ExpensePatch) Apply(e *Expense) {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Payer != nil {
		e.Payer = *p.Payer
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.SettledBy != nil {
		e.SettledBy = slices.Clone(*p.SettledBy)
	}
}

// IsEmpty reports whether the patch changes nothing.
func (p ExpensePatch) IsEmpty() bool {
	return p.Name == nil && p.Payer == nil && p.Amount == nil && p.SettledBy == nil
}

// Clone returns a deep copy of the expense.
func (e Expense) Clone() Expense {
	e.SettledBy = slices.Clone(e.SettledBy)
	if e.SettledBy == nil {
		e.SettledBy = []string{}
	}
	return e
}

// SortByDateCreatedDesc orders expenses newest first. Ties keep their relative order.
func SortByDateCreatedDesc(expenses []Expense) {
	slices.SortStableFunc(expenses, func(a, b Expense) int {
		return b.DateCreated.Compare(a.DateCreated)
	})
}
