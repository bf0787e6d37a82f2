package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseKind tags the three mutually exclusive expense shapes. A row is
// either a one-time entry, a row generated from a fixed template, or a
// member of an installment series.
type ExpenseKind string

const (
	KindOneTime     ExpenseKind = "one_time"
	KindFixed       ExpenseKind = "fixed"
	KindInstallment ExpenseKind = "installment"
)

// Supported currency codes. All amounts settle in ARS.
const (
	CurrencyARS = "ARS"
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
)

var (
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidCurrency  = errors.New("unsupported currency code")
	ErrInvalidKind      = errors.New("expense fields do not match the declared kind")
	ErrAmountMismatch   = errors.New("ars amount does not match original amount times fx rate")
	ErrMixedKind        = errors.New("an expense cannot be both recurring and installment-based")
	ErrInvalidScope     = errors.New("invalid apply scope")
	ErrScopeConflict    = errors.New("month change or installment removal requires single scope")
	ErrMissingHousehold = errors.New("no resolvable household id")
)

// ValidCurrency reports whether code is one of the supported currencies.
func ValidCurrency(code string) bool {
	switch code {
	case CurrencyARS, CurrencyUSD, CurrencyEUR:
		return true
	}
	return false
}

// Expense is a concrete stored expense row, fully typed. The installment
// fields are meaningful only when Kind is KindInstallment, TemplateID only
// when Kind is KindFixed; Validate enforces the shape.
type Expense struct {
	ID             string
	Month          Month
	Date           time.Time
	Description    string
	CategoryID     string
	AmountOriginal decimal.Decimal
	AmountARS      decimal.Decimal
	Currency       string
	FXRate         decimal.Decimal
	HouseholdID    string
	PaidBy         string

	Kind       ExpenseKind
	TemplateID string // fixed rows only
	SeriesID   string // installment rows only

	InstallmentNumber int
	InstallmentTotal  int
	// InstallmentAmount is the per-unit schedule basis (per_installment mode).
	InstallmentAmount decimal.Decimal
	// OriginalTotal is the series-total schedule basis (total mode).
	OriginalTotal decimal.Decimal
	Source        EntryMode

	CreatedFromSeries bool
}

// IsAnchor reports whether e is the first row of its installment series.
func (e Expense) IsAnchor() bool {
	return e.Kind == KindInstallment && e.InstallmentNumber == 1
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if !ValidCurrency(e.Currency) {
		return ErrInvalidCurrency
	}
	if !e.AmountOriginal.IsPositive() {
		return ErrInvalidAmount
	}
	if !e.FXRate.IsPositive() {
		return ErrInvalidRate
	}
	if !e.AmountARS.Equal(ConvertToARS(e.AmountOriginal, e.FXRate)) {
		return ErrAmountMismatch
	}

	switch e.Kind {
	case KindOneTime:
		if e.TemplateID != "" || e.SeriesID != "" {
			return ErrInvalidKind
		}
	case KindFixed:
		if e.TemplateID == "" || e.SeriesID != "" {
			return ErrInvalidKind
		}
	case KindInstallment:
		if e.SeriesID == "" || e.TemplateID != "" {
			return ErrInvalidKind
		}
		if e.InstallmentTotal < 1 ||
			e.InstallmentNumber < 1 || e.InstallmentNumber > e.InstallmentTotal {
			return ErrInvalidKind
		}
	default:
		return ErrInvalidKind
	}
	return nil
}

// Template is a fixed recurring expense. It drives materialization of one
// expense row per month from CreatedMonth onward until deactivated.
type Template struct {
	ID             string
	Description    string
	CategoryID     string
	AmountOriginal decimal.Decimal
	Currency       string
	// FXRate is the stored default rate, used when no monthly rate row
	// pins the month's conversion.
	FXRate       decimal.Decimal
	PaidBy       string
	HouseholdID  string
	DayOfMonth   int
	CreatedMonth Month
	Active       bool
}

func (t Template) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if !ValidCurrency(t.Currency) {
		return ErrInvalidCurrency
	}
	if !t.AmountOriginal.IsPositive() {
		return ErrInvalidAmount
	}
	if t.CreatedMonth.IsZero() {
		return ErrInvalidMonth
	}
	return nil
}

// Category is an expense category; archived categories block template
// materialization.
type Category struct {
	ID       string
	Name     string
	Archived bool
}

// User is a household participant.
type User struct {
	ID          string
	Name        string
	HouseholdID string
}

// Income is a participant's income entry for a month, normalized to ARS the
// same way expenses are.
type Income struct {
	ID             string
	Month          Month
	UserID         string
	HouseholdID    string
	AmountOriginal decimal.Decimal
	AmountARS      decimal.Decimal
	Currency       string
	FXRate         decimal.Decimal
}

// MonthlyRate pins the conversion rate for one currency in one month. It is
// unique per (month, currency) and created on first use when not pre-seeded.
type MonthlyRate struct {
	Month     Month
	Currency  string
	RateToARS decimal.Decimal
}

// Scope selects how far an edit or delete of an installment row reaches.
type Scope string

const (
	ScopeSingle Scope = "single"
	ScopeFuture Scope = "future"
	ScopeAll    Scope = "all"
)

// ParseScope parses a scope string. An empty scope defaults to future for
// series rows and single otherwise.
func ParseScope(s string, inSeries bool) (Scope, error) {
	switch Scope(s) {
	case ScopeSingle, ScopeFuture, ScopeAll:
		return Scope(s), nil
	case "":
		if inSeries {
			return ScopeFuture, nil
		}
		return ScopeSingle, nil
	}
	return "", ErrInvalidScope
}
