package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validOneTime(t *testing.T) Expense {
	t.Helper()
	m := Month{2026, 3}
	amount := dec(t, "120.50")
	rate := dec(t, "1")
	return Expense{
		ID:             "e1",
		Month:          m,
		Date:           m.Date(10),
		Description:    "groceries",
		CategoryID:     "cat-food",
		AmountOriginal: amount,
		AmountARS:      ConvertToARS(amount, rate),
		Currency:       CurrencyARS,
		FXRate:         rate,
		HouseholdID:    "h1",
		PaidBy:         "u1",
		Kind:           KindOneTime,
	}
}

func TestExpenseValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Expense)
		wantErr error
	}{
		{"valid one-time", func(e *Expense) {}, nil},
		{"empty description", func(e *Expense) { e.Description = "  " }, ErrEmptyDescription},
		{"bad currency", func(e *Expense) { e.Currency = "GBP" }, ErrInvalidCurrency},
		{"non-positive amount", func(e *Expense) { e.AmountOriginal = decimal.Decimal{} }, ErrInvalidAmount},
		{"ars mismatch", func(e *Expense) { e.AmountARS = e.AmountARS.Add(decimal.New(1, -2)) }, ErrAmountMismatch},
		{"one-time with template id", func(e *Expense) { e.TemplateID = "t1" }, ErrInvalidKind},
		{"one-time with series id", func(e *Expense) { e.SeriesID = "s1" }, ErrInvalidKind},
		{
			"fixed row needs template id",
			func(e *Expense) { e.Kind = KindFixed },
			ErrInvalidKind,
		},
		{
			"fixed row cannot carry a series",
			func(e *Expense) { e.Kind = KindFixed; e.TemplateID = "t1"; e.SeriesID = "s1" },
			ErrInvalidKind,
		},
		{
			"installment number out of range",
			func(e *Expense) {
				e.Kind = KindInstallment
				e.SeriesID = "s1"
				e.InstallmentNumber = 4
				e.InstallmentTotal = 3
			},
			ErrInvalidKind,
		},
		{
			"valid installment",
			func(e *Expense) {
				e.Kind = KindInstallment
				e.SeriesID = "s1"
				e.InstallmentNumber = 2
				e.InstallmentTotal = 3
			},
			nil,
		},
		{
			"valid fixed",
			func(e *Expense) { e.Kind = KindFixed; e.TemplateID = "t1" },
			nil,
		},
		{"unknown kind", func(e *Expense) { e.Kind = "mystery" }, ErrInvalidKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validOneTime(t)
			tt.mutate(&e)
			err := e.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpensePatchApply(t *testing.T) {
	e := validOneTime(t)

	desc := "updated description"
	amount := dec(t, "200")
	rate := dec(t, "1185.50")
	currency := CurrencyUSD
	day := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

	got := ExpensePatch{
		Description:    &desc,
		AmountOriginal: &amount,
		FXRate:         &rate,
		Currency:       &currency,
		Date:           &day,
	}.Apply(e)

	if got.Description != desc || got.Currency != CurrencyUSD || !got.Date.Equal(day) {
		t.Errorf("patched fields not applied: %+v", got)
	}
	if want := ConvertToARS(amount, rate); !got.AmountARS.Equal(want) {
		t.Errorf("AmountARS = %s, want %s (recomputed)", got.AmountARS, want)
	}
	// Untouched fields survive.
	if got.CategoryID != e.CategoryID || got.PaidBy != e.PaidBy {
		t.Errorf("untouched fields changed: %+v", got)
	}
	// The original is not mutated.
	if e.Description == desc {
		t.Error("Apply mutated its input")
	}
}

func TestExpensePatchAmountOnlyRecomputesARS(t *testing.T) {
	e := validOneTime(t)
	amount := dec(t, "99.99")
	got := ExpensePatch{AmountOriginal: &amount}.Apply(e)
	if want := ConvertToARS(amount, e.FXRate); !got.AmountARS.Equal(want) {
		t.Errorf("AmountARS = %s, want %s", got.AmountARS, want)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("patched row no longer valid: %v", err)
	}
}

func TestParseScope(t *testing.T) {
	tests := []struct {
		in       string
		inSeries bool
		want     Scope
		wantErr  bool
	}{
		{"single", true, ScopeSingle, false},
		{"future", true, ScopeFuture, false},
		{"all", true, ScopeAll, false},
		{"", true, ScopeFuture, false},
		{"", false, ScopeSingle, false},
		{"everything", false, "", true},
	}
	for _, tt := range tests {
		got, err := ParseScope(tt.in, tt.inSeries)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidScope) {
				t.Errorf("ParseScope(%q) error = %v, want ErrInvalidScope", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseScope(%q, series=%v) = %v, %v; want %v", tt.in, tt.inSeries, got, err, tt.want)
		}
	}
}
