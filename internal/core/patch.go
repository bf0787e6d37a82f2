package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpensePatch is a partial update with named optional fields and a single
// merge point. Nil fields leave the row untouched.
type ExpensePatch struct {
	Description    *string
	CategoryID     *string
	AmountOriginal *decimal.Decimal
	Currency       *string
	FXRate         *decimal.Decimal
	PaidBy         *string
	Date           *time.Time
	Month          *Month
}

// Apply merges the patch into a copy of e. The ARS amount is recomputed
// whenever the original amount or the rate changed, keeping the stored
// invariant intact.
func (p ExpensePatch) Apply(e Expense) Expense {
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.CategoryID != nil {
		e.CategoryID = *p.CategoryID
	}
	if p.Currency != nil {
		e.Currency = *p.Currency
	}
	if p.PaidBy != nil {
		e.PaidBy = *p.PaidBy
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Month != nil {
		e.Month = *p.Month
	}
	if p.AmountOriginal != nil {
		e.AmountOriginal = *p.AmountOriginal
	}
	if p.FXRate != nil {
		e.FXRate = *p.FXRate
	}
	if p.AmountOriginal != nil || p.FXRate != nil {
		e.AmountARS = ConvertToARS(e.AmountOriginal, e.FXRate)
	}
	return e
}

// ChangesMonth reports whether the patch moves the row to another month.
func (p ExpensePatch) ChangesMonth(current Month) bool {
	return p.Month != nil && *p.Month != current
}

// InstallmentPatch extends ExpensePatch with the schedule-shaping fields of
// an installment series. Nil fields fall back to the anchor's stored basis.
type InstallmentPatch struct {
	ExpensePatch

	Count          *int
	Mode           *EntryMode
	PerInstallment *decimal.Decimal
	Total          *decimal.Decimal

	// Disable converts the row back into a plain one-time expense.
	// Only allowed with single scope.
	Disable bool
}

// ScheduleInput builds the schedule input for a series rewrite, falling back
// to the anchor's basis for anything the patch leaves unset.
func (p InstallmentPatch) ScheduleInput(anchor Expense) ScheduleInput {
	in := ScheduleInput{
		Count:          anchor.InstallmentTotal,
		Mode:           anchor.Source,
		PerInstallment: anchor.InstallmentAmount,
		Total:          anchor.OriginalTotal,
	}
	if p.Count != nil {
		in.Count = *p.Count
	}
	if p.Mode != nil {
		in.Mode = *p.Mode
	}
	if p.PerInstallment != nil {
		in.PerInstallment = *p.PerInstallment
	}
	if p.Total != nil {
		in.Total = *p.Total
	}
	return in
}
