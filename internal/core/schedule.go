package core

import (
	"errors"

	"github.com/shopspring/decimal"
)

// EntryMode says how a series amount was entered: a per-installment amount
// or a grand total to be split.
type EntryMode string

const (
	EntryPerInstallment EntryMode = "per_installment"
	EntryTotal          EntryMode = "total"
)

var (
	ErrInvalidCount     = errors.New("installment count must be a positive integer")
	ErrMissingAmount    = errors.New("missing amount for the selected entry mode")
	ErrUnknownEntryMode = errors.New("unknown entry mode")
)

// ScheduleInput describes an installment series to split.
type ScheduleInput struct {
	Count int
	Mode  EntryMode
	// PerInstallment is the per-unit amount, required in per_installment mode.
	PerInstallment decimal.Decimal
	// Total is the series total, required in total mode.
	Total decimal.Decimal
}

// Schedule is a fully computed per-period amount list. In total mode the
// amounts sum to Round2(input total) exactly.
type Schedule struct {
	Amounts []decimal.Decimal
	Total   decimal.Decimal
}

// InstallmentScheduleOutput is the boundary representation of a schedule,
// with fixed-scale decimal strings.
type InstallmentScheduleOutput struct {
	Amounts     []string `json:"amounts"`
	TotalAmount string   `json:"totalAmount"`
}

// ComputeInstallments derives the per-period amounts for a series. The same
// input always produces the same schedule, so a series can be recomputed
// from its anchor at any time.
//
// In total mode every installment is Round2(total/count) except the last,
// which absorbs the rounding remainder so the sum equals Round2(total)
// exactly.
func ComputeInstallments(in ScheduleInput) (Schedule, error) {
	if in.Count < 1 {
		return Schedule{}, ErrInvalidCount
	}
	switch in.Mode {
	case EntryPerInstallment:
		if !in.PerInstallment.IsPositive() {
			return Schedule{}, ErrMissingAmount
		}
		unit := Round2(in.PerInstallment)
		amounts := make([]decimal.Decimal, in.Count)
		for i := range amounts {
			amounts[i] = unit
		}
		return Schedule{
			Amounts: amounts,
			Total:   unit.Mul(decimal.NewFromInt(int64(in.Count))),
		}, nil

	case EntryTotal:
		if !in.Total.IsPositive() {
			return Schedule{}, ErrMissingAmount
		}
		base := Round2(in.Total.Div(decimal.NewFromInt(int64(in.Count))))
		amounts := make([]decimal.Decimal, in.Count)
		for i := range amounts {
			amounts[i] = base
		}
		// Last installment absorbs the remainder.
		amounts[in.Count-1] = Round2(in.Total.Sub(base.Mul(decimal.NewFromInt(int64(in.Count - 1)))))
		return Schedule{Amounts: amounts, Total: Round2(in.Total)}, nil

	default:
		return Schedule{}, ErrUnknownEntryMode
	}
}

// Amount returns the amount of installment n, 1-based.
func (s Schedule) Amount(n int) (decimal.Decimal, error) {
	if n < 1 || n > len(s.Amounts) {
		return decimal.Decimal{}, ErrInvalidCount
	}
	return s.Amounts[n-1], nil
}

// Output converts the schedule into its boundary representation.
func (s Schedule) Output() InstallmentScheduleOutput {
	out := InstallmentScheduleOutput{
		Amounts:     make([]string, len(s.Amounts)),
		TotalAmount: AmountString(s.Total),
	}
	for i, a := range s.Amounts {
		out.Amounts[i] = AmountString(a)
	}
	return out
}
