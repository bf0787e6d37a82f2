package core

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrNonPositiveIncome is returned when expenses exist but total income is
// zero or negative, so an expense ratio cannot be computed. Callers are
// expected to handle it by falling back to a "no settlement yet" state.
var ErrNonPositiveIncome = errors.New("total income must be positive when expenses exist")

// ratioPrecision is the intermediate precision for the income ratio; wider
// than the displayed 6 places so fair shares don't lose cents.
const ratioPrecision = 12

// SettlementInput carries per-user ARS totals for one month.
type SettlementInput struct {
	// Incomes is the total ARS income per user.
	Incomes map[string]decimal.Decimal
	// Paid is the total ARS of expenses each user paid.
	Paid map[string]decimal.Decimal
}

// Transfer is the single balancing payment from the largest debtor to the
// largest creditor.
type Transfer struct {
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
	Amount     string `json:"amount"`
}

// Settlement is the derived monthly breakdown. All money fields are
// fixed-scale decimal strings.
type Settlement struct {
	TotalIncome   string            `json:"totalIncome"`
	TotalExpenses string            `json:"totalExpenses"`
	ExpenseRatio  string            `json:"expenseRatio"`
	FairShare     map[string]string `json:"fairShareByUser"`
	Paid          map[string]string `json:"paidByUser"`
	Difference    map[string]string `json:"differenceByUser"`
	Transfer      *Transfer         `json:"transfer,omitempty"`
}

// ComputeSettlement splits the month's expenses in proportion to income.
//
// Each user's fair share is income * (totalExpenses / totalIncome); their
// difference is paid minus fair share. Rounding to 2 places happens once,
// and the transfer is computed from the rounded differences, so the
// displayed numbers and the transfer amount are always mutually consistent.
//
// Only one transfer is ever proposed: from the most negative difference to
// the largest positive one. With 3+ unbalanced participants this does not
// zero every balance; the model targets the 2-person household and the
// simplification is deliberate.
func ComputeSettlement(in SettlementInput) (Settlement, error) {
	users := participantIDs(in)

	totalIncome := decimal.Decimal{}
	for _, u := range users {
		totalIncome = totalIncome.Add(in.Incomes[u])
	}
	totalExpenses := decimal.Decimal{}
	for _, u := range users {
		totalExpenses = totalExpenses.Add(in.Paid[u])
	}

	if !totalIncome.IsPositive() && totalExpenses.IsPositive() {
		return Settlement{}, ErrNonPositiveIncome
	}

	ratio := decimal.Decimal{}
	if totalIncome.IsPositive() {
		ratio = totalExpenses.DivRound(totalIncome, ratioPrecision)
	}

	out := Settlement{
		TotalIncome:   AmountString(totalIncome),
		TotalExpenses: AmountString(totalExpenses),
		ExpenseRatio:  RateString(ratio),
		FairShare:     make(map[string]string, len(users)),
		Paid:          make(map[string]string, len(users)),
		Difference:    make(map[string]string, len(users)),
	}

	differences := make(map[string]decimal.Decimal, len(users))
	for _, u := range users {
		paid := Round2(in.Paid[u])
		fair := Round2(in.Incomes[u].Mul(ratio))
		diff := paid.Sub(fair)

		out.FairShare[u] = AmountString(fair)
		out.Paid[u] = AmountString(paid)
		out.Difference[u] = AmountString(diff)
		differences[u] = diff
	}

	out.Transfer = balancingTransfer(users, differences)
	return out, nil
}

// balancingTransfer picks the largest debtor and largest creditor from the
// rounded differences. Exact ties keep the lowest user ID, so the result is
// deterministic for identical inputs.
func balancingTransfer(users []string, differences map[string]decimal.Decimal) *Transfer {
	var sender, receiver string
	var owes, owed decimal.Decimal

	for _, u := range users {
		d := differences[u]
		if d.IsNegative() && (sender == "" || d.LessThan(owes)) {
			sender, owes = u, d
		}
		if d.IsPositive() && (receiver == "" || d.GreaterThan(owed)) {
			receiver, owed = u, d
		}
	}
	if sender == "" || receiver == "" {
		return nil
	}

	amount := decimal.Min(owes.Neg(), owed)
	if !Round2(amount).IsPositive() {
		return nil
	}
	return &Transfer{
		FromUserID: sender,
		ToUserID:   receiver,
		Amount:     AmountString(amount),
	}
}

// participantIDs returns the sorted union of all user IDs in the input.
func participantIDs(in SettlementInput) []string {
	seen := make(map[string]struct{}, len(in.Incomes))
	var users []string
	for u := range in.Incomes {
		if _, ok := seen[u]; !ok {
			seen[u] = struct{}{}
			users = append(users, u)
		}
	}
	for u := range in.Paid {
		if _, ok := seen[u]; !ok {
			seen[u] = struct{}{}
			users = append(users, u)
		}
	}
	sort.Strings(users)
	return users
}
