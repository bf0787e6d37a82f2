package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nachochiappe/fairsplit-sub000/internal/core"
	"github.com/nachochiappe/fairsplit-sub000/internal/events"
)

// InstallmentInput carries the schedule shape of a new installment purchase.
type InstallmentInput struct {
	Count          int
	Mode           core.EntryMode
	PerInstallment decimal.Decimal
	Total          decimal.Decimal
}

// CreateExpenseInput is a new expense request. Recurring and Installments
// are mutually exclusive; with neither set the result is a one-time row.
type CreateExpenseInput struct {
	Month       core.Month
	Day         int
	Description string
	CategoryID  string
	Amount      decimal.Decimal
	Currency    string
	// FXRate is the fallback rate when no monthly rate pins the month.
	FXRate      decimal.Decimal
	PaidBy      string
	HouseholdID string

	Recurring    bool
	Installments *InstallmentInput
}

// IncomeInput is a new monthly income entry for a user.
type IncomeInput struct {
	Month       core.Month
	UserID      string
	HouseholdID string
	Amount      decimal.Decimal
	Currency    string
	FXRate      decimal.Decimal
}

// SnapshotInvalidator drops a cached settlement snapshot for a household
// month. The settlement service implements it.
type SnapshotInvalidator interface {
	Invalidate(ctx context.Context, householdID string, month core.Month) error
}

// ExpenseService is the write side of the tracker: it creates one-time,
// recurring and installment expenses, routes scoped edits, and after every
// successful mutation drops the affected settlement snapshots and announces
// the change on the event stream.
type ExpenseService struct {
	repo         Repository
	rates        *RateResolver
	fixed        *FixedMaterializer
	installments *InstallmentService
	events       events.Publisher
	snapshots    SnapshotInvalidator
}

func NewExpenseService(repo Repository, rates *RateResolver, fixed *FixedMaterializer, installments *InstallmentService, pub events.Publisher, snapshots SnapshotInvalidator) *ExpenseService {
	return &ExpenseService{
		repo:         repo,
		rates:        rates,
		fixed:        fixed,
		installments: installments,
		events:       pub,
		snapshots:    snapshots,
	}
}

// Create stores a new expense. A recurring request creates the template plus
// its first generated row; an installment request creates the series anchor.
// The created (or anchor) row is returned.
func (s *ExpenseService) Create(ctx context.Context, in CreateExpenseInput) (*core.Expense, error) {
	if in.Recurring && in.Installments != nil {
		return nil, core.ErrMixedKind
	}
	household, err := s.resolveHousehold(ctx, in.HouseholdID, in.PaidBy)
	if err != nil {
		return nil, err
	}
	rate, err := s.rates.Resolve(ctx, in.Month, in.Currency, in.FXRate)
	if err != nil {
		return nil, err
	}

	var row core.Expense
	switch {
	case in.Recurring:
		row, err = s.createRecurring(ctx, in, household, rate)
	case in.Installments != nil:
		row, err = s.createSeries(ctx, in, household, rate)
	default:
		row, err = s.createOneTime(ctx, in, household, rate)
	}
	if err != nil {
		return nil, err
	}
	s.announce(ctx, household, in.Month)
	return &row, nil
}

func (s *ExpenseService) createOneTime(ctx context.Context, in CreateExpenseInput, household string, rate decimal.Decimal) (core.Expense, error) {
	amount := core.Round2(in.Amount)
	row := core.Expense{
		ID:             uuid.NewString(),
		Month:          in.Month,
		Date:           in.Month.Date(in.Day),
		Description:    in.Description,
		CategoryID:     in.CategoryID,
		AmountOriginal: amount,
		AmountARS:      core.ConvertToARS(amount, rate),
		Currency:       in.Currency,
		FXRate:         rate,
		HouseholdID:    household,
		PaidBy:         in.PaidBy,
		Kind:           core.KindOneTime,
	}
	if err := row.Validate(); err != nil {
		return core.Expense{}, err
	}
	if _, err := s.repo.CreateExpense(ctx, row); err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	return row, nil
}

func (s *ExpenseService) createRecurring(ctx context.Context, in CreateExpenseInput, household string, rate decimal.Decimal) (core.Expense, error) {
	t := core.Template{
		ID:             uuid.NewString(),
		Description:    in.Description,
		CategoryID:     in.CategoryID,
		AmountOriginal: core.Round2(in.Amount),
		Currency:       in.Currency,
		FXRate:         rate,
		PaidBy:         in.PaidBy,
		HouseholdID:    household,
		DayOfMonth:     in.Day,
		CreatedMonth:   in.Month,
		Active:         true,
	}
	if err := t.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := s.repo.CreateTemplate(ctx, t); err != nil {
		return core.Expense{}, fmt.Errorf("create template: %w", err)
	}

	row := core.Expense{
		ID:             uuid.NewString(),
		Month:          in.Month,
		Date:           in.Month.Date(in.Day),
		Description:    t.Description,
		CategoryID:     t.CategoryID,
		AmountOriginal: t.AmountOriginal,
		AmountARS:      core.ConvertToARS(t.AmountOriginal, rate),
		Currency:       t.Currency,
		FXRate:         rate,
		HouseholdID:    household,
		PaidBy:         t.PaidBy,
		Kind:           core.KindFixed,
		TemplateID:     t.ID,
	}
	if err := row.Validate(); err != nil {
		return core.Expense{}, err
	}
	if _, err := s.repo.CreateExpense(ctx, row); err != nil {
		return core.Expense{}, fmt.Errorf("create first template row: %w", err)
	}
	return row, nil
}

func (s *ExpenseService) createSeries(ctx context.Context, in CreateExpenseInput, household string, rate decimal.Decimal) (core.Expense, error) {
	sched, err := core.ComputeInstallments(core.ScheduleInput{
		Count:          in.Installments.Count,
		Mode:           in.Installments.Mode,
		PerInstallment: in.Installments.PerInstallment,
		Total:          in.Installments.Total,
	})
	if err != nil {
		return core.Expense{}, err
	}
	first, err := sched.Amount(1)
	if err != nil {
		return core.Expense{}, err
	}

	anchor := core.Expense{
		ID:                uuid.NewString(),
		Month:             in.Month,
		Date:              in.Month.Date(in.Day),
		Description:       in.Description,
		CategoryID:        in.CategoryID,
		AmountOriginal:    first,
		AmountARS:         core.ConvertToARS(first, rate),
		Currency:          in.Currency,
		FXRate:            rate,
		HouseholdID:       household,
		PaidBy:            in.PaidBy,
		Kind:              core.KindInstallment,
		SeriesID:          uuid.NewString(),
		InstallmentNumber: 1,
		InstallmentTotal:  in.Installments.Count,
		InstallmentAmount: in.Installments.PerInstallment,
		OriginalTotal:     in.Installments.Total,
		Source:            in.Installments.Mode,
	}
	if err := anchor.Validate(); err != nil {
		return core.Expense{}, err
	}
	if _, err := s.repo.CreateExpense(ctx, anchor); err != nil {
		return core.Expense{}, fmt.Errorf("create series anchor: %w", err)
	}
	return anchor, nil
}

// Update routes a scoped patch to the row. The scope string may be empty;
// it defaults to future for series rows and single otherwise.
func (s *ExpenseService) Update(ctx context.Context, id, scopeStr string, patch core.InstallmentPatch) error {
	existing, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	scope, err := core.ParseScope(scopeStr, existing.SeriesID != "")
	if err != nil {
		return err
	}
	if err := s.installments.Update(ctx, id, scope, patch); err != nil {
		return err
	}
	s.announce(ctx, existing.HouseholdID, existing.Month)
	if patch.ChangesMonth(existing.Month) {
		s.announce(ctx, existing.HouseholdID, *patch.Month)
	}
	return nil
}

// Delete removes the row with the given scope.
func (s *ExpenseService) Delete(ctx context.Context, id, scopeStr string) error {
	existing, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	scope, err := core.ParseScope(scopeStr, existing.SeriesID != "")
	if err != nil {
		return err
	}
	if err := s.installments.Delete(ctx, id, scope); err != nil {
		return err
	}
	s.announce(ctx, existing.HouseholdID, existing.Month)
	return nil
}

// CreateIncome stores a user's income for a month, converted to ARS the same
// way expenses are.
func (s *ExpenseService) CreateIncome(ctx context.Context, in IncomeInput) (*core.Income, error) {
	if !in.Amount.IsPositive() {
		return nil, core.ErrInvalidAmount
	}
	household, err := s.resolveHousehold(ctx, in.HouseholdID, in.UserID)
	if err != nil {
		return nil, err
	}
	rate, err := s.rates.Resolve(ctx, in.Month, in.Currency, in.FXRate)
	if err != nil {
		return nil, err
	}
	amount := core.Round2(in.Amount)
	income := core.Income{
		ID:             uuid.NewString(),
		Month:          in.Month,
		UserID:         in.UserID,
		HouseholdID:    household,
		AmountOriginal: amount,
		AmountARS:      core.ConvertToARS(amount, rate),
		Currency:       in.Currency,
		FXRate:         rate,
	}
	if err := s.repo.CreateIncome(ctx, income); err != nil {
		return nil, fmt.Errorf("create income: %w", err)
	}
	s.announce(ctx, household, in.Month)
	return &income, nil
}

// PinMonthlyRate stores an explicit conversion rate for a (month, currency).
// An already pinned month keeps its first rate.
func (s *ExpenseService) PinMonthlyRate(ctx context.Context, month core.Month, currency string, rate decimal.Decimal) error {
	if !core.ValidCurrency(currency) || currency == core.CurrencyARS {
		return core.ErrInvalidCurrency
	}
	if !rate.IsPositive() {
		return core.ErrInvalidRate
	}
	return s.repo.CreateMonthlyRate(ctx, core.MonthlyRate{
		Month:     month,
		Currency:  currency,
		RateToARS: core.RoundRate(rate),
	})
}

// ApplyTemplateForward updates a template and propagates the change to every
// generated row after fromMonth.
func (s *ExpenseService) ApplyTemplateForward(ctx context.Context, t core.Template, fromMonth core.Month) error {
	months, err := s.fixed.ApplyToFutureMonths(ctx, t, fromMonth)
	if err != nil {
		return err
	}
	for _, month := range months {
		s.announce(ctx, t.HouseholdID, month)
	}
	return nil
}

// MonthExpenses materializes everything due for the month, then lists it.
// Warnings from generation travel alongside the rows.
func (s *ExpenseService) MonthExpenses(ctx context.Context, householdID string, month core.Month) ([]core.Expense, []string, error) {
	warnings, err := s.fixed.EnsureForMonth(ctx, householdID, month)
	if err != nil {
		return nil, nil, err
	}
	if err := s.installments.EnsureForMonth(ctx, householdID, month); err != nil {
		return nil, nil, err
	}
	rows, err := s.repo.ListExpensesByMonth(ctx, householdID, month)
	if err != nil {
		return nil, nil, err
	}
	return rows, warnings, nil
}

func (s *ExpenseService) resolveHousehold(ctx context.Context, householdID, userID string) (string, error) {
	if householdID != "" {
		return householdID, nil
	}
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("payer lookup failed: %w", err)
	}
	if user.HouseholdID == "" {
		return "", core.ErrMissingHousehold
	}
	return user.HouseholdID, nil
}

// announce runs after a successful mutation: the cached settlement snapshot
// for the month is dropped so the next read recomputes, and the change is
// published for the worker to re-warm the cache.
func (s *ExpenseService) announce(ctx context.Context, householdID string, month core.Month) {
	if s.snapshots != nil {
		if err := s.snapshots.Invalidate(ctx, householdID, month); err != nil {
			slog.WarnContext(ctx, "Failed to invalidate settlement snapshot",
				"household_id", householdID,
				"month", month.String(),
				"error", err)
		}
	}
	if s.events == nil {
		return
	}
	if err := s.events.PublishExpenseChanged(ctx, householdID, month.String()); err != nil {
		slog.WarnContext(ctx, "Failed to publish expense change event",
			"household_id", householdID,
			"month", month.String(),
			"error", err)
	}
}
