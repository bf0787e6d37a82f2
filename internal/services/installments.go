package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nachochiappe/fairsplit-sub000/internal/core"
)

// InstallmentService materializes installment series lazily and propagates
// scoped edits and deletes across a series.
type InstallmentService struct {
	repo Repository
}

func NewInstallmentService(repo Repository) *InstallmentService {
	return &InstallmentService{repo: repo}
}

// EnsureForMonth generates the month's row for every series that is due one.
// Each series is independent; a series that cannot be materialized is logged
// and skipped, never failing the batch.
func (s *InstallmentService) EnsureForMonth(ctx context.Context, householdID string, month core.Month) error {
	rows, err := s.repo.ListInstallmentRows(ctx, householdID)
	if err != nil {
		return fmt.Errorf("list installment rows: %w", err)
	}

	bySeries := make(map[string][]core.Expense)
	for _, e := range rows {
		bySeries[e.SeriesID] = append(bySeries[e.SeriesID], e)
	}
	seriesIDs := make([]string, 0, len(bySeries))
	for id := range bySeries {
		seriesIDs = append(seriesIDs, id)
	}
	sort.Strings(seriesIDs)

	created := 0
	for _, seriesID := range seriesIDs {
		ok, err := s.ensureSeriesRow(ctx, seriesID, bySeries[seriesID], month)
		if err != nil {
			return err
		}
		if ok {
			created++
		}
	}
	if created > 0 {
		slog.InfoContext(ctx, "Installment rows materialized",
			"household_id", householdID,
			"month", month.String(),
			"created", created)
	}
	return nil
}

func (s *InstallmentService) ensureSeriesRow(ctx context.Context, seriesID string, rows []core.Expense, month core.Month) (bool, error) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Month.Before(rows[j].Month) })

	var anchor *core.Expense
	for i := range rows {
		if rows[i].InstallmentNumber == 1 {
			anchor = &rows[i]
			break
		}
	}
	if anchor == nil {
		slog.WarnContext(ctx, "Installment series has no anchor row, skipping",
			"series_id", seriesID)
		return false, nil
	}

	target := anchor.InstallmentNumber + anchor.Month.Diff(month)
	if target < 1 || target > anchor.InstallmentTotal {
		return false, nil
	}
	for _, e := range rows {
		if e.Month.Compare(month) == 0 {
			return false, nil
		}
	}

	sched, err := core.ComputeInstallments(core.ScheduleInput{
		Count:          anchor.InstallmentTotal,
		Mode:           anchor.Source,
		PerInstallment: anchor.InstallmentAmount,
		Total:          anchor.OriginalTotal,
	})
	if err != nil {
		slog.WarnContext(ctx, "Installment series has an invalid schedule basis, skipping",
			"series_id", seriesID,
			"error", err)
		return false, nil
	}

	// Carry descriptive fields forward from the latest row before the
	// target month, so single-row edits stick for the rest of the series.
	src := *anchor
	for _, e := range rows {
		if e.Month.Before(month) {
			src = e
		}
	}
	if src.HouseholdID == "" {
		slog.WarnContext(ctx, "Installment series has no household, skipping",
			"series_id", seriesID)
		return false, nil
	}

	amount, err := sched.Amount(target)
	if err != nil {
		return false, err
	}
	row := core.Expense{
		ID:                uuid.NewString(),
		Month:             month,
		Date:              month.Date(src.Date.Day()),
		Description:       src.Description,
		CategoryID:        src.CategoryID,
		AmountOriginal:    amount,
		AmountARS:         core.ConvertToARS(amount, src.FXRate),
		Currency:          src.Currency,
		FXRate:            src.FXRate,
		HouseholdID:       src.HouseholdID,
		PaidBy:            src.PaidBy,
		Kind:              core.KindInstallment,
		SeriesID:          seriesID,
		InstallmentNumber: target,
		InstallmentTotal:  anchor.InstallmentTotal,
		InstallmentAmount: anchor.InstallmentAmount,
		OriginalTotal:     anchor.OriginalTotal,
		Source:            anchor.Source,
		CreatedFromSeries: true,
	}
	inserted, err := s.repo.CreateExpense(ctx, row)
	if err != nil {
		return false, fmt.Errorf("create installment row: %w", err)
	}
	return inserted, nil
}

// Update applies a patch to an installment row with the given scope. A
// single-scope update rewrites just that row; future and all rebuild the
// schedule across the selected part of the series in one transaction. Month
// changes and disabling installments are only valid with single scope.
func (s *InstallmentService) Update(ctx context.Context, id string, scope core.Scope, patch core.InstallmentPatch) error {
	existing, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return err
	}

	if scope != core.ScopeSingle && (patch.ChangesMonth(existing.Month) || patch.Disable) {
		return core.ErrScopeConflict
	}
	if scope == core.ScopeSingle || existing.SeriesID == "" {
		return s.updateSingle(ctx, *existing, patch)
	}
	return s.rewriteSeries(ctx, *existing, scope, patch)
}

func (s *InstallmentService) updateSingle(ctx context.Context, existing core.Expense, patch core.InstallmentPatch) error {
	updated := patch.ExpensePatch.Apply(existing)
	if patch.Disable {
		updated.Kind = core.KindOneTime
		updated.SeriesID = ""
		updated.InstallmentNumber = 0
		updated.InstallmentTotal = 0
		updated.InstallmentAmount = decimal.Decimal{}
		updated.OriginalTotal = decimal.Decimal{}
		updated.Source = ""
		updated.CreatedFromSeries = false
	}
	if err := updated.Validate(); err != nil {
		return err
	}
	return s.repo.UpdateExpense(ctx, updated)
}

func (s *InstallmentService) rewriteSeries(ctx context.Context, existing core.Expense, scope core.Scope, patch core.InstallmentPatch) error {
	rows, err := s.repo.ListSeriesRows(ctx, existing.SeriesID)
	if err != nil {
		return fmt.Errorf("list series rows: %w", err)
	}

	var anchor *core.Expense
	for i := range rows {
		if rows[i].InstallmentNumber == 1 {
			anchor = &rows[i]
			break
		}
	}
	if anchor == nil {
		anchor = &existing
	}

	in := patch.ScheduleInput(*anchor)
	sched, err := core.ComputeInstallments(in)
	if err != nil {
		return err
	}

	var updates []core.Expense
	var deleteIDs []string
	for _, row := range rows {
		if scope == core.ScopeFuture && row.Month.Before(existing.Month) {
			continue
		}
		if row.InstallmentNumber > in.Count {
			deleteIDs = append(deleteIDs, row.ID)
			continue
		}

		e := row
		if patch.Description != nil {
			e.Description = *patch.Description
		}
		if patch.CategoryID != nil {
			e.CategoryID = *patch.CategoryID
		}
		if patch.PaidBy != nil {
			e.PaidBy = *patch.PaidBy
		}
		if patch.Currency != nil {
			e.Currency = *patch.Currency
		}
		if patch.FXRate != nil {
			e.FXRate = *patch.FXRate
		}
		// A date edit carries only the day, clamped into each row's month.
		if patch.Date != nil {
			e.Date = e.Month.Date(patch.Date.Day())
		}
		e.InstallmentTotal = in.Count
		e.InstallmentAmount = in.PerInstallment
		e.OriginalTotal = in.Total
		e.Source = in.Mode
		amount, err := sched.Amount(e.InstallmentNumber)
		if err != nil {
			return err
		}
		e.AmountOriginal = amount
		e.AmountARS = core.ConvertToARS(amount, e.FXRate)
		if err := e.Validate(); err != nil {
			return err
		}
		updates = append(updates, e)
	}

	if err := s.repo.RewriteSeries(ctx, updates, deleteIDs); err != nil {
		return fmt.Errorf("rewrite series: %w", err)
	}
	slog.InfoContext(ctx, "Installment series rewritten",
		"series_id", existing.SeriesID,
		"scope", string(scope),
		"updated", len(updates),
		"deleted", len(deleteIDs))
	return nil
}

// Delete removes an installment row with the given scope: one row, the whole
// series, or the row and everything after it.
func (s *InstallmentService) Delete(ctx context.Context, id string, scope core.Scope) error {
	existing, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if scope == core.ScopeSingle || existing.SeriesID == "" {
		return s.repo.DeleteExpenses(ctx, []string{existing.ID})
	}

	rows, err := s.repo.ListSeriesRows(ctx, existing.SeriesID)
	if err != nil {
		return fmt.Errorf("list series rows: %w", err)
	}
	var ids []string
	for _, row := range rows {
		if scope == core.ScopeFuture && row.Month.Before(existing.Month) {
			continue
		}
		ids = append(ids, row.ID)
	}
	if err := s.repo.DeleteExpenses(ctx, ids); err != nil {
		return fmt.Errorf("delete series rows: %w", err)
	}
	slog.InfoContext(ctx, "Installment rows deleted",
		"series_id", existing.SeriesID,
		"scope", string(scope),
		"deleted", len(ids))
	return nil
}
