package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nachochiappe/fairsplit-sub000/internal/core"
)

// FixedMaterializer turns active expense templates into concrete expense
// rows, one per template per month, when a month is read. Generation is
// idempotent and best-effort: a broken template is skipped with a warning
// and never blocks the rest of the batch.
type FixedMaterializer struct {
	repo  Repository
	rates *RateResolver
}

func NewFixedMaterializer(repo Repository, rates *RateResolver) *FixedMaterializer {
	return &FixedMaterializer{repo: repo, rates: rates}
}

// EnsureForMonth materializes every active template that does not yet have a
// row for the month. It returns the collected warnings; callers surface them
// but do not treat them as failures.
func (m *FixedMaterializer) EnsureForMonth(ctx context.Context, householdID string, month core.Month) ([]string, error) {
	templates, err := m.repo.ListActiveTemplates(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("list active templates: %w", err)
	}
	existing, err := m.repo.ListExpensesByMonth(ctx, householdID, month)
	if err != nil {
		return nil, fmt.Errorf("list month expenses: %w", err)
	}

	generated := make(map[string]bool)
	for _, e := range existing {
		if e.Kind == core.KindFixed {
			generated[e.TemplateID] = true
		}
	}

	var warnings []string
	created := 0
	for _, t := range templates {
		// Templates never backfill months before their creation.
		if month.Before(t.CreatedMonth) {
			continue
		}
		if generated[t.ID] {
			continue
		}

		cat, err := m.repo.GetCategory(ctx, t.CategoryID)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("template %q skipped: category lookup failed: %v", t.Description, err))
			continue
		}
		if cat.Archived {
			warnings = append(warnings, fmt.Sprintf("template %q skipped: category %q is archived", t.Description, cat.Name))
			continue
		}

		rate, err := m.rates.Resolve(ctx, month, t.Currency, t.FXRate)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("template %q skipped: fx rate: %v", t.Description, err))
			continue
		}

		household, err := m.resolveHousehold(ctx, t)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("template %q skipped: %v", t.Description, err))
			continue
		}

		row := core.Expense{
			ID:             uuid.NewString(),
			Month:          month,
			Date:           month.Date(t.DayOfMonth),
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
		ok, err := m.repo.CreateExpense(ctx, row)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("template %q skipped: create expense: %v", t.Description, err))
			continue
		}
		if ok {
			created++
		}
	}

	slog.InfoContext(ctx, "Fixed expense materialization complete",
		"household_id", householdID,
		"month", month.String(),
		"created", created,
		"warnings", len(warnings))
	return warnings, nil
}

// resolveHousehold prefers the template's own household, falling back to the
// payer's.
func (m *FixedMaterializer) resolveHousehold(ctx context.Context, t core.Template) (string, error) {
	if t.HouseholdID != "" {
		return t.HouseholdID, nil
	}
	payer, err := m.repo.GetUser(ctx, t.PaidBy)
	if err != nil {
		return "", fmt.Errorf("payer lookup failed: %w", err)
	}
	if payer.HouseholdID == "" {
		return "", core.ErrMissingHousehold
	}
	return payer.HouseholdID, nil
}

// ApplyToFutureMonths saves the updated template and rewrites every
// already-generated row after fromMonth with the new values: description,
// category, amount, currency, rate, payer, and the date recomputed from the
// new day-of-month against each row's own month. The template and all row
// rewrites commit in one transaction. It returns the months whose rows were
// rewritten so the caller can drop their settlement snapshots.
func (m *FixedMaterializer) ApplyToFutureMonths(ctx context.Context, t core.Template, fromMonth core.Month) ([]core.Month, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	rate := core.RateARS
	if t.Currency != core.CurrencyARS {
		if !t.FXRate.IsPositive() {
			return nil, core.ErrInvalidRate
		}
		rate = core.RoundRate(t.FXRate)
	}

	rows, err := m.repo.ListTemplateRowsAfter(ctx, t.ID, fromMonth)
	if err != nil {
		return nil, fmt.Errorf("list generated rows: %w", err)
	}
	months := make([]core.Month, 0, len(rows))
	for i := range rows {
		rows[i].Description = t.Description
		rows[i].CategoryID = t.CategoryID
		rows[i].AmountOriginal = t.AmountOriginal
		rows[i].Currency = t.Currency
		rows[i].FXRate = rate
		rows[i].AmountARS = core.ConvertToARS(t.AmountOriginal, rate)
		rows[i].PaidBy = t.PaidBy
		rows[i].Date = rows[i].Month.Date(t.DayOfMonth)
		months = append(months, rows[i].Month)
	}

	if err := m.repo.UpdateTemplateWithRows(ctx, t, rows); err != nil {
		return nil, fmt.Errorf("apply template forward: %w", err)
	}
	slog.InfoContext(ctx, "Template applied to future months",
		"template_id", t.ID,
		"from_month", fromMonth.String(),
		"rows_rewritten", len(rows))
	return months, nil
}
