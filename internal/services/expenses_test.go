package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/nachochiappe/fairsplit-sub000/internal/core"
)

type fakePublisher struct {
	published []string
}

func (f *fakePublisher) PublishExpenseChanged(_ context.Context, householdID, month string) error {
	f.published = append(f.published, householdID+"/"+month)
	return nil
}

func newExpenseService(repo *fakeRepo, pub *fakePublisher) *ExpenseService {
	rates := NewRateResolver(repo)
	return NewExpenseService(repo, rates, NewFixedMaterializer(repo, rates), NewInstallmentService(repo), pub, nil)
}

func seedHousehold(repo *fakeRepo) {
	repo.users["user-a"] = core.User{ID: "user-a", Name: "Ana", HouseholdID: "hh-1"}
	repo.users["user-b"] = core.User{ID: "user-b", Name: "Bruno", HouseholdID: "hh-1"}
	repo.categories["cat-food"] = core.Category{ID: "cat-food", Name: "Food"}
}

func TestCreateOneTimeExpense(t *testing.T) {
	repo := newFakeRepo()
	seedHousehold(repo)
	pub := &fakePublisher{}
	svc := newExpenseService(repo, pub)

	row, err := svc.Create(context.Background(), CreateExpenseInput{
		Month:       core.Month{Year: 2026, Mon: 2},
		Day:         14,
		Description: "Groceries",
		CategoryID:  "cat-food",
		Amount:      decimal.RequireFromString("12345.678"),
		Currency:    core.CurrencyARS,
		PaidBy:      "user-a",
		HouseholdID: "hh-1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if row.Kind != core.KindOneTime {
		t.Errorf("kind = %s, want one_time", row.Kind)
	}
	if core.AmountString(row.AmountARS) != "12345.68" {
		t.Errorf("ars amount = %s, want 12345.68", core.AmountString(row.AmountARS))
	}
	if err := row.Validate(); err != nil {
		t.Errorf("created row invalid: %v", err)
	}
	if len(pub.published) != 1 || pub.published[0] != "hh-1/2026-02" {
		t.Errorf("published = %v, want one hh-1/2026-02 event", pub.published)
	}
}

func TestCreateResolvesHouseholdFromPayer(t *testing.T) {
	repo := newFakeRepo()
	seedHousehold(repo)
	svc := newExpenseService(repo, &fakePublisher{})

	row, err := svc.Create(context.Background(), CreateExpenseInput{
		Month:       core.Month{Year: 2026, Mon: 2},
		Day:         1,
		Description: "Pharmacy",
		CategoryID:  "cat-food",
		Amount:      decimal.RequireFromString("50"),
		Currency:    core.CurrencyARS,
		PaidBy:      "user-b",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if row.HouseholdID != "hh-1" {
		t.Errorf("household = %q, want hh-1 from payer", row.HouseholdID)
	}
}

func TestCreateRecurringExpense(t *testing.T) {
	repo := newFakeRepo()
	seedHousehold(repo)
	svc := newExpenseService(repo, &fakePublisher{})
	ctx := context.Background()
	month := core.Month{Year: 2026, Mon: 2}

	row, err := svc.Create(ctx, CreateExpenseInput{
		Month:       month,
		Day:         5,
		Description: "Internet",
		CategoryID:  "cat-food",
		Amount:      decimal.RequireFromString("30000"),
		Currency:    core.CurrencyARS,
		PaidBy:      "user-a",
		HouseholdID: "hh-1",
		Recurring:   true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if row.Kind != core.KindFixed || row.TemplateID == "" {
		t.Fatalf("first row kind/template = %s/%q", row.Kind, row.TemplateID)
	}
	tpl, err := repo.GetTemplate(ctx, row.TemplateID)
	if err != nil {
		t.Fatalf("template not stored: %v", err)
	}
	if tpl.CreatedMonth != month || !tpl.Active {
		t.Errorf("template created/active = %s/%v", tpl.CreatedMonth, tpl.Active)
	}

	// The next month materializes from the template.
	fixed := NewFixedMaterializer(repo, NewRateResolver(repo))
	if _, err := fixed.EnsureForMonth(ctx, "hh-1", month.Add(1)); err != nil {
		t.Fatalf("EnsureForMonth: %v", err)
	}
	next, _ := repo.ListExpensesByMonth(ctx, "hh-1", month.Add(1))
	if len(next) != 1 || next[0].TemplateID != tpl.ID {
		t.Errorf("next month rows = %v, want one row from template", next)
	}
	// The creation month does not double-generate.
	if _, err := fixed.EnsureForMonth(ctx, "hh-1", month); err != nil {
		t.Fatalf("EnsureForMonth: %v", err)
	}
	cur, _ := repo.ListExpensesByMonth(ctx, "hh-1", month)
	if len(cur) != 1 {
		t.Errorf("creation month has %d rows, want 1", len(cur))
	}
}

func TestCreateInstallmentSeries(t *testing.T) {
	repo := newFakeRepo()
	seedHousehold(repo)
	svc := newExpenseService(repo, &fakePublisher{})
	ctx := context.Background()

	anchor, err := svc.Create(ctx, CreateExpenseInput{
		Month:       core.Month{Year: 2026, Mon: 2},
		Day:         20,
		Description: "Washing machine",
		CategoryID:  "cat-food",
		Amount:      decimal.RequireFromString("100"),
		Currency:    core.CurrencyARS,
		PaidBy:      "user-a",
		HouseholdID: "hh-1",
		Installments: &InstallmentInput{
			Count: 3,
			Mode:  core.EntryTotal,
			Total: decimal.RequireFromString("100"),
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !anchor.IsAnchor() || anchor.InstallmentTotal != 3 {
		t.Fatalf("anchor = %+v", anchor)
	}
	if core.AmountString(anchor.AmountOriginal) != "33.33" {
		t.Errorf("anchor amount = %s, want 33.33", core.AmountString(anchor.AmountOriginal))
	}

	inst := NewInstallmentService(repo)
	if err := inst.EnsureForMonth(ctx, "hh-1", core.Month{Year: 2026, Mon: 4}); err != nil {
		t.Fatalf("EnsureForMonth: %v", err)
	}
	rows, _ := repo.ListSeriesRows(ctx, anchor.SeriesID)
	if len(rows) != 2 {
		t.Fatalf("series has %d rows, want anchor plus month 3", len(rows))
	}
	if core.AmountString(rows[1].AmountOriginal) != "33.34" {
		t.Errorf("installment 3 amount = %s, want 33.34", core.AmountString(rows[1].AmountOriginal))
	}
}

func TestCreateRejectsRecurringWithInstallments(t *testing.T) {
	svc := newExpenseService(newFakeRepo(), &fakePublisher{})
	_, err := svc.Create(context.Background(), CreateExpenseInput{
		Month:        core.Month{Year: 2026, Mon: 2},
		Description:  "Bad",
		Amount:       decimal.RequireFromString("10"),
		Currency:     core.CurrencyARS,
		Recurring:    true,
		Installments: &InstallmentInput{Count: 3, Mode: core.EntryTotal, Total: decimal.RequireFromString("10")},
	})
	if !errors.Is(err, core.ErrMixedKind) {
		t.Errorf("err = %v, want ErrMixedKind", err)
	}
}

func TestCreateForeignCurrencyPinsRate(t *testing.T) {
	repo := newFakeRepo()
	seedHousehold(repo)
	svc := newExpenseService(repo, &fakePublisher{})
	ctx := context.Background()
	month := core.Month{Year: 2026, Mon: 2}

	row, err := svc.Create(ctx, CreateExpenseInput{
		Month:       month,
		Day:         3,
		Description: "Hosting",
		CategoryID:  "cat-food",
		Amount:      decimal.RequireFromString("10"),
		Currency:    core.CurrencyUSD,
		FXRate:      decimal.RequireFromString("1200"),
		PaidBy:      "user-a",
		HouseholdID: "hh-1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if core.AmountString(row.AmountARS) != "12000.00" {
		t.Errorf("ars amount = %s, want 12000.00", core.AmountString(row.AmountARS))
	}
	pinned, _ := repo.GetMonthlyRate(ctx, month, core.CurrencyUSD)
	if pinned == nil || core.RateString(pinned.RateToARS) != "1200.000000" {
		t.Errorf("pinned rate = %v, want 1200.000000", pinned)
	}
}

func TestCreateIncome(t *testing.T) {
	repo := newFakeRepo()
	seedHousehold(repo)
	pub := &fakePublisher{}
	svc := newExpenseService(repo, pub)
	ctx := context.Background()
	month := core.Month{Year: 2026, Mon: 2}

	income, err := svc.CreateIncome(ctx, IncomeInput{
		Month:    month,
		UserID:   "user-a",
		Amount:   decimal.RequireFromString("4000"),
		Currency: core.CurrencyARS,
	})
	if err != nil {
		t.Fatalf("CreateIncome: %v", err)
	}
	if income.HouseholdID != "hh-1" {
		t.Errorf("household = %q, want from user", income.HouseholdID)
	}
	listed, _ := repo.ListIncomesByMonth(ctx, "hh-1", month)
	if len(listed) != 1 || core.AmountString(listed[0].AmountARS) != "4000.00" {
		t.Errorf("stored incomes = %v", listed)
	}
	if len(pub.published) != 1 {
		t.Errorf("published = %v, want one event", pub.published)
	}

	if _, err := svc.CreateIncome(ctx, IncomeInput{Month: month, UserID: "user-a", Currency: core.CurrencyARS}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("zero income err = %v, want ErrInvalidAmount", err)
	}
}

func TestPinMonthlyRate(t *testing.T) {
	repo := newFakeRepo()
	svc := newExpenseService(repo, &fakePublisher{})
	ctx := context.Background()
	month := core.Month{Year: 2026, Mon: 2}

	if err := svc.PinMonthlyRate(ctx, month, core.CurrencyUSD, decimal.RequireFromString("1250")); err != nil {
		t.Fatalf("PinMonthlyRate: %v", err)
	}
	// First pin wins.
	if err := svc.PinMonthlyRate(ctx, month, core.CurrencyUSD, decimal.RequireFromString("1999")); err != nil {
		t.Fatalf("second PinMonthlyRate: %v", err)
	}
	pinned, _ := repo.GetMonthlyRate(ctx, month, core.CurrencyUSD)
	if core.RateString(pinned.RateToARS) != "1250.000000" {
		t.Errorf("pinned rate = %s, want 1250.000000", core.RateString(pinned.RateToARS))
	}

	if err := svc.PinMonthlyRate(ctx, month, core.CurrencyARS, decimal.RequireFromString("2")); !errors.Is(err, core.ErrInvalidCurrency) {
		t.Errorf("ARS pin err = %v, want ErrInvalidCurrency", err)
	}
	if err := svc.PinMonthlyRate(ctx, month, core.CurrencyEUR, decimal.Decimal{}); !errors.Is(err, core.ErrInvalidRate) {
		t.Errorf("zero rate err = %v, want ErrInvalidRate", err)
	}
}

func TestUpdateDefaultsScopeByShape(t *testing.T) {
	repo := newFakeRepo()
	seedHousehold(repo)
	seedSeries(repo)
	row2 := instRow("exp-2", "ser-1", core.Month{Year: 2026, Mon: 2}, 2, 3, "33.33", "100")
	repo.expenses[row2.ID] = row2
	pub := &fakePublisher{}
	svc := newExpenseService(repo, pub)
	ctx := context.Background()

	// Empty scope on a series row defaults to future: the edit propagates.
	desc := "TV 55in (insured)"
	if err := svc.Update(ctx, "exp-2", "", core.InstallmentPatch{
		ExpensePatch: core.ExpensePatch{Description: &desc},
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := repo.GetExpense(ctx, "exp-2")
	if got.Description != desc {
		t.Errorf("row 2 description = %q", got.Description)
	}
	anchor, _ := repo.GetExpense(ctx, "exp-1")
	if anchor.Description != "TV 55in" {
		t.Errorf("anchor description = %q, future scope must not touch it", anchor.Description)
	}
	if len(pub.published) != 1 {
		t.Errorf("published = %v, want one event", pub.published)
	}

	if err := svc.Update(ctx, "exp-1", "everything", core.InstallmentPatch{}); !errors.Is(err, core.ErrInvalidScope) {
		t.Errorf("bad scope err = %v, want ErrInvalidScope", err)
	}
}

func TestDeletePublishesChange(t *testing.T) {
	repo := newFakeRepo()
	seedHousehold(repo)
	seedSeries(repo)
	pub := &fakePublisher{}
	svc := newExpenseService(repo, pub)

	if err := svc.Delete(context.Background(), "exp-1", "all"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n := len(repo.expenses); n != 0 {
		t.Errorf("%d expenses remain", n)
	}
	if len(pub.published) != 1 || pub.published[0] != "hh-1/2026-01" {
		t.Errorf("published = %v", pub.published)
	}
}

func TestMonthExpensesMaterializesAndLists(t *testing.T) {
	repo := newFakeRepo()
	seedHousehold(repo)
	seedTemplate(repo, "tpl-rent")
	seedSeries(repo)
	svc := newExpenseService(repo, &fakePublisher{})

	rows, warnings, err := svc.MonthExpenses(context.Background(), "hh-1", core.Month{Year: 2026, Mon: 2})
	if err != nil {
		t.Fatalf("MonthExpenses: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v", warnings)
	}
	// One row from the template, one from the series.
	if len(rows) != 2 {
		t.Fatalf("month has %d rows, want 2", len(rows))
	}
}
