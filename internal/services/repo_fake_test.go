package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nachochiappe/fairsplit-sub000/internal/core"
)

// fakeRepo is an in-memory Repository for service tests. It enforces the
// same per-month uniqueness the real store does, so idempotency paths get
// exercised for real.
type fakeRepo struct {
	mu         sync.Mutex
	users      map[string]core.User
	categories map[string]core.Category
	expenses   map[string]core.Expense
	templates  map[string]core.Template
	incomes    []core.Income
	rates      map[string]core.MonthlyRate

	createErr error // forced failure for CreateExpense
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:      make(map[string]core.User),
		categories: make(map[string]core.Category),
		expenses:   make(map[string]core.Expense),
		templates:  make(map[string]core.Template),
		rates:      make(map[string]core.MonthlyRate),
	}
}

func rateKey(month core.Month, currency string) string {
	return month.String() + "|" + currency
}

func (f *fakeRepo) GetUser(_ context.Context, id string) (*core.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return &u, nil
}

func (f *fakeRepo) ListUsers(_ context.Context, householdID string) ([]core.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.User
	for _, u := range f.users {
		if u.HouseholdID == householdID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) GetCategory(_ context.Context, id string) (*core.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.categories[id]
	if !ok {
		return nil, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	return &c, nil
}

func (f *fakeRepo) GetExpense(_ context.Context, id string) (*core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.expenses[id]
	if !ok {
		return nil, fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}
	return &e, nil
}

func (f *fakeRepo) ListExpensesByMonth(_ context.Context, householdID string, month core.Month) ([]core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Expense
	for _, e := range f.expenses {
		if e.HouseholdID == householdID && e.Month.Compare(month) == 0 {
			out = append(out, e)
		}
	}
	sortExpenses(out)
	return out, nil
}

func (f *fakeRepo) ListInstallmentRows(_ context.Context, householdID string) ([]core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Expense
	for _, e := range f.expenses {
		if e.HouseholdID == householdID && e.Kind == core.KindInstallment {
			out = append(out, e)
		}
	}
	sortExpenses(out)
	return out, nil
}

func (f *fakeRepo) ListSeriesRows(_ context.Context, seriesID string) ([]core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Expense
	for _, e := range f.expenses {
		if e.SeriesID == seriesID {
			out = append(out, e)
		}
	}
	sortExpenses(out)
	return out, nil
}

func (f *fakeRepo) ListTemplateRowsAfter(_ context.Context, templateID string, after core.Month) ([]core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Expense
	for _, e := range f.expenses {
		if e.TemplateID == templateID && e.Month.After(after) {
			out = append(out, e)
		}
	}
	sortExpenses(out)
	return out, nil
}

func (f *fakeRepo) CreateExpense(_ context.Context, e core.Expense) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return false, f.createErr
	}
	for _, existing := range f.expenses {
		if e.TemplateID != "" && existing.TemplateID == e.TemplateID && existing.Month.Compare(e.Month) == 0 {
			return false, nil
		}
		if e.SeriesID != "" && existing.SeriesID == e.SeriesID && existing.Month.Compare(e.Month) == 0 {
			return false, nil
		}
	}
	f.expenses[e.ID] = e
	return true, nil
}

func (f *fakeRepo) UpdateExpense(_ context.Context, e core.Expense) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.expenses[e.ID]; !ok {
		return fmt.Errorf("expense %s: %w", e.ID, ErrNotFound)
	}
	f.expenses[e.ID] = e
	return nil
}

func (f *fakeRepo) DeleteExpenses(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.expenses, id)
	}
	return nil
}

func (f *fakeRepo) RewriteSeries(_ context.Context, updates []core.Expense, deleteIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range deleteIDs {
		delete(f.expenses, id)
	}
	for _, e := range updates {
		f.expenses[e.ID] = e
	}
	return nil
}

func (f *fakeRepo) GetTemplate(_ context.Context, id string) (*core.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	return &t, nil
}

func (f *fakeRepo) ListActiveTemplates(_ context.Context, householdID string) ([]core.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Template
	for _, t := range f.templates {
		if t.Active && (t.HouseholdID == householdID || t.HouseholdID == "") {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) CreateTemplate(_ context.Context, t core.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templates[t.ID] = t
	return nil
}

func (f *fakeRepo) UpdateTemplateWithRows(_ context.Context, t core.Template, rows []core.Expense) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templates[t.ID] = t
	for _, e := range rows {
		f.expenses[e.ID] = e
	}
	return nil
}

func (f *fakeRepo) CreateIncome(_ context.Context, in core.Income) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incomes = append(f.incomes, in)
	return nil
}

func (f *fakeRepo) ListIncomesByMonth(_ context.Context, householdID string, month core.Month) ([]core.Income, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Income
	for _, in := range f.incomes {
		if in.HouseholdID == householdID && in.Month.Compare(month) == 0 {
			out = append(out, in)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetMonthlyRate(_ context.Context, month core.Month, currency string) (*core.MonthlyRate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rates[rateKey(month, currency)]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (f *fakeRepo) CreateMonthlyRate(_ context.Context, r core.MonthlyRate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := rateKey(r.Month, r.Currency)
	if _, ok := f.rates[key]; ok {
		return nil
	}
	f.rates[key] = r
	return nil
}

func sortExpenses(rows []core.Expense) {
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Month.Compare(rows[j].Month); c != 0 {
			return c < 0
		}
		if rows[i].InstallmentNumber != rows[j].InstallmentNumber {
			return rows[i].InstallmentNumber < rows[j].InstallmentNumber
		}
		return rows[i].ID < rows[j].ID
	})
}
