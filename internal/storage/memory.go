package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nachochiappe/fairsplit-sub000/internal/core"
	"github.com/nachochiappe/fairsplit-sub000/internal/services"
)

// MemoryRepository keeps everything in process memory. It honors the same
// uniqueness and atomicity contract as the sqlite backend and is used for
// throwaway runs and tests.
type MemoryRepository struct {
	mu         sync.RWMutex
	users      map[string]core.User
	categories map[string]core.Category
	expenses   map[string]core.Expense
	templates  map[string]core.Template
	incomes    map[string]core.Income
	rates      map[string]core.MonthlyRate
}

var _ services.Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:      make(map[string]core.User),
		categories: make(map[string]core.Category),
		expenses:   make(map[string]core.Expense),
		templates:  make(map[string]core.Template),
		incomes:    make(map[string]core.Income),
		rates:      make(map[string]core.MonthlyRate),
	}
}

func (r *MemoryRepository) Close() error { return nil }

func monthCurrencyKey(month core.Month, currency string) string {
	return month.String() + "|" + currency
}

func (r *MemoryRepository) GetUser(_ context.Context, id string) (*core.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, services.ErrNotFound)
	}
	return &u, nil
}

func (r *MemoryRepository) ListUsers(_ context.Context, householdID string) ([]core.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.User
	for _, u := range r.users {
		if u.HouseholdID == householdID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) SaveUser(_ context.Context, u core.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
	return nil
}

func (r *MemoryRepository) GetCategory(_ context.Context, id string) (*core.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.categories[id]
	if !ok {
		return nil, fmt.Errorf("category %s: %w", id, services.ErrNotFound)
	}
	return &c, nil
}

func (r *MemoryRepository) SaveCategory(_ context.Context, c core.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories[c.ID] = c
	return nil
}

func (r *MemoryRepository) GetExpense(_ context.Context, id string) (*core.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.expenses[id]
	if !ok {
		return nil, fmt.Errorf("expense %s: %w", id, services.ErrNotFound)
	}
	return &e, nil
}

func (r *MemoryRepository) listExpenses(match func(core.Expense) bool) []core.Expense {
	var out []core.Expense
	for _, e := range r.expenses {
		if match(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Month.Compare(out[j].Month); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *MemoryRepository) ListExpensesByMonth(_ context.Context, householdID string, month core.Month) ([]core.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listExpenses(func(e core.Expense) bool {
		return e.HouseholdID == householdID && e.Month.Compare(month) == 0
	}), nil
}

func (r *MemoryRepository) ListInstallmentRows(_ context.Context, householdID string) ([]core.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listExpenses(func(e core.Expense) bool {
		return e.HouseholdID == householdID && e.Kind == core.KindInstallment
	}), nil
}

func (r *MemoryRepository) ListSeriesRows(_ context.Context, seriesID string) ([]core.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listExpenses(func(e core.Expense) bool {
		return e.SeriesID == seriesID
	}), nil
}

func (r *MemoryRepository) ListTemplateRowsAfter(_ context.Context, templateID string, after core.Month) ([]core.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listExpenses(func(e core.Expense) bool {
		return e.TemplateID == templateID && e.Month.After(after)
	}), nil
}

func (r *MemoryRepository) CreateExpense(_ context.Context, e core.Expense) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.expenses[e.ID]; ok {
		return false, nil
	}
	for _, existing := range r.expenses {
		if e.TemplateID != "" && existing.TemplateID == e.TemplateID && existing.Month.Compare(e.Month) == 0 {
			return false, nil
		}
		if e.SeriesID != "" && existing.SeriesID == e.SeriesID && existing.Month.Compare(e.Month) == 0 {
			return false, nil
		}
	}
	r.expenses[e.ID] = e
	return true, nil
}

func (r *MemoryRepository) UpdateExpense(_ context.Context, e core.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.expenses[e.ID]; !ok {
		return fmt.Errorf("expense %s: %w", e.ID, services.ErrNotFound)
	}
	r.expenses[e.ID] = e
	return nil
}

func (r *MemoryRepository) DeleteExpenses(_ context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.expenses, id)
	}
	return nil
}

func (r *MemoryRepository) RewriteSeries(_ context.Context, updates []core.Expense, deleteIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range deleteIDs {
		delete(r.expenses, id)
	}
	for _, e := range updates {
		r.expenses[e.ID] = e
	}
	return nil
}

func (r *MemoryRepository) GetTemplate(_ context.Context, id string) (*core.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", id, services.ErrNotFound)
	}
	return &t, nil
}

func (r *MemoryRepository) ListActiveTemplates(_ context.Context, householdID string) ([]core.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.Template
	for _, t := range r.templates {
		if t.Active && (t.HouseholdID == householdID || t.HouseholdID == "") {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) CreateTemplate(_ context.Context, t core.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.ID] = t
	return nil
}

func (r *MemoryRepository) UpdateTemplateWithRows(_ context.Context, t core.Template, rows []core.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.ID] = t
	for _, e := range rows {
		r.expenses[e.ID] = e
	}
	return nil
}

func (r *MemoryRepository) CreateIncome(_ context.Context, in core.Income) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incomes[in.ID] = in
	return nil
}

func (r *MemoryRepository) ListIncomesByMonth(_ context.Context, householdID string, month core.Month) ([]core.Income, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.Income
	for _, in := range r.incomes {
		if in.HouseholdID == householdID && in.Month.Compare(month) == 0 {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) GetMonthlyRate(_ context.Context, month core.Month, currency string) (*core.MonthlyRate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mr, ok := r.rates[monthCurrencyKey(month, currency)]
	if !ok {
		return nil, nil
	}
	return &mr, nil
}

func (r *MemoryRepository) CreateMonthlyRate(_ context.Context, mr core.MonthlyRate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := monthCurrencyKey(mr.Month, mr.Currency)
	if _, ok := r.rates[key]; ok {
		return nil
	}
	r.rates[key] = mr
	return nil
}
