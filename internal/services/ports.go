// Package services orchestrates the finance engine over a storage
// repository: lazy materialization of recurring and installment expenses,
// scoped series edits, and monthly settlement snapshots.
package services

import (
	"context"
	"errors"

	"github.com/nachochiappe/fairsplit-sub000/internal/core"
)

// ErrNotFound is returned (wrapped) by repositories when a record does not
// exist.
var ErrNotFound = errors.New("not found")

// Repository is the storage port the services drive. Implementations must
// make every multi-row method atomic and enforce the per-month uniqueness
// constraints with skip-on-conflict semantics.
type Repository interface {
	// Users and categories.
	GetUser(ctx context.Context, id string) (*core.User, error)
	ListUsers(ctx context.Context, householdID string) ([]core.User, error)
	GetCategory(ctx context.Context, id string) (*core.Category, error)

	// Expense rows.
	GetExpense(ctx context.Context, id string) (*core.Expense, error)
	ListExpensesByMonth(ctx context.Context, householdID string, month core.Month) ([]core.Expense, error)
	ListInstallmentRows(ctx context.Context, householdID string) ([]core.Expense, error)
	ListSeriesRows(ctx context.Context, seriesID string) ([]core.Expense, error)
	ListTemplateRowsAfter(ctx context.Context, templateID string, after core.Month) ([]core.Expense, error)

	// CreateExpense inserts with skip-on-conflict semantics against the
	// (template, month) and (series, month) uniqueness constraints. It
	// reports false when a concurrent call already created the row.
	CreateExpense(ctx context.Context, e core.Expense) (bool, error)
	UpdateExpense(ctx context.Context, e core.Expense) error
	// DeleteExpenses removes all given rows in one transaction.
	DeleteExpenses(ctx context.Context, ids []string) error
	// RewriteSeries applies the row updates and deletions of a scoped
	// series edit in one transaction.
	RewriteSeries(ctx context.Context, updates []core.Expense, deleteIDs []string) error

	// Templates.
	GetTemplate(ctx context.Context, id string) (*core.Template, error)
	ListActiveTemplates(ctx context.Context, householdID string) ([]core.Template, error)
	CreateTemplate(ctx context.Context, t core.Template) error
	// UpdateTemplateWithRows rewrites the template and the given generated
	// rows in one transaction.
	UpdateTemplateWithRows(ctx context.Context, t core.Template, rows []core.Expense) error

	// Incomes.
	CreateIncome(ctx context.Context, in core.Income) error
	ListIncomesByMonth(ctx context.Context, householdID string, month core.Month) ([]core.Income, error)

	// Monthly FX rates, unique per (month, currency).
	// GetMonthlyRate returns (nil, nil) when no row pins the month.
	GetMonthlyRate(ctx context.Context, month core.Month, currency string) (*core.MonthlyRate, error)
	// CreateMonthlyRate inserts with skip-on-conflict semantics.
	CreateMonthlyRate(ctx context.Context, r core.MonthlyRate) error
}
