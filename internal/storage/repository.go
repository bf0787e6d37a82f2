// Package storage persists the tracker's records in sqlite, with an
// in-memory implementation of the same surface for tests and throwaway runs.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/nachochiappe/fairsplit-sub000/internal/core"
	"github.com/nachochiappe/fairsplit-sub000/internal/services"
)

const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db *sql.DB
}

var _ services.Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func scanDec(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Decimal{}, nil
	}
	return decimal.NewFromString(s)
}

const expenseColumns = `id, month, date, description, category_id, amount_original, amount_ars,
	currency, fx_rate, household_id, paid_by, kind, template_id, series_id,
	installment_number, installment_total, installment_amount, original_total,
	source, created_from_series`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e                                        core.Expense
		month, date, original, ars, rate         string
		installmentAmount, originalTotal, source string
		createdFromSeries                        int64
	)
	err := row.Scan(&e.ID, &month, &date, &e.Description, &e.CategoryID,
		&original, &ars, &e.Currency, &rate, &e.HouseholdID, &e.PaidBy,
		(*string)(&e.Kind), &e.TemplateID, &e.SeriesID,
		&e.InstallmentNumber, &e.InstallmentTotal,
		&installmentAmount, &originalTotal, &source, &createdFromSeries)
	if err != nil {
		return core.Expense{}, err
	}
	if e.Month, err = core.ParseMonth(month); err != nil {
		return core.Expense{}, fmt.Errorf("stored month %q: %w", month, err)
	}
	if e.Date, err = time.Parse(dateLayout, date); err != nil {
		return core.Expense{}, fmt.Errorf("stored date %q: %w", date, err)
	}
	if e.AmountOriginal, err = scanDec(original); err != nil {
		return core.Expense{}, err
	}
	if e.AmountARS, err = scanDec(ars); err != nil {
		return core.Expense{}, err
	}
	if e.FXRate, err = scanDec(rate); err != nil {
		return core.Expense{}, err
	}
	if e.InstallmentAmount, err = scanDec(installmentAmount); err != nil {
		return core.Expense{}, err
	}
	if e.OriginalTotal, err = scanDec(originalTotal); err != nil {
		return core.Expense{}, err
	}
	e.Source = core.EntryMode(source)
	e.CreatedFromSeries = createdFromSeries != 0
	return e, nil
}

func expenseArgs(e core.Expense) []any {
	return []any{
		e.ID, e.Month.String(), e.Date.Format(dateLayout), e.Description,
		e.CategoryID, e.AmountOriginal.String(), e.AmountARS.String(),
		e.Currency, e.FXRate.String(), e.HouseholdID, e.PaidBy,
		string(e.Kind), e.TemplateID, e.SeriesID,
		e.InstallmentNumber, e.InstallmentTotal,
		e.InstallmentAmount.String(), e.OriginalTotal.String(),
		string(e.Source), boolInt(e.CreatedFromSeries),
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (*core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, household_id FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.HouseholdID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, services.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context, householdID string) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, household_id FROM users WHERE household_id = ? ORDER BY id`, householdID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []core.User
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.Name, &u.HouseholdID); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SaveUser(ctx context.Context, u core.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, household_id) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, household_id = excluded.household_id`,
		u.ID, u.Name, u.HouseholdID)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id string) (*core.Category, error) {
	var (
		c        core.Category
		archived int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, archived FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &archived)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %s: %w", id, services.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	c.Archived = archived != 0
	return &c, nil
}

func (r *SQLiteRepository) SaveCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, archived) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, archived = excluded.archived`,
		c.ID, c.Name, boolInt(c.Archived))
	if err != nil {
		return fmt.Errorf("save category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (*core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", id, services.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	return &e, nil
}

func (r *SQLiteRepository) queryExpenses(ctx context.Context, query string, args ...any) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListExpensesByMonth(ctx context.Context, householdID string, month core.Month) ([]core.Expense, error) {
	out, err := r.queryExpenses(ctx,
		`SELECT `+expenseColumns+` FROM expenses
		 WHERE household_id = ? AND month = ? ORDER BY date, id`,
		householdID, month.String())
	if err != nil {
		return nil, fmt.Errorf("list expenses by month: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) ListInstallmentRows(ctx context.Context, householdID string) ([]core.Expense, error) {
	out, err := r.queryExpenses(ctx,
		`SELECT `+expenseColumns+` FROM expenses
		 WHERE household_id = ? AND kind = 'installment' ORDER BY series_id, month`,
		householdID)
	if err != nil {
		return nil, fmt.Errorf("list installment rows: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) ListSeriesRows(ctx context.Context, seriesID string) ([]core.Expense, error) {
	out, err := r.queryExpenses(ctx,
		`SELECT `+expenseColumns+` FROM expenses
		 WHERE series_id = ? ORDER BY month`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("list series rows: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) ListTemplateRowsAfter(ctx context.Context, templateID string, after core.Month) ([]core.Expense, error) {
	// Month strings compare correctly as text.
	out, err := r.queryExpenses(ctx,
		`SELECT `+expenseColumns+` FROM expenses
		 WHERE template_id = ? AND month > ? ORDER BY month`,
		templateID, after.String())
	if err != nil {
		return nil, fmt.Errorf("list template rows: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO expenses (`+expenseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		expenseArgs(e)...)
	if err != nil {
		return false, fmt.Errorf("create expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

const updateExpenseSQL = `UPDATE expenses SET
	month = ?, date = ?, description = ?, category_id = ?, amount_original = ?,
	amount_ars = ?, currency = ?, fx_rate = ?, household_id = ?, paid_by = ?,
	kind = ?, template_id = ?, series_id = ?, installment_number = ?,
	installment_total = ?, installment_amount = ?, original_total = ?,
	source = ?, created_from_series = ?
	WHERE id = ?`

func updateExpenseArgs(e core.Expense) []any {
	args := expenseArgs(e)
	// Shift the id from first column to the WHERE clause.
	return append(args[1:], e.ID)
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx, updateExpenseSQL, updateExpenseArgs(e)...)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %s: %w", e.ID, services.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpenses(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id); err != nil {
				return fmt.Errorf("delete expense %s: %w", id, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) RewriteSeries(ctx context.Context, updates []core.Expense, deleteIDs []string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range deleteIDs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id); err != nil {
				return fmt.Errorf("delete series row %s: %w", id, err)
			}
		}
		for _, e := range updates {
			if _, err := tx.ExecContext(ctx, updateExpenseSQL, updateExpenseArgs(e)...); err != nil {
				return fmt.Errorf("rewrite series row %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) GetTemplate(ctx context.Context, id string) (*core.Template, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, description, category_id, amount_original, currency, fx_rate,
		        paid_by, household_id, day_of_month, created_month, active
		 FROM expense_templates WHERE id = ?`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %s: %w", id, services.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return &t, nil
}

func scanTemplate(row rowScanner) (core.Template, error) {
	var (
		t                          core.Template
		amount, rate, createdMonth string
		active                     int64
	)
	err := row.Scan(&t.ID, &t.Description, &t.CategoryID, &amount, &t.Currency,
		&rate, &t.PaidBy, &t.HouseholdID, &t.DayOfMonth, &createdMonth, &active)
	if err != nil {
		return core.Template{}, err
	}
	if t.AmountOriginal, err = scanDec(amount); err != nil {
		return core.Template{}, err
	}
	if t.FXRate, err = scanDec(rate); err != nil {
		return core.Template{}, err
	}
	if t.CreatedMonth, err = core.ParseMonth(createdMonth); err != nil {
		return core.Template{}, fmt.Errorf("stored created month %q: %w", createdMonth, err)
	}
	t.Active = active != 0
	return t, nil
}

func (r *SQLiteRepository) ListActiveTemplates(ctx context.Context, householdID string) ([]core.Template, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, description, category_id, amount_original, currency, fx_rate,
		        paid_by, household_id, day_of_month, created_month, active
		 FROM expense_templates
		 WHERE active = 1 AND (household_id = ? OR household_id = '')
		 ORDER BY id`, householdID)
	if err != nil {
		return nil, fmt.Errorf("list active templates: %w", err)
	}
	defer rows.Close()

	var out []core.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func templateArgs(t core.Template) []any {
	return []any{
		t.ID, t.Description, t.CategoryID, t.AmountOriginal.String(),
		t.Currency, t.FXRate.String(), t.PaidBy, t.HouseholdID,
		t.DayOfMonth, t.CreatedMonth.String(), boolInt(t.Active),
	}
}

func (r *SQLiteRepository) CreateTemplate(ctx context.Context, t core.Template) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expense_templates (id, description, category_id, amount_original,
		 currency, fx_rate, paid_by, household_id, day_of_month, created_month, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		templateArgs(t)...)
	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateTemplateWithRows(ctx context.Context, t core.Template, rows []core.Expense) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		args := templateArgs(t)
		// id moves to the WHERE clause.
		if _, err := tx.ExecContext(ctx,
			`UPDATE expense_templates SET description = ?, category_id = ?,
			 amount_original = ?, currency = ?, fx_rate = ?, paid_by = ?,
			 household_id = ?, day_of_month = ?, created_month = ?, active = ?
			 WHERE id = ?`,
			append(args[1:], t.ID)...); err != nil {
			return fmt.Errorf("update template: %w", err)
		}
		for _, e := range rows {
			if _, err := tx.ExecContext(ctx, updateExpenseSQL, updateExpenseArgs(e)...); err != nil {
				return fmt.Errorf("update template row %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) CreateIncome(ctx context.Context, in core.Income) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO incomes (id, month, user_id, household_id, amount_original,
		 amount_ars, currency, fx_rate) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.Month.String(), in.UserID, in.HouseholdID,
		in.AmountOriginal.String(), in.AmountARS.String(), in.Currency, in.FXRate.String())
	if err != nil {
		return fmt.Errorf("create income: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListIncomesByMonth(ctx context.Context, householdID string, month core.Month) ([]core.Income, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, month, user_id, household_id, amount_original, amount_ars,
		        currency, fx_rate
		 FROM incomes WHERE household_id = ? AND month = ? ORDER BY id`,
		householdID, month.String())
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	defer rows.Close()

	var out []core.Income
	for rows.Next() {
		var (
			in                      core.Income
			ms, original, ars, rate string
		)
		if err := rows.Scan(&in.ID, &ms, &in.UserID, &in.HouseholdID,
			&original, &ars, &in.Currency, &rate); err != nil {
			return nil, err
		}
		if in.Month, err = core.ParseMonth(ms); err != nil {
			return nil, fmt.Errorf("stored month %q: %w", ms, err)
		}
		if in.AmountOriginal, err = scanDec(original); err != nil {
			return nil, err
		}
		if in.AmountARS, err = scanDec(ars); err != nil {
			return nil, err
		}
		if in.FXRate, err = scanDec(rate); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetMonthlyRate(ctx context.Context, month core.Month, currency string) (*core.MonthlyRate, error) {
	var rate string
	err := r.db.QueryRowContext(ctx,
		`SELECT rate_to_ars FROM monthly_rates WHERE month = ? AND currency = ?`,
		month.String(), currency).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get monthly rate: %w", err)
	}
	d, err := scanDec(rate)
	if err != nil {
		return nil, err
	}
	return &core.MonthlyRate{Month: month, Currency: currency, RateToARS: d}, nil
}

func (r *SQLiteRepository) CreateMonthlyRate(ctx context.Context, mr core.MonthlyRate) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO monthly_rates (month, currency, rate_to_ars) VALUES (?, ?, ?)`,
		mr.Month.String(), mr.Currency, mr.RateToARS.String())
	if err != nil {
		return fmt.Errorf("create monthly rate: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
