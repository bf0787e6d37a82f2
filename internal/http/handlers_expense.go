package http

import (
	"net/http"
	"time"

	"github.com/nachochiappe/fairsplit-sub000/internal/core"
	"github.com/nachochiappe/fairsplit-sub000/internal/services"
)

type installmentRequest struct {
	Count                int    `json:"count"`
	EntryMode            string `json:"entryMode"`
	PerInstallmentAmount string `json:"perInstallmentAmount,omitempty"`
	TotalAmount          string `json:"totalAmount,omitempty"`
}

func (req *installmentRequest) toInput() (*services.InstallmentInput, error) {
	in := &services.InstallmentInput{
		Count: req.Count,
		Mode:  core.EntryMode(req.EntryMode),
	}
	var err error
	if req.PerInstallmentAmount != "" {
		if in.PerInstallment, err = core.ParseAmount(req.PerInstallmentAmount); err != nil {
			return nil, err
		}
	}
	if req.TotalAmount != "" {
		if in.Total, err = core.ParseAmount(req.TotalAmount); err != nil {
			return nil, err
		}
	}
	return in, nil
}

type createExpenseRequest struct {
	Month        string              `json:"month"`
	Day          int                 `json:"day"`
	Description  string              `json:"description"`
	CategoryID   string              `json:"categoryId,omitempty"`
	Amount       string              `json:"amount,omitempty"`
	Currency     string              `json:"currencyCode"`
	FXRate       string              `json:"fxRate,omitempty"`
	PaidBy       string              `json:"paidByUserId"`
	HouseholdID  string              `json:"householdId,omitempty"`
	Recurring    bool                `json:"recurring,omitempty"`
	Installments *installmentRequest `json:"installments,omitempty"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	month, err := monthParam(req.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	in := services.CreateExpenseInput{
		Month:       month,
		Day:         req.Day,
		Description: sanitizeInput(req.Description),
		CategoryID:  req.CategoryID,
		Currency:    req.Currency,
		PaidBy:      req.PaidBy,
		HouseholdID: req.HouseholdID,
		Recurring:   req.Recurring,
	}
	if req.Amount != "" {
		if in.Amount, err = core.ParseAmount(req.Amount); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.FXRate != "" {
		if in.FXRate, err = core.ParseRate(req.FXRate); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Installments != nil {
		// The schedule carries the amounts; the top-level amount only
		// matters for one-time and recurring rows.
		if in.Installments, err = req.Installments.toInput(); err != nil {
			writeError(w, r, err)
			return
		}
	}

	row, err := s.expenses.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseJSON(*row))
}

type monthExpensesResponse struct {
	Month    string        `json:"month"`
	Expenses []expenseJSON `json:"expenses"`
	Warnings []string      `json:"warnings,omitempty"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	household := r.URL.Query().Get("household")
	month, err := monthParam(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	rows, warnings, err := s.expenses.MonthExpenses(r.Context(), household, month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := monthExpensesResponse{
		Month:    month.String(),
		Expenses: make([]expenseJSON, 0, len(rows)),
		Warnings: warnings,
	}
	for _, e := range rows {
		resp.Expenses = append(resp.Expenses, toExpenseJSON(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

type updateExpenseRequest struct {
	Description          *string `json:"description,omitempty"`
	CategoryID           *string `json:"categoryId,omitempty"`
	Amount               *string `json:"amount,omitempty"`
	Currency             *string `json:"currencyCode,omitempty"`
	FXRate               *string `json:"fxRate,omitempty"`
	PaidBy               *string `json:"paidByUserId,omitempty"`
	Date                 *string `json:"date,omitempty"`
	Month                *string `json:"month,omitempty"`
	Count                *int    `json:"count,omitempty"`
	EntryMode            *string `json:"entryMode,omitempty"`
	PerInstallmentAmount *string `json:"perInstallmentAmount,omitempty"`
	TotalAmount          *string `json:"totalAmount,omitempty"`
	DisableInstallments  bool    `json:"disableInstallments,omitempty"`
}

func (req *updateExpenseRequest) toPatch() (core.InstallmentPatch, error) {
	patch := core.InstallmentPatch{
		ExpensePatch: core.ExpensePatch{
			CategoryID: req.CategoryID,
			Currency:   req.Currency,
			PaidBy:     req.PaidBy,
		},
		Count:   req.Count,
		Disable: req.DisableInstallments,
	}
	if req.Description != nil {
		desc := sanitizeInput(*req.Description)
		patch.Description = &desc
	}
	if req.Amount != nil {
		amount, err := core.ParseAmount(*req.Amount)
		if err != nil {
			return core.InstallmentPatch{}, err
		}
		patch.AmountOriginal = &amount
	}
	if req.FXRate != nil {
		rate, err := core.ParseRate(*req.FXRate)
		if err != nil {
			return core.InstallmentPatch{}, err
		}
		patch.FXRate = &rate
	}
	if req.Date != nil {
		date, err := time.Parse("2006-01-02", *req.Date)
		if err != nil {
			return core.InstallmentPatch{}, err
		}
		patch.Date = &date
	}
	if req.Month != nil {
		month, err := monthParam(*req.Month)
		if err != nil {
			return core.InstallmentPatch{}, err
		}
		patch.Month = &month
	}
	if req.EntryMode != nil {
		mode := core.EntryMode(*req.EntryMode)
		patch.Mode = &mode
	}
	if req.PerInstallmentAmount != nil {
		per, err := core.ParseAmount(*req.PerInstallmentAmount)
		if err != nil {
			return core.InstallmentPatch{}, err
		}
		patch.PerInstallment = &per
	}
	if req.TotalAmount != nil {
		total, err := core.ParseAmount(*req.TotalAmount)
		if err != nil {
			return core.InstallmentPatch{}, err
		}
		patch.Total = &total
	}
	return patch, nil
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req updateExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, r, err)
		return
	}

	id := r.PathValue("id")
	scope := r.URL.Query().Get("scope")
	if err := s.expenses.Update(r.Context(), id, scope, patch); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	scope := r.URL.Query().Get("scope")
	if err := s.expenses.Delete(r.Context(), id, scope); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePreviewSchedule computes a schedule without creating anything, so a
// client can show per-month amounts before the purchase is confirmed.
func (s *Server) handlePreviewSchedule(w http.ResponseWriter, r *http.Request) {
	var req installmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, err)
		return
	}
	sched, err := core.ComputeInstallments(core.ScheduleInput{
		Count:          in.Count,
		Mode:           in.Mode,
		PerInstallment: in.PerInstallment,
		Total:          in.Total,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sched.Output())
}
