package http

import (
	"net/http"

	"github.com/nachochiappe/fairsplit-sub000/internal/core"
	"github.com/nachochiappe/fairsplit-sub000/internal/services"
)

type applyTemplateRequest struct {
	FromMonth   string  `json:"fromMonth"`
	Description *string `json:"description,omitempty"`
	CategoryID  *string `json:"categoryId,omitempty"`
	Amount      *string `json:"amount,omitempty"`
	Currency    *string `json:"currencyCode,omitempty"`
	FXRate      *string `json:"fxRate,omitempty"`
	PaidBy      *string `json:"paidByUserId,omitempty"`
	DayOfMonth  *int    `json:"dayOfMonth,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

// handleApplyTemplateForward edits a recurring template and rewrites every
// generated row after fromMonth with the new values.
func (s *Server) handleApplyTemplateForward(w http.ResponseWriter, r *http.Request) {
	var req applyTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	fromMonth, err := monthParam(req.FromMonth)
	if err != nil {
		writeError(w, r, err)
		return
	}

	t, err := s.directory.GetTemplate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated := *t
	if req.Description != nil {
		updated.Description = sanitizeInput(*req.Description)
	}
	if req.CategoryID != nil {
		updated.CategoryID = *req.CategoryID
	}
	if req.Amount != nil {
		if updated.AmountOriginal, err = core.ParseAmount(*req.Amount); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Currency != nil {
		updated.Currency = *req.Currency
	}
	if req.FXRate != nil {
		if updated.FXRate, err = core.ParseRate(*req.FXRate); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.PaidBy != nil {
		updated.PaidBy = *req.PaidBy
	}
	if req.DayOfMonth != nil {
		updated.DayOfMonth = *req.DayOfMonth
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	if err := s.expenses.ApplyTemplateForward(r.Context(), updated, fromMonth); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createIncomeRequest struct {
	Month       string `json:"month"`
	UserID      string `json:"userId"`
	HouseholdID string `json:"householdId,omitempty"`
	Amount      string `json:"amount"`
	Currency    string `json:"currencyCode"`
	FXRate      string `json:"fxRate,omitempty"`
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	var req createIncomeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	month, err := monthParam(req.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in := services.IncomeInput{
		Month:       month,
		UserID:      req.UserID,
		HouseholdID: req.HouseholdID,
		Amount:      amount,
		Currency:    req.Currency,
	}
	if req.FXRate != "" {
		if in.FXRate, err = core.ParseRate(req.FXRate); err != nil {
			writeError(w, r, err)
			return
		}
	}

	income, err := s.expenses.CreateIncome(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":           income.ID,
		"month":        income.Month.String(),
		"userId":       income.UserID,
		"householdId":  income.HouseholdID,
		"amountArs":    core.AmountString(income.AmountARS),
		"currencyCode": income.Currency,
		"fxRateUsed":   core.RateString(income.FXRate),
	})
}

type pinRateRequest struct {
	Month    string `json:"month"`
	Currency string `json:"currencyCode"`
	Rate     string `json:"rate"`
}

func (s *Server) handlePinRate(w http.ResponseWriter, r *http.Request) {
	var req pinRateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	month, err := monthParam(req.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rate, err := core.ParseRate(req.Rate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.expenses.PinMonthlyRate(r.Context(), month, req.Currency, rate); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type saveUserRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	HouseholdID string `json:"householdId"`
}

func (s *Server) handleSaveUser(w http.ResponseWriter, r *http.Request) {
	var req saveUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.ID == "" || sanitizeInput(req.Name) == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "id and name are required"})
		return
	}
	err := s.directory.SaveUser(r.Context(), core.User{
		ID:          req.ID,
		Name:        sanitizeInput(req.Name),
		HouseholdID: req.HouseholdID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type saveCategoryRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Archived bool   `json:"archived,omitempty"`
}

func (s *Server) handleSaveCategory(w http.ResponseWriter, r *http.Request) {
	var req saveCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.ID == "" || sanitizeInput(req.Name) == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "id and name are required"})
		return
	}
	err := s.directory.SaveCategory(r.Context(), core.Category{
		ID:       req.ID,
		Name:     sanitizeInput(req.Name),
		Archived: req.Archived,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
