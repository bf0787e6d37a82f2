package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nachochiappe/fairsplit-sub000/internal/core"
	"github.com/nachochiappe/fairsplit-sub000/internal/services"
)

// expenseJSON is the boundary shape of an expense row. Money travels as
// fixed-scale decimal strings.
type expenseJSON struct {
	ID                string `json:"id"`
	Month             string `json:"month"`
	Date              string `json:"date"`
	Description       string `json:"description"`
	CategoryID        string `json:"categoryId,omitempty"`
	AmountOriginal    string `json:"amountOriginal"`
	AmountARS         string `json:"amountArs"`
	Currency          string `json:"currencyCode"`
	FXRate            string `json:"fxRateUsed"`
	HouseholdID       string `json:"householdId"`
	PaidBy            string `json:"paidByUserId"`
	Kind              string `json:"kind"`
	TemplateID        string `json:"templateId,omitempty"`
	SeriesID          string `json:"installmentSeriesId,omitempty"`
	InstallmentNumber int    `json:"installmentNumber,omitempty"`
	InstallmentTotal  int    `json:"installmentTotal,omitempty"`
	CreatedFromSeries bool   `json:"createdFromSeries,omitempty"`
}

func toExpenseJSON(e core.Expense) expenseJSON {
	return expenseJSON{
		ID:                e.ID,
		Month:             e.Month.String(),
		Date:              e.Date.Format("2006-01-02"),
		Description:       e.Description,
		CategoryID:        e.CategoryID,
		AmountOriginal:    core.AmountString(e.AmountOriginal),
		AmountARS:         core.AmountString(e.AmountARS),
		Currency:          e.Currency,
		FXRate:            core.RateString(e.FXRate),
		HouseholdID:       e.HouseholdID,
		PaidBy:            e.PaidBy,
		Kind:              string(e.Kind),
		TemplateID:        e.TemplateID,
		SeriesID:          e.SeriesID,
		InstallmentNumber: e.InstallmentNumber,
		InstallmentTotal:  e.InstallmentTotal,
		CreatedFromSeries: e.CreatedFromSeries,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain sentinels to client errors; anything unrecognized
// is a 500 with the detail kept out of the response body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"url", r.URL.Path,
			"error", err)
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	slog.WarnContext(r.Context(), "Request rejected",
		"method", r.Method,
		"url", r.URL.Path,
		"status", status,
		"error", err)
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrScopeConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidCount),
		errors.Is(err, core.ErrMissingAmount),
		errors.Is(err, core.ErrUnknownEntryMode),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidRate),
		errors.Is(err, core.ErrInvalidCurrency),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrInvalidScope),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrMixedKind),
		errors.Is(err, core.ErrMissingHousehold),
		errors.Is(err, core.ErrNonPositiveIncome):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// monthParam parses a required month query or body value.
func monthParam(value string) (core.Month, error) {
	return core.ParseMonth(strings.TrimSpace(value))
}

// sanitizeInput trims whitespace and strips control characters.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
