package http

import (
	"net/http"
)

// handleSettlement returns the month's settlement snapshot. The read is what
// triggers materialization of recurring and installment rows for the month.
func (s *Server) handleSettlement(w http.ResponseWriter, r *http.Request) {
	household := r.URL.Query().Get("household")
	month, err := monthParam(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	snap, err := s.settlement.ForMonth(r.Context(), household, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
