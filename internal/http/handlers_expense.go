package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"fatura/internal/storage"
)

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listExpenses(w, r)
	case http.MethodPost:
		s.createExpense(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) listExpenses(w http.ResponseWriter, r *http.Request) {
	filter := storage.ExpenseFilter{
		CardID:   r.URL.Query().Get("card_id"),
		CardOnly: r.URL.Query().Get("card_only") == "true",
	}

	records, err := s.expenses.ListExpenses(r.Context(), filter)
	if err != nil {
		slog.ErrorContext(r.Context(), "List expenses failed", "error", err)
		writeServiceError(w, err)
		return
	}

	views := make([]expenseView, 0, len(records))
	for _, rec := range records {
		views = append(views, toExpenseView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": views})
}

func (s *Server) createExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := req.toRecord()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.expenses.CreateExpense(r.Context(), rec)
	if err != nil {
		slog.ErrorContext(r.Context(), "Create expense failed", "error", err)
		writeServiceError(w, err)
		return
	}

	rec.ID = id
	writeJSON(w, http.StatusCreated, toExpenseView(rec))
}

func (s *Server) handleExpenseByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/expenses/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, err := s.expenses.GetExpense(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toExpenseView(rec))
	case http.MethodDelete:
		if err := s.expenses.DeleteExpense(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}
