package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"fatura/internal/core"
)

func (s *Server) handleCards(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cards, err := s.expenses.ListCards(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "List cards failed", "error", err)
			writeServiceError(w, err)
			return
		}
		views := make([]cardView, 0, len(cards))
		for _, c := range cards {
			views = append(views, toCardView(c))
		}
		writeJSON(w, http.StatusOK, map[string]any{"cards": views})
	case http.MethodPost:
		var req cardRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		card, err := req.toCard()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		id, err := s.expenses.CreateCard(r.Context(), card)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		card.ID = id
		writeJSON(w, http.StatusCreated, toCardView(card))
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleCardSubroutes dispatches /api/cards/{id} and its statement
// subresources: bill, bill/details, history, export.
func (s *Server) handleCardSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/cards/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	cardID := parts[0]
	sub := strings.Join(parts[1:], "/")

	switch sub {
	case "":
		s.handleCardByID(w, r, cardID)
	case "bill":
		s.handleBillValue(w, r, cardID)
	case "bill/details":
		s.handleBillDetails(w, r, cardID)
	case "history":
		s.handleHistory(w, r, cardID)
	case "export":
		s.handleExport(w, r, cardID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleCardByID(w http.ResponseWriter, r *http.Request, cardID string) {
	switch r.Method {
	case http.MethodGet:
		card, err := s.expenses.GetCard(r.Context(), cardID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toCardView(card))
	case http.MethodDelete:
		if err := s.expenses.DeleteCard(r.Context(), cardID); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

// handleBillValue returns only the total of the card's current bill.
func (s *Server) handleBillValue(w http.ResponseWriter, r *http.Request, cardID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	total, window, err := s.statements.BillValue(r.Context(), cardID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Bill value failed", "card_id", cardID, "error", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, billView{
		CardID:      cardID,
		WindowStart: window.Start.ISO(),
		WindowEnd:   window.End.ISO(),
		TotalCents:  total.Cents,
		Total:       formatCents(total.Cents),
	})
}

// handleBillDetails returns the full statement. The window defaults to the
// card's current billing period; start/end query parameters override it.
func (s *Server) handleBillDetails(w http.ResponseWriter, r *http.Request, cardID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	window, ok, err := parseWindowQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		window, err = s.statements.CurrentWindow(r.Context(), cardID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
	}

	res, err := s.statements.Statement(r.Context(), cardID, window)
	if err != nil {
		slog.ErrorContext(r.Context(), "Bill details failed", "card_id", cardID, "error", err)
		writeServiceError(w, err)
		return
	}

	view := toResultView(res)
	writeJSON(w, http.StatusOK, map[string]any{
		"card_id":      cardID,
		"window_start": window.Start.ISO(),
		"window_end":   window.End.ISO(),
		"statement":    view,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, cardID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	months := 6
	if raw := r.URL.Query().Get("months"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "months must be a positive integer")
			return
		}
		months = parsed
	}

	groups, err := s.statements.History(r.Context(), cardID, months)
	if err != nil {
		slog.ErrorContext(r.Context(), "History failed", "card_id", cardID, "error", err)
		writeServiceError(w, err)
		return
	}

	views := make([]groupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, groupView{
			Name:        g.Month,
			TotalCents:  g.Total.Cents,
			Total:       formatCents(g.Total.Cents),
			Occurrences: toOccurrenceViews(g.Occurrences),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"card_id": cardID, "months": views})
}

func (s *Server) handleBillsSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	bills, err := s.statements.BillsSummary(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Bills summary failed", "error", err)
		writeServiceError(w, err)
		return
	}

	views := make([]billView, 0, len(bills))
	var total core.Money
	for _, b := range bills {
		views = append(views, toBillView(b))
		total = total.Add(b.Total)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bills":       views,
		"total_cents": total.Cents,
		"total":       formatCents(total.Cents),
	})
}

// handleExport pushes the card's current statement to the configured
// spreadsheet.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, cardID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, "export is not configured")
		return
	}

	card, err := s.expenses.GetCard(r.Context(), cardID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	window, ok, err := parseWindowQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		window, err = s.statements.CurrentWindow(r.Context(), cardID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
	}

	res, err := s.statements.Statement(r.Context(), cardID, window)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	ref, err := s.exporter.ExportStatement(r.Context(), card, window, res)
	if err != nil {
		slog.ErrorContext(r.Context(), "Statement export failed", "card_id", cardID, "error", err)
		writeError(w, http.StatusBadGateway, "export failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"ref": ref})
}
