package http

import (
	"log/slog"
	"net/http"
	"time"

	"fatura/internal/core"
)

// handleOverview aggregates every expense over a window, defaulting to
// the current calendar month.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
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
		today := core.DateOf(time.Now())
		window, err = core.NewWindow(today.StartOfMonth(), today.ClampDay(31))
		if err != nil {
			writeServiceError(w, err)
			return
		}
	}

	res, err := s.statements.Overview(r.Context(), window)
	if err != nil {
		slog.ErrorContext(r.Context(), "Overview failed", "error", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"window_start": window.Start.ISO(),
		"window_end":   window.End.ISO(),
		"overview":     toResultView(res),
	})
}
