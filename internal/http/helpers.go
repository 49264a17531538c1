package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"fatura/internal/core"
	"fatura/internal/engine"
	"fatura/internal/services"
	"fatura/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrNegativeValue),
		errors.Is(err, core.ErrInvalidInstallments),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidWindow),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrInvalidClosingDay):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// parseWindowQuery reads optional start/end query parameters. Both must be
// present together.
func parseWindowQuery(r *http.Request) (core.Window, bool, error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr == "" && endStr == "" {
		return core.Window{}, false, nil
	}
	if startStr == "" || endStr == "" {
		return core.Window{}, false, fmt.Errorf("start and end must be provided together")
	}

	start, err := core.ParseDate(startStr)
	if err != nil {
		return core.Window{}, false, fmt.Errorf("invalid start date %q", startStr)
	}
	end, err := core.ParseDate(endStr)
	if err != nil {
		return core.Window{}, false, fmt.Errorf("invalid end date %q", endStr)
	}

	w, err := core.NewWindow(start, end)
	if err != nil {
		return core.Window{}, false, err
	}
	return w, true, nil
}

// expenseRequest is the JSON body for creating an expense. Value is a
// decimal string, amounts are stored as integer cents.
type expenseRequest struct {
	Value         string `json:"value"`
	Date          string `json:"date"`
	DueDate       string `json:"due_date,omitempty"`
	Category      string `json:"category,omitempty"`
	Subcategory   string `json:"subcategory,omitempty"`
	Description   string `json:"description,omitempty"`
	CardID        string `json:"card_id,omitempty"`
	Fixed         bool   `json:"fixed,omitempty"`
	Recurring     bool   `json:"recurring,omitempty"`
	Installments  int    `json:"installments,omitempty"`
	EndRecurrence string `json:"end_recurrence,omitempty"`
}

func (req expenseRequest) toRecord() (core.ExpenseRecord, error) {
	cents, err := core.ParseDecimalToCents(req.Value)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("invalid value %q: %w", req.Value, err)
	}

	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("invalid date %q: %w", req.Date, core.ErrInvalidDate)
	}

	rec := core.ExpenseRecord{
		Value:        core.Money{Cents: cents},
		Date:         date,
		Category:     strings.TrimSpace(req.Category),
		Subcategory:  strings.TrimSpace(req.Subcategory),
		Description:  strings.TrimSpace(req.Description),
		CardID:       req.CardID,
		Fixed:        req.Fixed,
		Recurring:    req.Recurring,
		Installments: req.Installments,
	}

	if req.DueDate != "" {
		if rec.DueDate, err = core.ParseDate(req.DueDate); err != nil {
			return core.ExpenseRecord{}, fmt.Errorf("invalid due date %q: %w", req.DueDate, core.ErrInvalidDate)
		}
	}
	if req.EndRecurrence != "" {
		if rec.EndRecurrence, err = core.ParseDate(req.EndRecurrence); err != nil {
			return core.ExpenseRecord{}, fmt.Errorf("invalid end recurrence %q: %w", req.EndRecurrence, core.ErrInvalidDate)
		}
	}

	return rec, nil
}

type cardRequest struct {
	Name       string `json:"name"`
	Brand      string `json:"brand,omitempty"`
	LastDigits string `json:"last_digits,omitempty"`
	Limit      string `json:"limit,omitempty"`
	DueDay     int    `json:"due_day"`
	ClosingDay int    `json:"closing_day"`
}

func (req cardRequest) toCard() (core.Card, error) {
	card := core.Card{
		Name:       strings.TrimSpace(req.Name),
		Brand:      strings.TrimSpace(req.Brand),
		LastDigits: strings.TrimSpace(req.LastDigits),
		DueDay:     req.DueDay,
		ClosingDay: req.ClosingDay,
	}
	if req.Limit != "" {
		cents, err := core.ParseDecimalToCents(req.Limit)
		if err != nil {
			return core.Card{}, fmt.Errorf("invalid limit %q: %w", req.Limit, err)
		}
		card.Limit = core.Money{Cents: cents}
	}
	return card, nil
}

// View types returned by the API.

type expenseView struct {
	ID            string `json:"id"`
	ValueCents    int64  `json:"value_cents"`
	Value         string `json:"value"`
	Date          string `json:"date"`
	DueDate       string `json:"due_date,omitempty"`
	Category      string `json:"category,omitempty"`
	Subcategory   string `json:"subcategory,omitempty"`
	Description   string `json:"description,omitempty"`
	CardID        string `json:"card_id,omitempty"`
	Fixed         bool   `json:"fixed"`
	Recurring     bool   `json:"recurring"`
	Installments  int    `json:"installments,omitempty"`
	EndRecurrence string `json:"end_recurrence,omitempty"`
	Kind          string `json:"kind"`
}

func toExpenseView(rec core.ExpenseRecord) expenseView {
	v := expenseView{
		ID:           rec.ID,
		ValueCents:   rec.Value.Cents,
		Value:        formatCents(rec.Value.Cents),
		Date:         rec.Date.ISO(),
		Category:     rec.Category,
		Subcategory:  rec.Subcategory,
		Description:  rec.Description,
		CardID:       rec.CardID,
		Fixed:        rec.Fixed,
		Recurring:    rec.Recurring,
		Installments: rec.Installments,
		Kind:         string(rec.Kind()),
	}
	if !rec.DueDate.IsZero() {
		v.DueDate = rec.DueDate.ISO()
	}
	if !rec.EndRecurrence.IsZero() {
		v.EndRecurrence = rec.EndRecurrence.ISO()
	}
	return v
}

type cardView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Brand      string `json:"brand,omitempty"`
	LastDigits string `json:"last_digits,omitempty"`
	LimitCents int64  `json:"limit_cents,omitempty"`
	DueDay     int    `json:"due_day"`
	ClosingDay int    `json:"closing_day"`
}

func toCardView(c core.Card) cardView {
	return cardView{
		ID:         c.ID,
		Name:       c.Name,
		Brand:      c.Brand,
		LastDigits: c.LastDigits,
		LimitCents: c.Limit.Cents,
		DueDay:     c.DueDay,
		ClosingDay: c.ClosingDay,
	}
}

type occurrenceView struct {
	SourceID         string `json:"source_id"`
	DueDate          string `json:"due_date"`
	ValueCents       int64  `json:"value_cents"`
	Value            string `json:"value"`
	Category         string `json:"category,omitempty"`
	Subcategory      string `json:"subcategory,omitempty"`
	Description      string `json:"description,omitempty"`
	CardID           string `json:"card_id,omitempty"`
	InstallmentIndex int    `json:"installment_index,omitempty"`
	InstallmentTotal int    `json:"installment_total,omitempty"`
}

func toOccurrenceViews(occs []core.Occurrence) []occurrenceView {
	out := make([]occurrenceView, 0, len(occs))
	for _, o := range occs {
		out = append(out, occurrenceView{
			SourceID:         o.SourceID,
			DueDate:          o.DueDate.ISO(),
			ValueCents:       o.Value.Cents,
			Value:            formatCents(o.Value.Cents),
			Category:         o.Category,
			Subcategory:      o.Subcategory,
			Description:      o.Description,
			CardID:           o.CardID,
			InstallmentIndex: o.InstallmentIndex,
			InstallmentTotal: o.InstallmentTotal,
		})
	}
	return out
}

type groupView struct {
	Name        string           `json:"name"`
	TotalCents  int64            `json:"total_cents"`
	Total       string           `json:"total"`
	Occurrences []occurrenceView `json:"occurrences"`
}

type cardTotalView struct {
	CardID     string `json:"card_id"`
	TotalCents int64  `json:"total_cents"`
	Total      string `json:"total"`
}

type resultView struct {
	TotalCents  int64            `json:"total_cents"`
	Total       string           `json:"total"`
	Occurrences []occurrenceView `json:"occurrences"`
	ByCategory  []groupView      `json:"by_category,omitempty"`
	ByMonth     []groupView      `json:"by_month,omitempty"`
	ByCard      []cardTotalView  `json:"by_card,omitempty"`
}

func toResultView(res engine.Result) resultView {
	v := resultView{
		TotalCents:  res.Total.Cents,
		Total:       formatCents(res.Total.Cents),
		Occurrences: toOccurrenceViews(res.Occurrences),
	}
	for _, g := range res.ByCategory {
		v.ByCategory = append(v.ByCategory, groupView{
			Name:        g.Name,
			TotalCents:  g.Total.Cents,
			Total:       formatCents(g.Total.Cents),
			Occurrences: toOccurrenceViews(g.Occurrences),
		})
	}
	for _, g := range res.ByMonth {
		v.ByMonth = append(v.ByMonth, groupView{
			Name:        g.Month,
			TotalCents:  g.Total.Cents,
			Total:       formatCents(g.Total.Cents),
			Occurrences: toOccurrenceViews(g.Occurrences),
		})
	}
	for _, ct := range res.ByCard {
		v.ByCard = append(v.ByCard, cardTotalView{
			CardID:     ct.CardID,
			TotalCents: ct.Total.Cents,
			Total:      formatCents(ct.Total.Cents),
		})
	}
	return v
}

type billView struct {
	CardID      string `json:"card_id"`
	CardName    string `json:"card_name,omitempty"`
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
	TotalCents  int64  `json:"total_cents"`
	Total       string `json:"total"`
}

func toBillView(b services.CardBill) billView {
	return billView{
		CardID:      b.Card.ID,
		CardName:    b.Card.Name,
		WindowStart: b.Window.Start.ISO(),
		WindowEnd:   b.Window.End.ISO(),
		TotalCents:  b.Total.Cents,
		Total:       formatCents(b.Total.Cents),
	}
}

// formatCents renders integer cents as a plain decimal string.
func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
