package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fatura/internal/cache"
	"fatura/internal/core"
	"fatura/internal/engine"
	"fatura/internal/services"
	"fatura/internal/storage"
)

var testNow = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store := storage.NewMemoryStore()
	statements := services.NewStatementService(store, cache.New[engine.Result](16, time.Minute))
	statements.SetClock(func() time.Time { return testNow })
	expenses := services.NewExpenseService(store, nil, statements)

	srv := NewServer(":0", expenses, statements, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func createCard(t *testing.T, srv *Server, name string, closingDay int) string {
	t.Helper()
	rec := doRequest(t, srv, http.MethodPost, "/api/cards", map[string]any{
		"name":        name,
		"closing_day": closingDay,
		"due_day":     closingDay + 7,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create card status = %d, body %s", rec.Code, rec.Body.String())
	}
	var card struct {
		ID string `json:"id"`
	}
	decodeJSON(t, rec, &card)
	return card.ID
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(t, srv, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestCreateAndGetExpense(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/expenses", map[string]any{
		"value":       "120,50",
		"date":        "2024-01-10",
		"category":    "Mercado",
		"description": "compras",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create expense status = %d, body %s", rec.Code, rec.Body.String())
	}

	var created expenseView
	decodeJSON(t, rec, &created)
	if created.ValueCents != 12050 {
		t.Errorf("value_cents = %d, want 12050", created.ValueCents)
	}
	if created.Kind != "one-off" {
		t.Errorf("kind = %s, want one-off", created.Kind)
	}

	got := doRequest(t, srv, http.MethodGet, "/api/expenses/"+created.ID, nil)
	if got.Code != http.StatusOK {
		t.Fatalf("get expense status = %d", got.Code)
	}
	var fetched expenseView
	decodeJSON(t, got, &fetched)
	if fetched.Description != "compras" || fetched.Category != "Mercado" {
		t.Errorf("fetched = %+v, want compras/Mercado", fetched)
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"negative value", map[string]any{"value": "-10.00", "date": "2024-01-10"}},
		{"bad date", map[string]any{"value": "10.00", "date": "10/01/2024"}},
		{"negative installments", map[string]any{"value": "10.00", "date": "2024-01-10", "installments": -2}},
		{"missing value", map[string]any{"date": "2024-01-10"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/expenses", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}

	rec := httptest.NewRequest(http.MethodPost, "/api/expenses", strings.NewReader("{not json"))
	rec.RemoteAddr = "192.0.2.1:1234"
	w := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(w, rec)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON status = %d, want 400", w.Code)
	}
}

func TestCreateExpenseSingleInstallment(t *testing.T) {
	// installments <= 1 means "no plan": the record is accepted and
	// classified as a plain one-off, never rejected.
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/expenses", map[string]any{
		"value":        "50.00",
		"date":         "2024-01-10",
		"installments": 1,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	var created expenseView
	decodeJSON(t, rec, &created)
	if created.Kind != "one-off" {
		t.Errorf("kind = %s, want one-off", created.Kind)
	}
}

func TestDeleteExpense(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/expenses", map[string]any{
		"value": "10.00", "date": "2024-01-10",
	})
	var created expenseView
	decodeJSON(t, rec, &created)

	del := doRequest(t, srv, http.MethodDelete, "/api/expenses/"+created.ID, nil)
	if del.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", del.Code)
	}

	got := doRequest(t, srv, http.MethodGet, "/api/expenses/"+created.ID, nil)
	if got.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", got.Code)
	}
}

func TestListExpensesFilter(t *testing.T) {
	srv := newTestServer(t)
	cardID := createCard(t, srv, "Nubank", 15)

	for _, body := range []map[string]any{
		{"value": "10.00", "date": "2024-01-02", "card_id": cardID},
		{"value": "20.00", "date": "2024-01-03"},
	} {
		if rec := doRequest(t, srv, http.MethodPost, "/api/expenses", body); rec.Code != http.StatusCreated {
			t.Fatalf("seed expense status = %d", rec.Code)
		}
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/expenses?card_id="+cardID, nil)
	var res struct {
		Expenses []expenseView `json:"expenses"`
	}
	decodeJSON(t, rec, &res)
	if len(res.Expenses) != 1 || res.Expenses[0].CardID != cardID {
		t.Errorf("filtered list = %+v, want single card expense", res.Expenses)
	}
}

func TestBillValueAndDetails(t *testing.T) {
	srv := newTestServer(t)
	cardID := createCard(t, srv, "Nubank", 15)

	// Inside the current window (Dec 16 to Jan 15).
	doRequest(t, srv, http.MethodPost, "/api/expenses", map[string]any{
		"value": "100.00", "date": "2024-01-02", "due_date": "2024-01-05", "card_id": cardID,
	})
	// Outside it.
	doRequest(t, srv, http.MethodPost, "/api/expenses", map[string]any{
		"value": "999.00", "date": "2024-01-02", "due_date": "2024-02-05", "card_id": cardID,
	})

	rec := doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/cards/%s/bill", cardID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("bill status = %d, body %s", rec.Code, rec.Body.String())
	}
	var bill billView
	decodeJSON(t, rec, &bill)
	if bill.TotalCents != 10000 {
		t.Errorf("bill total = %d, want 10000", bill.TotalCents)
	}
	if bill.WindowStart != "2023-12-16" || bill.WindowEnd != "2024-01-15" {
		t.Errorf("window = [%s, %s], want [2023-12-16, 2024-01-15]", bill.WindowStart, bill.WindowEnd)
	}

	det := doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/cards/%s/bill/details", cardID), nil)
	if det.Code != http.StatusOK {
		t.Fatalf("details status = %d", det.Code)
	}
	var details struct {
		Statement resultView `json:"statement"`
	}
	decodeJSON(t, det, &details)
	if details.Statement.TotalCents != 10000 {
		t.Errorf("details total = %d, want 10000", details.Statement.TotalCents)
	}
	if len(details.Statement.Occurrences) != 1 {
		t.Errorf("details occurrences = %d, want 1", len(details.Statement.Occurrences))
	}

	// Explicit window catches the February charge instead.
	feb := doRequest(t, srv, http.MethodGet,
		fmt.Sprintf("/api/cards/%s/bill/details?start=2024-01-16&end=2024-02-15", cardID), nil)
	var febDetails struct {
		Statement resultView `json:"statement"`
	}
	decodeJSON(t, feb, &febDetails)
	if febDetails.Statement.TotalCents != 99900 {
		t.Errorf("explicit window total = %d, want 99900", febDetails.Statement.TotalCents)
	}
}

func TestBillsSummary(t *testing.T) {
	srv := newTestServer(t)
	first := createCard(t, srv, "Nubank", 15)
	second := createCard(t, srv, "Inter", 5)

	doRequest(t, srv, http.MethodPost, "/api/expenses", map[string]any{
		"value": "100.00", "date": "2024-01-02", "due_date": "2024-01-05", "card_id": first,
	})
	doRequest(t, srv, http.MethodPost, "/api/expenses", map[string]any{
		"value": "80.00", "date": "2024-01-08", "due_date": "2024-01-20", "card_id": second,
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/cards/bills", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("bills summary status = %d", rec.Code)
	}
	var res struct {
		Bills      []billView `json:"bills"`
		TotalCents int64      `json:"total_cents"`
	}
	decodeJSON(t, rec, &res)
	if len(res.Bills) != 2 {
		t.Fatalf("bills = %d, want 2", len(res.Bills))
	}
	if res.TotalCents != 18000 {
		t.Errorf("summary total = %d, want 18000", res.TotalCents)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv := newTestServer(t)
	cardID := createCard(t, srv, "Nubank", 15)

	doRequest(t, srv, http.MethodPost, "/api/expenses", map[string]any{
		"value": "40.00", "date": "2023-11-05", "card_id": cardID, "fixed": true,
	})

	rec := doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/cards/%s/history?months=2", cardID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Months []groupView `json:"months"`
	}
	decodeJSON(t, rec, &res)
	if len(res.Months) != 3 {
		t.Fatalf("history months = %d, want 3", len(res.Months))
	}
	if res.Months[0].Name != "2024-01" {
		t.Errorf("first month = %s, want 2024-01", res.Months[0].Name)
	}

	bad := doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/cards/%s/history?months=zero", cardID), nil)
	if bad.Code != http.StatusBadRequest {
		t.Errorf("bad months status = %d, want 400", bad.Code)
	}
}

func TestOverviewEndpoint(t *testing.T) {
	srv := newTestServer(t)
	cardID := createCard(t, srv, "Nubank", 15)

	doRequest(t, srv, http.MethodPost, "/api/expenses", map[string]any{
		"value": "100.00", "date": "2024-01-02", "category": "Mercado", "card_id": cardID,
	})
	doRequest(t, srv, http.MethodPost, "/api/expenses", map[string]any{
		"value": "30.00", "date": "2024-01-15",
	})

	rec := doRequest(t, srv, http.MethodGet, "/api/overview?start=2024-01-01&end=2024-01-31", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("overview status = %d", rec.Code)
	}
	var res struct {
		Overview resultView `json:"overview"`
	}
	decodeJSON(t, rec, &res)
	if res.Overview.TotalCents != 13000 {
		t.Errorf("overview total = %d, want 13000", res.Overview.TotalCents)
	}
	if len(res.Overview.ByCard) != 1 {
		t.Errorf("by_card groups = %d, want 1", len(res.Overview.ByCard))
	}

	bad := doRequest(t, srv, http.MethodGet, "/api/overview?start=2024-01-01", nil)
	if bad.Code != http.StatusBadRequest {
		t.Errorf("half window status = %d, want 400", bad.Code)
	}
}

func TestExportNotConfigured(t *testing.T) {
	srv := newTestServer(t)
	cardID := createCard(t, srv, "Nubank", 15)

	rec := doRequest(t, srv, http.MethodPost, fmt.Sprintf("/api/cards/%s/export", cardID), nil)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("export status = %d, want 501", rec.Code)
	}
}

type fakeExporter struct {
	lastCard core.Card
	err      error
}

func (f *fakeExporter) ExportStatement(_ context.Context, card core.Card, _ core.Window, _ engine.Result) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.lastCard = card
	return "Faturas!A1:E3", nil
}

func TestExportEndpoint(t *testing.T) {
	srv := newTestServer(t)
	exp := &fakeExporter{}
	srv.exporter = exp
	cardID := createCard(t, srv, "Nubank", 15)

	rec := doRequest(t, srv, http.MethodPost, fmt.Sprintf("/api/cards/%s/export", cardID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Ref string `json:"ref"`
	}
	decodeJSON(t, rec, &res)
	if res.Ref == "" {
		t.Error("export ref should not be empty")
	}
	if exp.lastCard.ID != cardID {
		t.Errorf("exported card = %s, want %s", exp.lastCard.ID, cardID)
	}

	exp.err = errors.New("sheets down")
	fail := doRequest(t, srv, http.MethodPost, fmt.Sprintf("/api/cards/%s/export", cardID), nil)
	if fail.Code != http.StatusBadGateway {
		t.Errorf("failed export status = %d, want 502", fail.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPut, "/api/expenses", map[string]any{})
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT /api/expenses status = %d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); !strings.Contains(allow, http.MethodPost) {
		t.Errorf("Allow header = %q, want POST listed", allow)
	}
}

func TestUnknownCardRoutes(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/cards/123", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown card status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/cards/123/unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown subroute status = %d, want 404", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/cards", nil)
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}
