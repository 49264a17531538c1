// Package export pushes computed statements to a Google Sheets
// spreadsheet so bills can be shared outside the API.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fatura/internal/config"
	"fatura/internal/core"
	"fatura/internal/engine"
)

// SheetsExporter appends statement rows to a configured sheet using a
// service account.
type SheetsExporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// NewSheetsExporter builds an exporter from the app config. Credentials
// come from a service account file or inline JSON.
func NewSheetsExporter(ctx context.Context, cfg *config.Config) (*SheetsExporter, error) {
	if cfg.GoogleSpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(cfg.GoogleSheetName)
	if sheetName == "" {
		sheetName = "Faturas"
	}

	credentialsJSON, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets exporter ready",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", sheetName)

	return &SheetsExporter{
		svc:           svc,
		spreadsheetID: cfg.GoogleSpreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func loadCredentials(cfg *config.Config) ([]byte, error) {
	if json := strings.TrimSpace(cfg.GoogleServiceAccountJSON); json != "" {
		return []byte(json), nil
	}
	if file := strings.TrimSpace(cfg.GoogleServiceAccountFile); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
}

// ExportStatement writes one statement to the sheet: a title row, one row
// per occurrence and a closing total row. Returns the written range.
func (e *SheetsExporter) ExportStatement(ctx context.Context, card core.Card, w core.Window, res engine.Result) (string, error) {
	if e.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rows := statementRows(card, w, res)

	// Find the next empty row from the first column's current length.
	rng := fmt.Sprintf("%s!A:A", e.sheetName)
	resp, err := e.svc.Spreadsheets.Values.Get(e.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get sheet dimensions for %s: %w", e.sheetName, err)
	}
	firstRow := len(resp.Values) + 1
	lastRow := firstRow + len(rows) - 1

	dataRange := fmt.Sprintf("%s!A%d:E%d", e.sheetName, firstRow, lastRow)
	vr := &gsheet.ValueRange{Values: rows}

	_, err = e.svc.Spreadsheets.Values.Update(e.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", dataRange, err)
	}

	slog.InfoContext(ctx, "Exported statement",
		"card_id", card.ID,
		"rows", len(rows),
		"range", dataRange)

	return dataRange, nil
}

func statementRows(card core.Card, w core.Window, res engine.Result) [][]any {
	rows := [][]any{
		{card.Name, "fatura", w.Start.ISO(), w.End.ISO(), ""},
	}
	for _, o := range res.Occurrences {
		category := o.Category
		if category == "" {
			category = core.DefaultCategory
		}
		rows = append(rows, []any{
			o.DueDate.ISO(),
			o.Description,
			category,
			o.Subcategory,
			o.Value.Reais(),
		})
	}
	rows = append(rows, []any{"", "", "", "total", res.Total.Reais()})
	return rows
}
