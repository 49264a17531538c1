package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"fatura/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the default persistence backend. Dates are stored as ISO
// strings so that comparisons and ordering stay lexicographic.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runSQLiteMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) CreateExpense(ctx context.Context, rec core.ExpenseRecord) (string, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (
			value_cents, occurrence_date, due_date, category, subcategory,
			description, card_id, fixed, recurring, installments, end_recurrence_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Value.Cents,
		rec.Date.ISO(),
		nullDate(rec.DueDate),
		rec.Category,
		rec.Subcategory,
		rec.Description,
		nullID(rec.CardID),
		boolToInt(rec.Fixed),
		boolToInt(rec.Recurring),
		nullInstallments(rec.Installments),
		nullDate(rec.EndRecurrence),
	)
	if err != nil {
		return "", fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"value_cents", rec.Value.Cents,
		"kind", string(rec.Kind()),
		"card_id", rec.CardID)

	return strconv.FormatInt(id, 10), nil
}

const sqliteExpenseColumns = `
	id, value_cents, occurrence_date, due_date, category, subcategory,
	description, card_id, fixed, recurring, installments, end_recurrence_date`

func (s *SQLiteStore) GetExpense(ctx context.Context, id string) (core.ExpenseRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sqliteExpenseColumns+`
		FROM expenses WHERE id = ? AND deleted_at IS NULL`, id)
	rec, err := scanSQLiteExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExpenseRecord{}, ErrNotFound
	}
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("get expense %s: %w", id, err)
	}
	return rec, nil
}

func (s *SQLiteStore) ListExpenses(ctx context.Context, f ExpenseFilter) ([]core.ExpenseRecord, error) {
	query := `SELECT ` + sqliteExpenseColumns + ` FROM expenses WHERE deleted_at IS NULL`
	args := []any{}
	switch {
	case f.CardID != "":
		query += ` AND card_id = ?`
		args = append(args, f.CardID)
	case f.CardOnly:
		query += ` AND card_id IS NOT NULL`
	}
	query += ` ORDER BY due_date DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.ExpenseRecord
	for rows.Next() {
		rec, err := scanSQLiteExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteExpense(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE expenses SET deleted_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "Expense soft deleted", "id", id)
	return nil
}

func (s *SQLiteStore) CreateCard(ctx context.Context, c core.Card) (string, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO cards (name, brand, last_digits, limit_cents, due_day, closing_day)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name, c.Brand, c.LastDigits, c.Limit.Cents, c.DueDay, c.ClosingDay)
	if err != nil {
		return "", fmt.Errorf("insert card: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("last insert id: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *SQLiteStore) GetCard(ctx context.Context, id string) (core.Card, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, brand, last_digits, limit_cents, due_day, closing_day
		FROM cards WHERE id = ?`, id)
	c, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Card{}, ErrNotFound
	}
	if err != nil {
		return core.Card{}, fmt.Errorf("get card %s: %w", id, err)
	}
	return c, nil
}

func (s *SQLiteStore) ListCards(ctx context.Context) ([]core.Card, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, brand, last_digits, limit_cents, due_day, closing_day
		FROM cards ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var out []core.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteCard(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete card %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SaveStatementSnapshot(ctx context.Context, snap StatementSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO statement_snapshots (card_id, window_start, window_end, total_cents, computed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (card_id) DO UPDATE SET
			window_start = excluded.window_start,
			window_end = excluded.window_end,
			total_cents = excluded.total_cents,
			computed_at = excluded.computed_at`,
		snap.CardID, snap.WindowStart.ISO(), snap.WindowEnd.ISO(),
		snap.Total.Cents, snap.ComputedAt.UTC())
	if err != nil {
		return fmt.Errorf("save statement snapshot for card %s: %w", snap.CardID, err)
	}
	return nil
}

func (s *SQLiteStore) GetStatementSnapshot(ctx context.Context, cardID string) (StatementSnapshot, error) {
	var (
		snap       StatementSnapshot
		start, end string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT card_id, window_start, window_end, total_cents, computed_at
		FROM statement_snapshots WHERE card_id = ?`, cardID).
		Scan(&snap.CardID, &start, &end, &snap.Total.Cents, &snap.ComputedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return StatementSnapshot{}, ErrNotFound
	}
	if err != nil {
		return StatementSnapshot{}, fmt.Errorf("get statement snapshot for card %s: %w", cardID, err)
	}
	if snap.WindowStart, err = core.ParseDate(start); err != nil {
		return StatementSnapshot{}, fmt.Errorf("parse window start: %w", err)
	}
	if snap.WindowEnd, err = core.ParseDate(end); err != nil {
		return StatementSnapshot{}, fmt.Errorf("parse window end: %w", err)
	}
	return snap, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteExpense(row rowScanner) (core.ExpenseRecord, error) {
	var (
		rec           core.ExpenseRecord
		id            int64
		occurrence    string
		due, endRec   sql.NullString
		cardID        sql.NullInt64
		fixed, recurr int
		installments  sql.NullInt64
	)
	err := row.Scan(&id, &rec.Value.Cents, &occurrence, &due, &rec.Category,
		&rec.Subcategory, &rec.Description, &cardID, &fixed, &recurr,
		&installments, &endRec)
	if err != nil {
		return core.ExpenseRecord{}, err
	}

	rec.ID = strconv.FormatInt(id, 10)
	if rec.Date, err = core.ParseDate(occurrence); err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("parse occurrence date %q: %w", occurrence, err)
	}
	if due.Valid {
		if rec.DueDate, err = core.ParseDate(due.String); err != nil {
			return core.ExpenseRecord{}, fmt.Errorf("parse due date %q: %w", due.String, err)
		}
	}
	if endRec.Valid {
		if rec.EndRecurrence, err = core.ParseDate(endRec.String); err != nil {
			return core.ExpenseRecord{}, fmt.Errorf("parse end recurrence date %q: %w", endRec.String, err)
		}
	}
	if cardID.Valid {
		rec.CardID = strconv.FormatInt(cardID.Int64, 10)
	}
	rec.Fixed = fixed != 0
	rec.Recurring = recurr != 0
	if installments.Valid {
		rec.Installments = int(installments.Int64)
	}
	return rec, nil
}

func scanCard(row rowScanner) (core.Card, error) {
	var (
		c  core.Card
		id int64
	)
	err := row.Scan(&id, &c.Name, &c.Brand, &c.LastDigits, &c.Limit.Cents,
		&c.DueDay, &c.ClosingDay)
	if err != nil {
		return core.Card{}, err
	}
	c.ID = strconv.FormatInt(id, 10)
	return c, nil
}

func nullDate(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.ISO()
}

func nullID(id string) any {
	if id == "" {
		return nil
	}
	return id
}

func nullInstallments(n int) any {
	if n < 2 {
		return nil
	}
	return n
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
