package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"fatura/internal/core"

	_ "github.com/lib/pq"
)

// PostgresStore backs the same Store contract with Postgres. Date columns use
// the native DATE type, so scans go through time.Time instead of strings.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runPostgresMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *PostgresStore) CreateExpense(ctx context.Context, rec core.ExpenseRecord) (string, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO expenses (
			value_cents, occurrence_date, due_date, category, subcategory,
			description, card_id, fixed, recurring, installments, end_recurrence_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		rec.Value.Cents,
		rec.Date.Time,
		pgNullDate(rec.DueDate),
		rec.Category,
		rec.Subcategory,
		rec.Description,
		nullID(rec.CardID),
		rec.Fixed,
		rec.Recurring,
		nullInstallments(rec.Installments),
		pgNullDate(rec.EndRecurrence),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"value_cents", rec.Value.Cents,
		"kind", string(rec.Kind()),
		"card_id", rec.CardID)

	return strconv.FormatInt(id, 10), nil
}

const pgExpenseColumns = `
	id, value_cents, occurrence_date, due_date, category, subcategory,
	description, card_id, fixed, recurring, installments, end_recurrence_date`

func (s *PostgresStore) GetExpense(ctx context.Context, id string) (core.ExpenseRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+pgExpenseColumns+`
		FROM expenses WHERE id = $1 AND deleted_at IS NULL`, id)
	rec, err := scanPostgresExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExpenseRecord{}, ErrNotFound
	}
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("get expense %s: %w", id, err)
	}
	return rec, nil
}

func (s *PostgresStore) ListExpenses(ctx context.Context, f ExpenseFilter) ([]core.ExpenseRecord, error) {
	query := `SELECT ` + pgExpenseColumns + ` FROM expenses WHERE deleted_at IS NULL`
	args := []any{}
	switch {
	case f.CardID != "":
		query += ` AND card_id = $1`
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
		rec, err := scanPostgresExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteExpense(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE expenses SET deleted_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id)
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

func (s *PostgresStore) CreateCard(ctx context.Context, c core.Card) (string, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO cards (name, brand, last_digits, limit_cents, due_day, closing_day)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		c.Name, c.Brand, c.LastDigits, c.Limit.Cents, c.DueDay, c.ClosingDay).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert card: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *PostgresStore) GetCard(ctx context.Context, id string) (core.Card, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, brand, last_digits, limit_cents, due_day, closing_day
		FROM cards WHERE id = $1`, id)
	c, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Card{}, ErrNotFound
	}
	if err != nil {
		return core.Card{}, fmt.Errorf("get card %s: %w", id, err)
	}
	return c, nil
}

func (s *PostgresStore) ListCards(ctx context.Context) ([]core.Card, error) {
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

func (s *PostgresStore) DeleteCard(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
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

func (s *PostgresStore) SaveStatementSnapshot(ctx context.Context, snap StatementSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO statement_snapshots (card_id, window_start, window_end, total_cents, computed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (card_id) DO UPDATE SET
			window_start = excluded.window_start,
			window_end = excluded.window_end,
			total_cents = excluded.total_cents,
			computed_at = excluded.computed_at`,
		snap.CardID, snap.WindowStart.Time, snap.WindowEnd.Time,
		snap.Total.Cents, snap.ComputedAt.UTC())
	if err != nil {
		return fmt.Errorf("save statement snapshot for card %s: %w", snap.CardID, err)
	}
	return nil
}

func (s *PostgresStore) GetStatementSnapshot(ctx context.Context, cardID string) (StatementSnapshot, error) {
	var (
		snap       StatementSnapshot
		start, end time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT card_id, window_start, window_end, total_cents, computed_at
		FROM statement_snapshots WHERE card_id = $1`, cardID).
		Scan(&snap.CardID, &start, &end, &snap.Total.Cents, &snap.ComputedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return StatementSnapshot{}, ErrNotFound
	}
	if err != nil {
		return StatementSnapshot{}, fmt.Errorf("get statement snapshot for card %s: %w", cardID, err)
	}
	snap.WindowStart = core.DateOf(start)
	snap.WindowEnd = core.DateOf(end)
	return snap, nil
}

func scanPostgresExpense(row rowScanner) (core.ExpenseRecord, error) {
	var (
		rec          core.ExpenseRecord
		id           int64
		occurrence   time.Time
		due, endRec  sql.NullTime
		cardID       sql.NullInt64
		installments sql.NullInt64
	)
	err := row.Scan(&id, &rec.Value.Cents, &occurrence, &due, &rec.Category,
		&rec.Subcategory, &rec.Description, &cardID, &rec.Fixed, &rec.Recurring,
		&installments, &endRec)
	if err != nil {
		return core.ExpenseRecord{}, err
	}

	rec.ID = strconv.FormatInt(id, 10)
	rec.Date = core.DateOf(occurrence)
	if due.Valid {
		rec.DueDate = core.DateOf(due.Time)
	}
	if endRec.Valid {
		rec.EndRecurrence = core.DateOf(endRec.Time)
	}
	if cardID.Valid {
		rec.CardID = strconv.FormatInt(cardID.Int64, 10)
	}
	if installments.Valid {
		rec.Installments = int(installments.Int64)
	}
	return rec, nil
}

func pgNullDate(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.Time
}
