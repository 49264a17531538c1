// Package storage persists expense records, cards and statement snapshots.
//
// The projection engine never talks to this package directly: callers fetch
// a record snapshot here and hand it to the engine as an immutable input.
package storage

import (
	"context"
	"errors"
	"time"

	"fatura/internal/core"
)

// ErrNotFound is returned when a record or card does not exist.
var ErrNotFound = errors.New("not found")

// ExpenseFilter is the coarse query the engine's callers use to fetch a
// record snapshot. An empty CardID selects every record; CardOnly restricts
// the snapshot to card expenses.
type ExpenseFilter struct {
	CardID   string
	CardOnly bool
}

// StatementSnapshot is a precomputed current-statement total for one card,
// refreshed by the worker so dashboards read a cheap value.
type StatementSnapshot struct {
	CardID      string
	WindowStart core.Date
	WindowEnd   core.Date
	Total       core.Money
	ComputedAt  time.Time
}

// Store is the persistence boundary shared by the sqlite, postgres and
// in-memory backends.
type Store interface {
	CreateExpense(ctx context.Context, rec core.ExpenseRecord) (string, error)
	GetExpense(ctx context.Context, id string) (core.ExpenseRecord, error)
	ListExpenses(ctx context.Context, f ExpenseFilter) ([]core.ExpenseRecord, error)
	DeleteExpense(ctx context.Context, id string) error

	CreateCard(ctx context.Context, c core.Card) (string, error)
	GetCard(ctx context.Context, id string) (core.Card, error)
	ListCards(ctx context.Context) ([]core.Card, error)
	DeleteCard(ctx context.Context, id string) error

	SaveStatementSnapshot(ctx context.Context, snap StatementSnapshot) error
	GetStatementSnapshot(ctx context.Context, cardID string) (StatementSnapshot, error)

	Close() error
}
