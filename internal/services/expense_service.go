package services

import (
	"context"
	"fmt"
	"log/slog"

	"fatura/internal/amqp"
	"fatura/internal/core"
	"fatura/internal/storage"
)

// EventPublisher publishes expense change events. Satisfied by *amqp.Client.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, msg *amqp.ExpenseEventMessage) error
}

// StatementInvalidator drops cached statements when expense data changes.
type StatementInvalidator interface {
	Invalidate()
}

// ExpenseService orchestrates expense and card operations: storage first,
// then a best-effort change event for downstream consumers.
type ExpenseService struct {
	store      storage.Store
	events     EventPublisher
	statements StatementInvalidator
}

func NewExpenseService(store storage.Store, events EventPublisher, statements StatementInvalidator) *ExpenseService {
	return &ExpenseService{
		store:      store,
		events:     events,
		statements: statements,
	}
}

// CreateExpense validates and saves an expense, then publishes a created
// event. Publish failures are logged but never fail the request, the
// record is already durable.
func (s *ExpenseService) CreateExpense(ctx context.Context, rec core.ExpenseRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", fmt.Errorf("validate expense: %w", err)
	}
	if rec.CardID != "" {
		if _, err := s.store.GetCard(ctx, rec.CardID); err != nil {
			return "", fmt.Errorf("resolve card %s: %w", rec.CardID, err)
		}
	}

	id, err := s.store.CreateExpense(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("save expense: %w", err)
	}

	s.invalidateStatements()
	s.publishEvent(ctx, amqp.NewExpenseEventMessage(id, rec.CardID, amqp.ActionCreated))

	return id, nil
}

func (s *ExpenseService) GetExpense(ctx context.Context, id string) (core.ExpenseRecord, error) {
	return s.store.GetExpense(ctx, id)
}

func (s *ExpenseService) ListExpenses(ctx context.Context, f storage.ExpenseFilter) ([]core.ExpenseRecord, error) {
	return s.store.ListExpenses(ctx, f)
}

// DeleteExpense removes an expense and publishes a deleted event.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id string) error {
	rec, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return fmt.Errorf("get expense %s: %w", id, err)
	}

	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}

	s.invalidateStatements()
	s.publishEvent(ctx, amqp.NewExpenseEventMessage(id, rec.CardID, amqp.ActionDeleted))

	return nil
}

func (s *ExpenseService) CreateCard(ctx context.Context, c core.Card) (string, error) {
	if err := c.Validate(); err != nil {
		return "", fmt.Errorf("validate card: %w", err)
	}
	return s.store.CreateCard(ctx, c)
}

func (s *ExpenseService) GetCard(ctx context.Context, id string) (core.Card, error) {
	return s.store.GetCard(ctx, id)
}

func (s *ExpenseService) ListCards(ctx context.Context) ([]core.Card, error) {
	return s.store.ListCards(ctx)
}

func (s *ExpenseService) DeleteCard(ctx context.Context, id string) error {
	if err := s.store.DeleteCard(ctx, id); err != nil {
		return err
	}
	s.invalidateStatements()
	return nil
}

func (s *ExpenseService) invalidateStatements() {
	if s.statements != nil {
		s.statements.Invalidate()
	}
}

func (s *ExpenseService) publishEvent(ctx context.Context, msg *amqp.ExpenseEventMessage) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishExpenseEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"expense_id", msg.ExpenseID,
			"action", string(msg.Action),
			"error", err)
	}
}
