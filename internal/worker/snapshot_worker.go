// Package worker keeps statement snapshots fresh. It reacts to expense
// change events from the broker and also refreshes everything on a cron
// schedule as a catch-all for missed messages.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"fatura/internal/amqp"
	"fatura/internal/core"
	"fatura/internal/services"
	"fatura/internal/storage"
)

// SnapshotWorker recomputes and persists per-card statement snapshots.
type SnapshotWorker struct {
	store      storage.Store
	statements *services.StatementService
	events     *amqp.Client
	agendaDays int
	now        func() time.Time
}

func NewSnapshotWorker(store storage.Store, statements *services.StatementService, events *amqp.Client, agendaDays int) *SnapshotWorker {
	return &SnapshotWorker{
		store:      store,
		statements: statements,
		events:     events,
		agendaDays: agendaDays,
		now:        time.Now,
	}
}

// HandleExpenseEvent reacts to one expense change: drop cached statements
// and recompute the snapshot of the affected card. Events without a card
// only invalidate, there is no statement to refresh.
func (w *SnapshotWorker) HandleExpenseEvent(ctx context.Context, msg *amqp.ExpenseEventMessage) error {
	slog.InfoContext(ctx, "Processing expense event",
		"expense_id", msg.ExpenseID,
		"card_id", msg.CardID,
		"action", string(msg.Action))

	w.statements.Invalidate()

	if msg.CardID == "" {
		return nil
	}

	snap, err := w.statements.RefreshSnapshot(ctx, msg.CardID)
	if err != nil {
		return fmt.Errorf("refresh snapshot for card %s: %w", msg.CardID, err)
	}

	slog.InfoContext(ctx, "Snapshot refreshed",
		"card_id", msg.CardID,
		"total_cents", snap.Total.Cents,
		"window_end", snap.WindowEnd.ISO())

	return nil
}

// RefreshAllSnapshots recomputes every card's snapshot. One failing card
// does not stop the others.
func (w *SnapshotWorker) RefreshAllSnapshots(ctx context.Context) error {
	cards, err := w.store.ListCards(ctx)
	if err != nil {
		return fmt.Errorf("list cards: %w", err)
	}

	w.statements.Invalidate()

	refreshed := 0
	failed := 0
	for _, card := range cards {
		if _, err := w.statements.RefreshSnapshot(ctx, card.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to refresh snapshot",
				"card_id", card.ID, "error", err)
			failed++
			continue
		}
		refreshed++
	}

	slog.InfoContext(ctx, "Snapshot refresh completed",
		"cards", len(cards),
		"refreshed", refreshed,
		"failed", failed)

	if failed > 0 {
		return fmt.Errorf("refresh snapshots: %d of %d cards failed", failed, len(cards))
	}
	return nil
}

// RunAgendaScan logs every occurrence falling due within the configured
// agenda horizon. Purely informational, it changes no state.
func (w *SnapshotWorker) RunAgendaScan(ctx context.Context) error {
	today := core.DateOf(w.now())
	horizon, err := core.NewWindow(today, core.Date{Time: today.AddDate(0, 0, w.agendaDays)})
	if err != nil {
		return fmt.Errorf("agenda window: %w", err)
	}

	res, err := w.statements.Overview(ctx, horizon)
	if err != nil {
		return fmt.Errorf("compute agenda: %w", err)
	}

	slog.InfoContext(ctx, "Agenda scan",
		"days", w.agendaDays,
		"upcoming", len(res.Occurrences),
		"total_cents", res.Total.Cents)

	for _, o := range res.Occurrences {
		slog.InfoContext(ctx, "Upcoming charge",
			"due_date", o.DueDate.ISO(),
			"description", o.Description,
			"value_cents", o.Value.Cents,
			"card_id", o.CardID)
	}

	return nil
}

// runScheduledMaintenance is one cron tick: refresh every snapshot, then
// scan the agenda. The job context derives from the worker's run context so
// shutdown cancels an in-flight refresh instead of letting it run out its
// timeout.
func (w *SnapshotWorker) runScheduledMaintenance(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	jobCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	if err := w.RefreshAllSnapshots(jobCtx); err != nil {
		slog.Error("Scheduled snapshot refresh failed", "error", err)
	}
	if err := w.RunAgendaScan(jobCtx); err != nil {
		slog.Error("Scheduled agenda scan failed", "error", err)
	}
}

// Run blocks until the context is cancelled: cron-driven refreshes plus,
// when a broker is configured, event-driven ones.
func (w *SnapshotWorker) Run(ctx context.Context, schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() { w.runScheduledMaintenance(ctx) })
	if err != nil {
		return fmt.Errorf("register cron schedule %q: %w", schedule, err)
	}
	c.Start()
	defer c.Stop()

	slog.InfoContext(ctx, "Snapshot worker started",
		"schedule", schedule,
		"events_enabled", w.events != nil)

	// Catch up once at startup so snapshots exist before the first tick.
	if err := w.RefreshAllSnapshots(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup snapshot refresh failed", "error", err)
	}

	if w.events == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	return w.events.ConsumeExpenseEvents(ctx, func(msg *amqp.ExpenseEventMessage) error {
		return w.HandleExpenseEvent(ctx, msg)
	})
}
