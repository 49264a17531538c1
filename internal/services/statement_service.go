package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"fatura/internal/cache"
	"fatura/internal/core"
	"fatura/internal/engine"
	"fatura/internal/storage"
)

// CardBill is one card's total for its current billing window.
type CardBill struct {
	Card   core.Card
	Window core.Window
	Total  core.Money
}

// StatementService answers statement questions on top of the projection
// engine, with a TTL cache in front to keep repeated lookups cheap.
type StatementService struct {
	store storage.Store
	cache *cache.TTLCache[engine.Result]
	now   func() time.Time
}

func NewStatementService(store storage.Store, c *cache.TTLCache[engine.Result]) *StatementService {
	return &StatementService{
		store: store,
		cache: c,
		now:   time.Now,
	}
}

// SetClock overrides the time source used to resolve billing windows.
// Tests use it to pin "today".
func (s *StatementService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Invalidate drops every cached statement. Called whenever expense or
// card data changes.
func (s *StatementService) Invalidate() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

// CurrentWindow resolves the open billing window for a card from its
// closing day and today's date.
func (s *StatementService) CurrentWindow(ctx context.Context, cardID string) (core.Window, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return core.Window{}, fmt.Errorf("get card %s: %w", cardID, err)
	}
	w, err := engine.CurrentBillingWindow(card, core.DateOf(s.now()))
	if err != nil {
		return core.Window{}, fmt.Errorf("resolve billing window for card %s: %w", cardID, err)
	}
	return w, nil
}

// Statement computes the aggregated statement for one card over a window.
func (s *StatementService) Statement(ctx context.Context, cardID string, w core.Window) (engine.Result, error) {
	if err := w.Validate(); err != nil {
		return engine.Result{}, err
	}

	key := statementKey(cardID, w)
	if s.cache != nil {
		if res, ok := s.cache.Get(key); ok {
			return res, nil
		}
	}

	records, err := s.store.ListExpenses(ctx, storage.ExpenseFilter{CardID: cardID})
	if err != nil {
		return engine.Result{}, fmt.Errorf("list expenses for card %s: %w", cardID, err)
	}

	res, err := engine.Compute(records, w, engine.GroupSpec{ByCategory: true, ByMonth: true}, s.now())
	if err != nil {
		return engine.Result{}, fmt.Errorf("compute statement for card %s: %w", cardID, err)
	}

	if s.cache != nil {
		s.cache.Set(key, res)
	}
	return res, nil
}

// BillValue is the total of a card's current billing window.
func (s *StatementService) BillValue(ctx context.Context, cardID string) (core.Money, core.Window, error) {
	w, err := s.CurrentWindow(ctx, cardID)
	if err != nil {
		return core.Money{}, core.Window{}, err
	}
	res, err := s.Statement(ctx, cardID, w)
	if err != nil {
		return core.Money{}, core.Window{}, err
	}
	return res.Total, w, nil
}

// BillsSummary computes the current bill of every card concurrently.
func (s *StatementService) BillsSummary(ctx context.Context) ([]CardBill, error) {
	cards, err := s.store.ListCards(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}

	bills := make([]CardBill, len(cards))
	g, gctx := errgroup.WithContext(ctx)
	for i, card := range cards {
		g.Go(func() error {
			w, err := engine.CurrentBillingWindow(card, core.DateOf(s.now()))
			if err != nil {
				return fmt.Errorf("billing window for card %s: %w", card.ID, err)
			}
			res, err := s.Statement(gctx, card.ID, w)
			if err != nil {
				return err
			}
			bills[i] = CardBill{Card: card, Window: w, Total: res.Total}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(bills, func(i, j int) bool { return bills[i].Card.ID < bills[j].Card.ID })
	return bills, nil
}

// History aggregates a card's projected occurrences per month, covering
// the given number of months back plus the current month.
func (s *StatementService) History(ctx context.Context, cardID string, months int) ([]engine.MonthGroup, error) {
	if months < 1 {
		return nil, fmt.Errorf("history months must be positive, got %d", months)
	}

	today := core.DateOf(s.now())
	start := today.AddMonths(-months).StartOfMonth()
	end := today.ClampDay(31) // last day of the current month
	w, err := core.NewWindow(start, end)
	if err != nil {
		return nil, err
	}

	res, err := s.Statement(ctx, cardID, w)
	if err != nil {
		return nil, err
	}
	return res.ByMonth, nil
}

// Overview aggregates every expense, card-bound or not, over a window.
func (s *StatementService) Overview(ctx context.Context, w core.Window) (engine.Result, error) {
	if err := w.Validate(); err != nil {
		return engine.Result{}, err
	}

	records, err := s.store.ListExpenses(ctx, storage.ExpenseFilter{})
	if err != nil {
		return engine.Result{}, fmt.Errorf("list expenses: %w", err)
	}

	return engine.Compute(records, w, engine.GroupSpec{ByCategory: true, ByMonth: true, ByCard: true}, s.now())
}

// RefreshSnapshot recomputes a card's current bill and persists it.
func (s *StatementService) RefreshSnapshot(ctx context.Context, cardID string) (storage.StatementSnapshot, error) {
	total, w, err := s.BillValue(ctx, cardID)
	if err != nil {
		return storage.StatementSnapshot{}, err
	}

	snap := storage.StatementSnapshot{
		CardID:      cardID,
		WindowStart: w.Start,
		WindowEnd:   w.End,
		Total:       total,
		ComputedAt:  s.now().UTC(),
	}
	if err := s.store.SaveStatementSnapshot(ctx, snap); err != nil {
		return storage.StatementSnapshot{}, fmt.Errorf("save snapshot for card %s: %w", cardID, err)
	}
	return snap, nil
}

func statementKey(cardID string, w core.Window) string {
	return cardID + "|" + w.Start.ISO() + "|" + w.End.ISO()
}
