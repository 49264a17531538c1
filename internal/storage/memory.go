package storage

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"fatura/internal/core"
)

// MemoryStore keeps everything in process memory. Used by tests and as a
// throwaway backend for local development.
type MemoryStore struct {
	mu        sync.RWMutex
	expenses  map[string]core.ExpenseRecord
	cards     map[string]core.Card
	snapshots map[string]StatementSnapshot
	nextID    int64
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		expenses:  make(map[string]core.ExpenseRecord),
		cards:     make(map[string]core.Card),
		snapshots: make(map[string]StatementSnapshot),
		nextID:    1,
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) allocID() string {
	id := strconv.FormatInt(s.nextID, 10)
	s.nextID++
	return id
}

func (s *MemoryStore) CreateExpense(_ context.Context, rec core.ExpenseRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = s.allocID()
	s.expenses[rec.ID] = rec
	return rec.ID, nil
}

func (s *MemoryStore) GetExpense(_ context.Context, id string) (core.ExpenseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.expenses[id]
	if !ok {
		return core.ExpenseRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) ListExpenses(_ context.Context, f ExpenseFilter) ([]core.ExpenseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.ExpenseRecord
	for _, rec := range s.expenses {
		if f.CardID != "" && rec.CardID != f.CardID {
			continue
		}
		if f.CardOnly && rec.CardID == "" {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].EffectiveDueDate(), out[j].EffectiveDueDate()
		if !di.Equal(dj.Time) {
			return dj.Before(di.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expenses[id]; !ok {
		return ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *MemoryStore) CreateCard(_ context.Context, c core.Card) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = s.allocID()
	s.cards[c.ID] = c
	return c.ID, nil
}

func (s *MemoryStore) GetCard(_ context.Context, id string) (core.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cards[id]
	if !ok {
		return core.Card{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) ListCards(_ context.Context) ([]core.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Card, 0, len(s.cards))
	for _, c := range s.cards {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) DeleteCard(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cards[id]; !ok {
		return ErrNotFound
	}
	delete(s.cards, id)
	return nil
}

func (s *MemoryStore) SaveStatementSnapshot(_ context.Context, snap StatementSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snap.CardID] = snap
	return nil
}

func (s *MemoryStore) GetStatementSnapshot(_ context.Context, cardID string) (StatementSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[cardID]
	if !ok {
		return StatementSnapshot{}, ErrNotFound
	}
	return snap, nil
}
