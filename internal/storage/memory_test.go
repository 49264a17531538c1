package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"fatura/internal/core"
)

func mustDate(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func TestMemoryStoreExpenseLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	rec := core.ExpenseRecord{
		Value:       core.Money{Cents: 12050},
		Date:        mustDate(t, "2024-01-10"),
		DueDate:     mustDate(t, "2024-02-05"),
		Category:    "Mercado",
		Description: "compras",
	}

	id, err := store.CreateExpense(ctx, rec)
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	if id == "" {
		t.Fatal("CreateExpense returned empty id")
	}

	got, err := store.GetExpense(ctx, id)
	if err != nil {
		t.Fatalf("GetExpense: %v", err)
	}
	if got.Value.Cents != 12050 || got.Category != "Mercado" {
		t.Errorf("GetExpense = %+v, want value 12050 category Mercado", got)
	}
	if got.DueDate.ISO() != "2024-02-05" {
		t.Errorf("due date = %s, want 2024-02-05", got.DueDate.ISO())
	}

	if err := store.DeleteExpense(ctx, id); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}
	if _, err := store.GetExpense(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetExpense after delete: err = %v, want ErrNotFound", err)
	}
	if err := store.DeleteExpense(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteExpense twice: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreListExpensesFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	cardID, err := store.CreateCard(ctx, core.Card{Name: "Nubank", ClosingDay: 7, DueDay: 15})
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}

	records := []core.ExpenseRecord{
		{Value: core.Money{Cents: 1000}, Date: mustDate(t, "2024-01-01"), CardID: cardID},
		{Value: core.Money{Cents: 2000}, Date: mustDate(t, "2024-01-02")},
		{Value: core.Money{Cents: 3000}, Date: mustDate(t, "2024-01-03"), CardID: cardID},
	}
	for _, rec := range records {
		if _, err := store.CreateExpense(ctx, rec); err != nil {
			t.Fatalf("CreateExpense: %v", err)
		}
	}

	all, err := store.ListExpenses(ctx, ExpenseFilter{})
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListExpenses returned %d records, want 3", len(all))
	}
	// Newest effective due date first.
	if all[0].Value.Cents != 3000 {
		t.Errorf("first record value = %d, want 3000", all[0].Value.Cents)
	}

	byCard, err := store.ListExpenses(ctx, ExpenseFilter{CardID: cardID})
	if err != nil {
		t.Fatalf("ListExpenses by card: %v", err)
	}
	if len(byCard) != 2 {
		t.Errorf("ListExpenses by card returned %d records, want 2", len(byCard))
	}

	cardOnly, err := store.ListExpenses(ctx, ExpenseFilter{CardOnly: true})
	if err != nil {
		t.Fatalf("ListExpenses card only: %v", err)
	}
	if len(cardOnly) != 2 {
		t.Errorf("ListExpenses card only returned %d records, want 2", len(cardOnly))
	}
}

func TestMemoryStoreCards(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id1, err := store.CreateCard(ctx, core.Card{Name: "Nubank", ClosingDay: 7, DueDay: 15})
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}
	id2, err := store.CreateCard(ctx, core.Card{Name: "Inter", ClosingDay: 20, DueDay: 28})
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("card ids collide: %s", id1)
	}

	cards, err := store.ListCards(ctx)
	if err != nil {
		t.Fatalf("ListCards: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("ListCards returned %d cards, want 2", len(cards))
	}
	if cards[0].Name != "Nubank" || cards[1].Name != "Inter" {
		t.Errorf("ListCards order = [%s, %s], want [Nubank, Inter]", cards[0].Name, cards[1].Name)
	}

	if err := store.DeleteCard(ctx, id1); err != nil {
		t.Fatalf("DeleteCard: %v", err)
	}
	if _, err := store.GetCard(ctx, id1); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetCard after delete: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreStatementSnapshots(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.GetStatementSnapshot(ctx, "1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetStatementSnapshot on empty store: err = %v, want ErrNotFound", err)
	}

	snap := StatementSnapshot{
		CardID:      "1",
		WindowStart: mustDate(t, "2024-01-08"),
		WindowEnd:   mustDate(t, "2024-02-07"),
		Total:       core.Money{Cents: 45000},
		ComputedAt:  time.Date(2024, 2, 1, 3, 0, 0, 0, time.UTC),
	}
	if err := store.SaveStatementSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveStatementSnapshot: %v", err)
	}

	got, err := store.GetStatementSnapshot(ctx, "1")
	if err != nil {
		t.Fatalf("GetStatementSnapshot: %v", err)
	}
	if got.Total.Cents != 45000 || got.WindowEnd.ISO() != "2024-02-07" {
		t.Errorf("snapshot = %+v, want total 45000 window end 2024-02-07", got)
	}

	// Saving again replaces the previous snapshot for the card.
	snap.Total = core.Money{Cents: 50000}
	if err := store.SaveStatementSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveStatementSnapshot overwrite: %v", err)
	}
	got, err = store.GetStatementSnapshot(ctx, "1")
	if err != nil {
		t.Fatalf("GetStatementSnapshot after overwrite: %v", err)
	}
	if got.Total.Cents != 50000 {
		t.Errorf("snapshot total after overwrite = %d, want 50000", got.Total.Cents)
	}
}
