package engine

import (
	"errors"
	"reflect"
	"testing"

	"fatura/internal/core"
)

func sampleRecords() []core.ExpenseRecord {
	return []core.ExpenseRecord{
		{
			ID:    "one-off",
			Value: core.Money{Cents: 9900},
			Date:  core.NewDate(2024, 2, 10),
		},
		{
			ID:           "plan",
			Value:        core.Money{Cents: 120000},
			Date:         core.NewDate(2024, 1, 15),
			DueDate:      core.NewDate(2024, 1, 15),
			Installments: 3,
			Category:     "Eletronicos",
			CardID:       "card-1",
		},
		{
			ID:      "rent",
			Value:   core.Money{Cents: 50000},
			Date:    core.NewDate(2024, 1, 31),
			DueDate: core.NewDate(2024, 1, 31),
			Fixed:   true,
			CardID:  "card-1",
		},
	}
}

func TestComputePipeline(t *testing.T) {
	w := window(t, core.NewDate(2024, 1, 1), core.NewDate(2024, 3, 31))
	res, err := Compute(sampleRecords(), w, GroupSpec{ByCategory: true, ByMonth: true}, testNow)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	// 1 one-off + 3 installments + 3 fixed months (Jan 31, Feb 29, Mar 31).
	if len(res.Occurrences) != 7 {
		t.Fatalf("expected 7 occurrences, got %d", len(res.Occurrences))
	}
	want := int64(9900 + 120000 + 3*50000)
	if res.Total.Cents != want {
		t.Fatalf("total %d, want %d", res.Total.Cents, want)
	}
}

func TestComputeIdempotent(t *testing.T) {
	w := window(t, core.NewDate(2024, 1, 1), core.NewDate(2024, 3, 31))
	spec := GroupSpec{ByCategory: true, ByMonth: true, ByCard: true}

	first, err := Compute(sampleRecords(), w, spec, testNow)
	if err != nil {
		t.Fatalf("first compute: %v", err)
	}
	second, err := Compute(sampleRecords(), w, spec, testNow)
	if err != nil {
		t.Fatalf("second compute: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same inputs must produce identical results")
	}
}

func TestComputeWindowBoundary(t *testing.T) {
	// An occurrence appears for a window iff the window contains its date,
	// even though projection internally pads the window.
	rec := core.ExpenseRecord{
		ID:    "edge",
		Value: core.Money{Cents: 100},
		Date:  core.NewDate(2024, 2, 29),
	}
	cases := []struct {
		start, end core.Date
		want       int
	}{
		{core.NewDate(2024, 2, 1), core.NewDate(2024, 2, 29), 1},
		{core.NewDate(2024, 2, 29), core.NewDate(2024, 3, 31), 1},
		{core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 31), 0},
		{core.NewDate(2024, 1, 1), core.NewDate(2024, 2, 28), 0},
	}
	for i, tc := range cases {
		w := window(t, tc.start, tc.end)
		res, err := Compute([]core.ExpenseRecord{rec}, w, GroupSpec{}, testNow)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if len(res.Occurrences) != tc.want {
			t.Fatalf("case %d: got %d occurrences, want %d", i, len(res.Occurrences), tc.want)
		}
	}
}

func TestComputeEmptyRecords(t *testing.T) {
	w := window(t, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31))
	res, err := Compute(nil, w, GroupSpec{ByCategory: true}, testNow)
	if err != nil {
		t.Fatalf("empty record set must not fail: %v", err)
	}
	if res.Total.Cents != 0 || len(res.Occurrences) != 0 {
		t.Fatalf("empty record set must yield zero totals")
	}
}

func TestComputeInvalidWindow(t *testing.T) {
	w := core.Window{Start: core.NewDate(2024, 3, 1), End: core.NewDate(2024, 1, 1)}
	if _, err := Compute(nil, w, GroupSpec{}, testNow); !errors.Is(err, core.ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestComputeSingleInstallmentIsOneOff(t *testing.T) {
	// An installment count of 1 is not a plan: the record charges once,
	// undivided, with no installment marker.
	rec := core.ExpenseRecord{
		ID:           "single",
		Value:        core.Money{Cents: 5000},
		Date:         core.NewDate(2024, 1, 15),
		DueDate:      core.NewDate(2024, 1, 15),
		Installments: 1,
	}
	w := window(t, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31))

	res, err := Compute([]core.ExpenseRecord{rec}, w, GroupSpec{}, testNow)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(res.Occurrences) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(res.Occurrences))
	}
	if res.Total.Cents != 5000 {
		t.Fatalf("total %d, want 5000", res.Total.Cents)
	}
	if res.Occurrences[0].IsInstallment() {
		t.Fatalf("a single-installment record must not be marked as an installment")
	}
}

func TestComputeRejectsInvalidRecords(t *testing.T) {
	w := window(t, core.NewDate(2024, 1, 1), core.NewDate(2024, 12, 31))
	cases := []struct {
		name string
		rec  core.ExpenseRecord
		want error
	}{
		{
			name: "negative value",
			rec:  core.ExpenseRecord{ID: "n", Value: core.Money{Cents: -100}, Date: core.NewDate(2024, 1, 1)},
			want: core.ErrNegativeValue,
		},
		{
			name: "negative installments",
			rec:  core.ExpenseRecord{ID: "i", Value: core.Money{Cents: 100}, Date: core.NewDate(2024, 1, 1), Installments: -2},
			want: core.ErrInvalidInstallments,
		},
		{
			name: "zero date",
			rec:  core.ExpenseRecord{ID: "z", Value: core.Money{Cents: 100}},
			want: core.ErrInvalidDate,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compute([]core.ExpenseRecord{tc.rec}, w, GroupSpec{}, testNow)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}
