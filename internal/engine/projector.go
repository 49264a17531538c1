// Package engine turns stored expense records into dated occurrences and
// aggregates them into billing-period views.
//
// The engine is a pure, synchronous computation: it performs no I/O, holds
// no state between calls, and is safe to invoke concurrently. Storage hands
// it an immutable snapshot of records; everything else is derived.
package engine

import (
	"fmt"
	"strings"
	"time"

	"fatura/internal/core"
)

// Project expands one expense record into the ordered sequence of
// occurrences whose due date falls inside the window, bounds included.
//
// The record is classified into exactly one recurrence shape, in priority
// order: installment, fixed, one-off. Installments win over the fixed flag
// because they define a finite schedule. Month stepping is pure
// calendar-month addition computed from the original due day, so a plan
// starting Jan 31 bills on Feb 28/29 and then Mar 31, never Mar 2.
//
// now bounds open-ended fixed records: without an end-recurrence date they
// project at most DefaultHorizonMonths past now.
func Project(rec core.ExpenseRecord, w core.Window, now time.Time) []core.Occurrence {
	switch rec.Kind() {
	case core.Installment:
		return projectInstallments(rec, w)
	case core.Fixed:
		return projectFixed(rec, w, now)
	default:
		return projectOneOff(rec, w)
	}
}

func projectInstallments(rec core.ExpenseRecord, w core.Window) []core.Occurrence {
	per, err := rec.Value.Split(rec.Installments)
	if err != nil {
		return nil
	}

	start := rec.EffectiveDueDate()
	var out []core.Occurrence
	for i := 0; i < rec.Installments; i++ {
		due := start.AddMonths(i)
		if due.After(w.End.Time) {
			break
		}
		if !w.Contains(due) {
			continue
		}
		out = append(out, core.Occurrence{
			SourceID:         rec.ID,
			DueDate:          due,
			Value:            per,
			Category:         rec.Category,
			Subcategory:      rec.Subcategory,
			Description:      installmentLabel(rec.Description, i+1, rec.Installments),
			CardID:           rec.CardID,
			InstallmentIndex: i + 1,
			InstallmentTotal: rec.Installments,
		})
	}
	return out
}

func projectFixed(rec core.ExpenseRecord, w core.Window, now time.Time) []core.Occurrence {
	start := rec.EffectiveDueDate()
	if start.After(w.End.Time) {
		// Future fixed charges never retroactively appear.
		return nil
	}

	horizon := rec.EndRecurrence
	if horizon.IsZero() {
		horizon = core.DateOf(now).AddMonths(core.DefaultHorizonMonths)
	}

	var out []core.Occurrence
	for i := 0; ; i++ {
		due := start.AddMonths(i)
		if due.After(horizon.Time) || due.After(w.End.Time) {
			break
		}
		if !w.Contains(due) {
			continue
		}
		out = append(out, core.Occurrence{
			SourceID:    rec.ID,
			DueDate:     due,
			Value:       rec.Value,
			Category:    rec.Category,
			Subcategory: rec.Subcategory,
			Description: rec.Description,
			CardID:      rec.CardID,
		})
	}
	return out
}

func projectOneOff(rec core.ExpenseRecord, w core.Window) []core.Occurrence {
	due := rec.EffectiveDueDate()
	if !w.Contains(due) {
		return nil
	}
	return []core.Occurrence{{
		SourceID:    rec.ID,
		DueDate:     due,
		Value:       rec.Value,
		Category:    rec.Category,
		Subcategory: rec.Subcategory,
		Description: rec.Description,
		CardID:      rec.CardID,
	}}
}

// installmentLabel suffixes a description with the 1-based installment
// position, e.g. "Notebook (2/10)".
func installmentLabel(description string, index, total int) string {
	return strings.TrimSpace(fmt.Sprintf("%s (%d/%d)", description, index, total))
}
