package engine

import (
	"fmt"
	"time"

	"fatura/internal/core"
)

// projectionPad is how many months the query window is widened on each
// side before projection. Boundary installments and fixed occurrences whose
// raw due date sits just outside a naive window are caught by the padded
// pass; the precise filter then re-applies the caller's window.
const projectionPad = 1

// Compute runs the full projection pipeline over a record snapshot:
// validate, project each record into the padded window, filter precisely,
// deduplicate, aggregate.
//
// For fixed inputs (records, window, now) the output is identical on every
// invocation. An empty record set is not an error; it yields zero totals.
func Compute(records []core.ExpenseRecord, w core.Window, spec GroupSpec, now time.Time) (Result, error) {
	if err := w.Validate(); err != nil {
		return Result{}, err
	}
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return Result{}, fmt.Errorf("record %s: %w", rec.ID, err)
		}
	}

	padded := w.Expand(projectionPad)

	var occs []core.Occurrence
	for _, rec := range records {
		for _, o := range Project(rec, padded, now) {
			if !w.Contains(o.DueDate) {
				continue
			}
			occs = append(occs, o)
		}
	}

	return Aggregate(Deduplicate(occs), spec), nil
}
