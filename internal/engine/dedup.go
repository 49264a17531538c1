package engine

import "fatura/internal/core"

// occurrenceKey is the composite identity that collapses duplicate
// projections arising from overlapping query predicates. The key is wider
// than (source, date) on purpose: distinct installments of one record share
// a source and may share a value, but never an installment index.
type occurrenceKey struct {
	sourceID    string
	cents       int64
	dueDate     string // date-only, ISO form
	installment int    // 0 when absent
	description string
}

func keyOf(o core.Occurrence) occurrenceKey {
	return occurrenceKey{
		sourceID:    o.SourceID,
		cents:       o.Value.Cents,
		dueDate:     o.DueDate.ISO(),
		installment: o.InstallmentIndex,
		description: o.Description,
	}
}

// Deduplicate drops occurrences whose composite key was already seen,
// preserving first-seen order. Feeding one record through overlapping
// predicates therefore never yields the same occurrence twice.
func Deduplicate(occs []core.Occurrence) []core.Occurrence {
	if len(occs) == 0 {
		return nil
	}
	seen := make(map[occurrenceKey]struct{}, len(occs))
	out := make([]core.Occurrence, 0, len(occs))
	for _, o := range occs {
		k := keyOf(o)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, o)
	}
	return out
}
