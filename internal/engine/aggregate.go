package engine

import (
	"sort"

	"fatura/internal/core"
)

// GroupSpec selects which groupings Aggregate materializes beyond the
// grand total. Any subset may be requested.
type GroupSpec struct {
	ByCategory bool
	ByMonth    bool
	ByCard     bool
}

// CategoryGroup is the total and occurrence list for one category.
type CategoryGroup struct {
	Name        string
	Total       core.Money
	Occurrences []core.Occurrence
}

// MonthGroup is the total and occurrence list for one calendar month,
// keyed "YYYY-MM".
type MonthGroup struct {
	Month       string
	Total       core.Money
	Occurrences []core.Occurrence
}

// CardTotal is the summed value of one card's occurrences.
type CardTotal struct {
	CardID string
	Total  core.Money
}

// Result is the aggregated outcome of one engine computation.
type Result struct {
	Total       core.Money
	Occurrences []core.Occurrence
	ByCategory  []CategoryGroup
	ByMonth     []MonthGroup
	ByCard      []CardTotal
}

// Aggregate sums a deduplicated occurrence sequence into the requested
// groupings. It never mutates its input and is order-independent: any
// permutation of occs produces identical totals and identically ordered
// groups. Amounts are integer cents throughout, so no rounding step is
// needed at the end.
func Aggregate(occs []core.Occurrence, spec GroupSpec) Result {
	res := Result{Occurrences: occs}
	for _, o := range occs {
		res.Total = res.Total.Add(o.Value)
	}

	if spec.ByCategory {
		res.ByCategory = groupByCategory(occs)
	}
	if spec.ByMonth {
		res.ByMonth = groupByMonth(occs)
	}
	if spec.ByCard {
		res.ByCard = totalsByCard(occs)
	}
	return res
}

func groupByCategory(occs []core.Occurrence) []CategoryGroup {
	byName := make(map[string]*CategoryGroup)
	order := make([]string, 0)
	for _, o := range occs {
		name := o.Category
		if name == "" {
			name = core.DefaultCategory
		}
		g, ok := byName[name]
		if !ok {
			g = &CategoryGroup{Name: name}
			byName[name] = g
			order = append(order, name)
		}
		g.Total = g.Total.Add(o.Value)
		g.Occurrences = append(g.Occurrences, o)
	}

	sort.Strings(order)
	out := make([]CategoryGroup, 0, len(order))
	for _, name := range order {
		g := byName[name]
		sortByDueDateDesc(g.Occurrences)
		out = append(out, *g)
	}
	return out
}

func groupByMonth(occs []core.Occurrence) []MonthGroup {
	byKey := make(map[string]*MonthGroup)
	keys := make([]string, 0)
	for _, o := range occs {
		key := o.DueDate.MonthKey()
		g, ok := byKey[key]
		if !ok {
			g = &MonthGroup{Month: key}
			byKey[key] = g
			keys = append(keys, key)
		}
		g.Total = g.Total.Add(o.Value)
		g.Occurrences = append(g.Occurrences, o)
	}

	// Most recent month first.
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	out := make([]MonthGroup, 0, len(keys))
	for _, key := range keys {
		g := byKey[key]
		sortByDueDateDesc(g.Occurrences)
		out = append(out, *g)
	}
	return out
}

func totalsByCard(occs []core.Occurrence) []CardTotal {
	byCard := make(map[string]core.Money)
	ids := make([]string, 0)
	for _, o := range occs {
		if o.CardID == "" {
			continue
		}
		if _, ok := byCard[o.CardID]; !ok {
			ids = append(ids, o.CardID)
		}
		byCard[o.CardID] = byCard[o.CardID].Add(o.Value)
	}

	sort.Strings(ids)
	out := make([]CardTotal, 0, len(ids))
	for _, id := range ids {
		out = append(out, CardTotal{CardID: id, Total: byCard[id]})
	}
	return out
}

// sortByDueDateDesc orders occurrences newest first, keeping the incoming
// order for equal dates so results stay deterministic.
func sortByDueDateDesc(occs []core.Occurrence) {
	sort.SliceStable(occs, func(i, j int) bool {
		return occs[i].DueDate.After(occs[j].DueDate.Time)
	})
}
