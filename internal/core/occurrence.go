package core

// Occurrence is one concrete, dated, valued instance of an expense record
// inside a query window. Occurrences are synthesized fresh on every
// computation and never persisted.
type Occurrence struct {
	SourceID    string
	DueDate     Date
	Value       Money
	Category    string
	Subcategory string
	Description string
	CardID      string

	// InstallmentIndex and InstallmentTotal are set only for installment
	// occurrences. The index is 1-based.
	InstallmentIndex int
	InstallmentTotal int
}

// IsInstallment reports whether the occurrence is one charge of an
// installment plan.
func (o Occurrence) IsInstallment() bool {
	return o.InstallmentTotal > 1
}

// Window is an inclusive calendar date range [Start, End].
type Window struct {
	Start Date
	End   Date
}

// NewWindow builds a window and validates its bounds.
func NewWindow(start, end Date) (Window, error) {
	w := Window{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// Validate rejects windows with zero bounds or start after end.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return ErrInvalidWindow
	}
	if w.Start.After(w.End.Time) {
		return ErrInvalidWindow
	}
	return nil
}

// Contains reports whether the date falls inside the window, bounds
// included.
func (w Window) Contains(d Date) bool {
	return !d.Before(w.Start.Time) && !d.After(w.End.Time)
}

// Expand widens the window by n months on each side. Callers expand before
// projection to catch boundary occurrences, then re-apply the precise
// window filter.
func (w Window) Expand(months int) Window {
	return Window{
		Start: w.Start.AddMonths(-months),
		End:   w.End.AddMonths(months),
	}
}
