package engine

import "fatura/internal/core"

// BillingWindow computes the statement window for a card's closing day
// relative to a reference date.
//
// When the reference day has not passed the closing day, the statement
// still being filled runs from the day after the previous month's close to
// this month's close. Otherwise the current statement has already closed
// and the window rolls one month forward. Days past a month's length clamp
// to its last day.
func BillingWindow(closingDay int, ref core.Date) (core.Window, error) {
	if closingDay < 1 || closingDay > 31 {
		return core.Window{}, core.ErrInvalidClosingDay
	}

	month := ref.StartOfMonth()
	var startMonth, endMonth core.Date
	if ref.Day() <= closingDay {
		startMonth = month.AddMonths(-1)
		endMonth = month
	} else {
		startMonth = month
		endMonth = month.AddMonths(1)
	}

	return core.NewWindow(
		startMonth.ClampDay(closingDay+1),
		endMonth.ClampDay(closingDay),
	)
}

// CurrentBillingWindow is BillingWindow anchored at the card's closing day
// for the given "today".
func CurrentBillingWindow(card core.Card, today core.Date) (core.Window, error) {
	return BillingWindow(card.ClosingDay, today)
}
