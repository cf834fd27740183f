// Package bizday computes business-day adjustments for billing due dates.
//
// A due date that lands on a weekend or holiday always shifts forward to
// the next business day, never backward.
package bizday

import (
	"time"
)

// HolidaySource supplies the set of non-business dates (beyond weekends)
type HolidaySource interface {
	Holidays() (map[string]bool, error)
}

// Calendar answers business-day questions against a holiday source
type Calendar struct {
	holidays HolidaySource
}

// NewCalendar creates a Calendar. A nil source means weekends only.
func NewCalendar(holidays HolidaySource) *Calendar {
	return &Calendar{holidays: holidays}
}

// IsBusinessDay reports whether d is a business day
func (c *Calendar) IsBusinessDay(d time.Time) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	if c.holidays == nil {
		return true
	}
	set, err := c.holidays.Holidays()
	if err != nil {
		// A broken holiday source degrades to weekends-only rather than
		// blocking invoice generation.
		return true
	}
	return !set[d.Format("2006-01-02")]
}

// AdjustForward rolls d forward to the nearest business day. Business days
// pass through unchanged.
func (c *Calendar) AdjustForward(d time.Time) time.Time {
	for !c.IsBusinessDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// DueDate returns the next occurrence of billingDay strictly after from,
// adjusted forward to a business day. billingDay 99 means end of month.
func (c *Calendar) DueDate(billingDay int, from time.Time) time.Time {
	year, month, _ := from.Date()

	due := anchorDate(billingDay, year, month, from.Location())
	if !due.After(from) {
		next := time.Date(year, month, 1, 0, 0, 0, 0, from.Location()).AddDate(0, 1, 0)
		due = anchorDate(billingDay, next.Year(), next.Month(), from.Location())
	}
	return c.AdjustForward(due)
}

func anchorDate(billingDay, year int, month time.Month, loc *time.Location) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	day := billingDay
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
