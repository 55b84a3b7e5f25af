package tool

import "time"

// DateOf returns the civil date of t in loc, as UTC midnight. Entitlement
// dates are compared and stored in this form.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays adds n calendar days to a civil date.
func AddDays(date time.Time, n int) time.Time {
	return date.AddDate(0, 0, n)
}
