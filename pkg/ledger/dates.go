package ledger

import "time"

// AdvanceByPeriod adds calendar months to a date. When the source day does not
// exist in the target month (e.g. Jan 31 + 1 month), the result is clamped to
// the last day of the target month instead of spilling into the next one.
// Clamping is not undone later: Feb 28 + 1 month is Mar 28, not Mar 31.
func AdvanceByPeriod(t time.Time, months int) time.Time {
	advanced := t.AddDate(0, months, 0)
	if advanced.Day() != t.Day() {
		// AddDate normalized the overflow into the following month; back up
		// to the last day of the intended month.
		advanced = time.Date(advanced.Year(), advanced.Month(), 1,
			t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location()).AddDate(0, 0, -1)
	}
	return advanced
}

// wholeMonthsBetween counts complete calendar months from start to end,
// flooring partial months.
func wholeMonthsBetween(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	months := int(end.Month()) - int(start.Month()) + 12*(end.Year()-start.Year())
	if end.Day() < start.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
