package xtime

import "time"

// UTCNow returns the current time in UTC.
func UTCNow() time.Time {
	return time.Now().UTC()
}

var utcNowFunc = UTCNow

// setUTCNowFunc replaces the clock, for tests.
func setUTCNowFunc(f func() time.Time) {
	utcNowFunc = f
}

// resetUTCNowFunc restores the real clock. Call from test cleanup.
func resetUTCNowFunc() {
	utcNowFunc = UTCNow
}

// Period is the half-open interval [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts falls inside the period.
func (p Period) Contains(ts time.Time) bool {
	return !ts.Before(p.Start) && ts.Before(p.End)
}

// CalendarPeriods holds the calendar-aligned windows dashboard counters
// aggregate over. Weeks start on Monday.
type CalendarPeriods struct {
	Today     Period
	ThisWeek  Period
	LastWeek  Period
	ThisMonth Period
}

// GetCalendarPeriods computes the calendar windows around now in loc.
// Boundaries are taken in loc and returned in UTC, so "this week" means
// the caller's Monday, not the server's.
func GetCalendarPeriods(loc *time.Location) CalendarPeriods {
	now := utcNowFunc().In(loc)

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	// Monday-based weekday offset: Monday 0 .. Sunday 6.
	offset := int(now.Weekday()) - 1
	if offset < 0 {
		offset = 6
	}

	weekStart := dayStart.AddDate(0, 0, -offset)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)

	return CalendarPeriods{
		Today: Period{
			Start: dayStart.UTC(),
			End:   dayStart.AddDate(0, 0, 1).UTC(),
		},
		ThisWeek: Period{
			Start: weekStart.UTC(),
			End:   weekStart.AddDate(0, 0, 7).UTC(),
		},
		LastWeek: Period{
			Start: weekStart.AddDate(0, 0, -7).UTC(),
			End:   weekStart.UTC(),
		},
		ThisMonth: Period{
			Start: monthStart.UTC(),
			End:   monthStart.AddDate(0, 1, 0).UTC(),
		},
	}
}
