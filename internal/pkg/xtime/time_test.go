package xtime

import (
	"testing"
	"time"
)

func TestGetCalendarPeriods(t *testing.T) {
	tests := []struct {
		name          string
		now           time.Time
		wantToday     Period
		wantThisWeek  Period
		wantLastWeek  Period
		wantThisMonth Period
	}{
		{
			name: "midweek",
			now:  time.Date(2026, 8, 19, 14, 30, 0, 0, time.UTC), // Wednesday
			wantToday: Period{
				Start: time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
			},
			wantThisWeek: Period{
				Start: time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
			},
			wantLastWeek: Period{
				Start: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
			},
			wantThisMonth: Period{
				Start: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "monday morning starts a fresh week",
			now:  time.Date(2026, 8, 17, 0, 30, 0, 0, time.UTC), // Monday
			wantToday: Period{
				Start: time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 8, 18, 0, 0, 0, 0, time.UTC),
			},
			wantThisWeek: Period{
				Start: time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
			},
			wantLastWeek: Period{
				Start: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
			},
			wantThisMonth: Period{
				Start: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "sunday belongs to the running week",
			now:  time.Date(2026, 8, 23, 23, 59, 59, 0, time.UTC), // Sunday
			wantToday: Period{
				Start: time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
			},
			wantThisWeek: Period{
				Start: time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
			},
			wantLastWeek: Period{
				Start: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
			},
			wantThisMonth: Period{
				Start: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "month boundary",
			now:  time.Date(2026, 12, 31, 12, 0, 0, 0, time.UTC), // Thursday
			wantToday: Period{
				Start: time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
			},
			wantThisWeek: Period{
				Start: time.Date(2026, 12, 28, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2027, 1, 4, 0, 0, 0, 0, time.UTC),
			},
			wantLastWeek: Period{
				Start: time.Date(2026, 12, 21, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 12, 28, 0, 0, 0, 0, time.UTC),
			},
			wantThisMonth: Period{
				Start: time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setUTCNowFunc(func() time.Time { return tt.now })
			t.Cleanup(resetUTCNowFunc)

			got := GetCalendarPeriods(time.UTC)

			if got.Today != tt.wantToday {
				t.Errorf("Today = %v, want %v", got.Today, tt.wantToday)
			}

			if got.ThisWeek != tt.wantThisWeek {
				t.Errorf("ThisWeek = %v, want %v", got.ThisWeek, tt.wantThisWeek)
			}

			if got.LastWeek != tt.wantLastWeek {
				t.Errorf("LastWeek = %v, want %v", got.LastWeek, tt.wantLastWeek)
			}

			if got.ThisMonth != tt.wantThisMonth {
				t.Errorf("ThisMonth = %v, want %v", got.ThisMonth, tt.wantThisMonth)
			}
		})
	}
}

func TestGetCalendarPeriodsRespectsLocation(t *testing.T) {
	// 23:00 UTC on a Tuesday is already Wednesday in UTC+8; the local
	// day boundary must win.
	setUTCNowFunc(func() time.Time {
		return time.Date(2026, 8, 18, 23, 0, 0, 0, time.UTC)
	})
	t.Cleanup(resetUTCNowFunc)

	loc := time.FixedZone("UTC+8", 8*3600)
	got := GetCalendarPeriods(loc)

	wantStart := time.Date(2026, 8, 19, 0, 0, 0, 0, loc).UTC()
	if !got.Today.Start.Equal(wantStart) {
		t.Errorf("Today.Start = %v, want %v", got.Today.Start, wantStart)
	}
}

func TestPeriodContains(t *testing.T) {
	p := Period{
		Start: time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
	}

	if !p.Contains(p.Start) {
		t.Error("Contains(Start) = false, want true (start inclusive)")
	}

	if p.Contains(p.End) {
		t.Error("Contains(End) = true, want false (end exclusive)")
	}

	if !p.Contains(time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)) {
		t.Error("Contains(midpoint) = false, want true")
	}
}
