package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskops/helpdesk-engine/internal/domain"
)

func intPtr(v int) *int { return &v }

func utc(y int, m time.Month, d, h, min, s int) time.Time {
	return time.Date(y, m, d, h, min, s, 0, time.UTC)
}

func daily(at string) domain.Automation {
	return domain.Automation{Type: domain.AutomationDailyReport, Schedule: domain.AutomationSchedule{TimeOfDay: at}}
}

func weekly(at string, day int) domain.Automation {
	return domain.Automation{Type: domain.AutomationWeeklyReport, Schedule: domain.AutomationSchedule{TimeOfDay: at, DayOfWeek: intPtr(day)}}
}

func monthly(at string, day int) domain.Automation {
	return domain.Automation{Type: domain.AutomationMonthlyReport, Schedule: domain.AutomationSchedule{TimeOfDay: at, DayOfMonth: intPtr(day)}}
}

func TestNextRun(t *testing.T) {
	tests := []struct {
		name string
		a    domain.Automation
		from time.Time
		want time.Time
	}{
		{"daily later today", daily("09:00"), utc(2024, 6, 3, 8, 59, 0), utc(2024, 6, 3, 9, 0, 0)},
		{"daily at the slot moves to tomorrow", daily("09:00"), utc(2024, 6, 3, 9, 0, 0), utc(2024, 6, 4, 9, 0, 0)},
		{"daily across month end", daily("23:30"), utc(2024, 6, 30, 23, 45, 0), utc(2024, 7, 1, 23, 30, 0)},
		{"weekly from sunday", weekly("09:00", 1), utc(2024, 6, 2, 12, 0, 0), utc(2024, 6, 3, 9, 0, 0)},
		{"weekly same day before slot", weekly("09:00", 1), utc(2024, 6, 3, 8, 0, 0), utc(2024, 6, 3, 9, 0, 0)},
		{"weekly monday just after slot", weekly("09:00", 1), utc(2024, 6, 3, 9, 0, 1), utc(2024, 6, 10, 9, 0, 0)},
		{"weekly at the slot", weekly("09:00", 1), utc(2024, 6, 3, 9, 0, 0), utc(2024, 6, 10, 9, 0, 0)},
		{"weekly saturday from wednesday", weekly("17:15", 6), utc(2024, 6, 5, 10, 0, 0), utc(2024, 6, 8, 17, 15, 0)},
		{"monthly this month", monthly("08:00", 20), utc(2024, 6, 3, 8, 0, 0), utc(2024, 6, 20, 8, 0, 0)},
		{"monthly next month", monthly("08:00", 2), utc(2024, 6, 3, 8, 0, 0), utc(2024, 7, 2, 8, 0, 0)},
		{"monthly at the slot", monthly("08:00", 3), utc(2024, 6, 3, 8, 0, 0), utc(2024, 7, 3, 8, 0, 0)},
		{"day 31 clamps in leap february", monthly("09:00", 31), utc(2024, 2, 15, 0, 0, 0), utc(2024, 2, 29, 9, 0, 0)},
		{"day 31 clamps in february", monthly("09:00", 31), utc(2023, 2, 15, 0, 0, 0), utc(2023, 2, 28, 9, 0, 0)},
		{"day 31 clamps in 30 day month", monthly("09:00", 31), utc(2024, 4, 10, 0, 0, 0), utc(2024, 4, 30, 9, 0, 0)},
		{"day 31 after the slot", monthly("09:00", 31), utc(2024, 1, 31, 9, 0, 0), utc(2024, 2, 29, 9, 0, 0)},
		{"december rolls into january", monthly("09:00", 5), utc(2024, 12, 6, 0, 0, 0), utc(2025, 1, 5, 9, 0, 0)},
		{"weekly type without day is daily", domain.Automation{Type: domain.AutomationWeeklyReport, Schedule: domain.AutomationSchedule{TimeOfDay: "09:00"}}, utc(2024, 6, 3, 10, 0, 0), utc(2024, 6, 4, 9, 0, 0)},
		{"day of week ignored for daily types", domain.Automation{Type: domain.AutomationDailyOpenTickets, Schedule: domain.AutomationSchedule{TimeOfDay: "09:00", DayOfWeek: intPtr(5)}}, utc(2024, 6, 3, 10, 0, 0), utc(2024, 6, 4, 9, 0, 0)},
		{"malformed time falls back to nine", daily("25:99"), utc(2024, 6, 3, 10, 0, 0), utc(2024, 6, 4, 9, 0, 0)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := NextRun(tc.a, tc.from)
			assert.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
			assert.True(t, got.After(tc.from))
		})
	}
}

func TestNextRunUsesScheduleTimezone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	a := daily("09:00")
	a.Schedule.Timezone = "America/New_York"

	// 12:00 UTC is 08:00 EDT.
	got := NextRun(a, utc(2024, 6, 3, 12, 0, 0))
	assert.Equal(t, utc(2024, 6, 3, 13, 0, 0), got.UTC())
	assert.Equal(t, ny.String(), got.Location().String())

	// Across the spring-forward change the wall clock stays at 09:00.
	got = NextRun(a, utc(2024, 3, 9, 15, 0, 0))
	assert.Equal(t, utc(2024, 3, 10, 13, 0, 0), got.UTC())
}

func TestNextRunInvalidTimezoneIsUTC(t *testing.T) {
	a := daily("09:00")
	a.Schedule.Timezone = "Mars/Olympus"
	got := NextRun(a, utc(2024, 6, 3, 8, 0, 0))
	assert.Equal(t, utc(2024, 6, 3, 9, 0, 0), got)
}

func TestParseTimeOfDay(t *testing.T) {
	h, m, err := ParseTimeOfDay("07:05")
	require.NoError(t, err)
	assert.Equal(t, 7, h)
	assert.Equal(t, 5, m)

	for _, bad := range []string{"", "7", "24:00", "12:60", "ab:cd", "1:2:3"} {
		_, _, err := ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(weekly("09:00", 1)))

	a := domain.Automation{
		Type: "hourly",
		Schedule: domain.AutomationSchedule{
			TimeOfDay:  "9am",
			Timezone:   "Nowhere/Land",
			DayOfWeek:  intPtr(7),
			DayOfMonth: intPtr(0),
		},
	}
	err := Validate(a)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "unknown automation type")
	assert.Contains(t, msg, "9am")
	assert.Contains(t, msg, "Nowhere/Land")
	assert.Contains(t, msg, "day of week 7")
	assert.Contains(t, msg, "day of month 0")
}
