// Package schedule computes and dispatches recurring automation runs.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/deskops/helpdesk-engine/internal/domain"
)

const (
	defaultHour   = 9
	defaultMinute = 0
)

// ParseTimeOfDay parses a 24h "HH:mm" value.
func ParseTimeOfDay(v string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("time of day %q: want HH:mm", v)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("time of day %q: hour out of range", v)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time of day %q: minute out of range", v)
	}
	return hour, minute, nil
}

// Validate reports every problem with an automation's schedule. NextRun
// still works on invalid input by falling back to defaults.
func Validate(a domain.Automation) error {
	var errs []error
	if !a.Type.Valid() {
		errs = append(errs, fmt.Errorf("unknown automation type %q", a.Type))
	}
	if _, _, err := ParseTimeOfDay(a.Schedule.TimeOfDay); err != nil {
		errs = append(errs, err)
	}
	if tz := a.Schedule.Timezone; tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("timezone %q: %w", tz, err))
		}
	}
	if d := a.Schedule.DayOfWeek; d != nil && (*d < 0 || *d > 6) {
		errs = append(errs, fmt.Errorf("day of week %d out of range 0-6", *d))
	}
	if d := a.Schedule.DayOfMonth; d != nil && (*d < 1 || *d > 31) {
		errs = append(errs, fmt.Errorf("day of month %d out of range 1-31", *d))
	}
	return errors.Join(errs...)
}

// NextRun returns the first slot of a's schedule strictly after from,
// computed on the wall clock of the schedule's timezone.
//
// Weekly reports fire on DayOfWeek and monthly reports on DayOfMonth; a day
// past the end of a short month clamps to that month's last day. Without the
// matching day field the schedule is daily.
func NextRun(a domain.Automation, from time.Time) time.Time {
	hour, minute, err := ParseTimeOfDay(a.Schedule.TimeOfDay)
	if err != nil {
		hour, minute = defaultHour, defaultMinute
	}
	local := from.In(a.Schedule.Location())

	switch {
	case a.Type == domain.AutomationWeeklyReport && a.Schedule.DayOfWeek != nil:
		return nextWeekly(local, time.Weekday(clampInt(*a.Schedule.DayOfWeek, 0, 6)), hour, minute)
	case a.Type == domain.AutomationMonthlyReport && a.Schedule.DayOfMonth != nil:
		return nextMonthly(local, clampInt(*a.Schedule.DayOfMonth, 1, 31), hour, minute)
	default:
		return nextDaily(local, hour, minute)
	}
}

func nextDaily(from time.Time, hour, minute int) time.Time {
	y, m, d := from.Date()
	for i := 0; ; i++ {
		candidate := time.Date(y, m, d+i, hour, minute, 0, 0, from.Location())
		if candidate.After(from) {
			return candidate
		}
	}
}

func nextWeekly(from time.Time, target time.Weekday, hour, minute int) time.Time {
	y, m, d := from.Date()
	days := (int(target) - int(from.Weekday()) + 7) % 7
	for ; ; days += 7 {
		candidate := time.Date(y, m, d+days, hour, minute, 0, 0, from.Location())
		if candidate.After(from) {
			return candidate
		}
	}
}

func nextMonthly(from time.Time, day, hour, minute int) time.Time {
	y, m, _ := from.Date()
	for i := 0; ; i++ {
		first := time.Date(y, m+time.Month(i), 1, 0, 0, 0, 0, from.Location())
		cy, cm, _ := first.Date()
		candidate := time.Date(cy, cm, min(day, daysIn(cy, cm)), hour, minute, 0, 0, from.Location())
		if candidate.After(from) {
			return candidate
		}
	}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
