package domain

import "time"

// AutomationType enumerates recurring report jobs.
type AutomationType string

const (
	AutomationDailyOpenTickets AutomationType = "daily-open-tickets"
	AutomationDailyReport      AutomationType = "daily-report"
	AutomationWeeklyReport     AutomationType = "weekly-report"
	AutomationMonthlyReport    AutomationType = "monthly-report"
)

// Valid reports whether t is a known automation type.
func (t AutomationType) Valid() bool {
	switch t {
	case AutomationDailyOpenTickets, AutomationDailyReport, AutomationWeeklyReport, AutomationMonthlyReport:
		return true
	}
	return false
}

// AutomationSchedule describes when a recurring job fires.
type AutomationSchedule struct {
	TimeOfDay  string // HH:mm
	Timezone   string
	DayOfWeek  *int // 0 = Sunday, weekly only
	DayOfMonth *int // 1-31, monthly only
}

// Location resolves Timezone. Empty or unknown zones fall back to UTC.
func (s AutomationSchedule) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AutomationRecipients selects the recipient groups of a report.
type AutomationRecipients struct {
	Admins               bool
	OrganizationManagers bool
	DepartmentHeads      bool
	Technicians          bool
}

// Automation is a recurring report definition. NextRunAt is owned by the scheduler.
type Automation struct {
	ID             string
	Name           string
	Type           AutomationType
	OrganizationID *string
	Enabled        bool
	Schedule       AutomationSchedule
	Recipients     AutomationRecipients
	LastRunAt      *time.Time
	NextRunAt      *time.Time
	CreatedBy      *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
