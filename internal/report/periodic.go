package report

import (
	"context"
	"fmt"

	"github.com/deskops/helpdesk-engine/internal/domain"
	"github.com/deskops/helpdesk-engine/internal/sla"
)

// DailyData feeds daily_report.html.
type DailyData struct {
	Date              string
	TotalCreated      int
	TotalOpen         int
	TotalResolved     int
	SLABreached       int
	DepartmentSummary []Count
}

// DailyGenerator summarizes tickets created today.
type DailyGenerator struct{ base }

func (g *DailyGenerator) Generate(ctx context.Context, req Request) (*Report, error) {
	loc := req.Automation.Schedule.Location()
	start, end := dayBounds(req.Now, loc)
	tickets, err := g.createdIn(ctx, req.Automation, start, end)
	if err != nil {
		return nil, err
	}

	data := DailyData{
		Date:              start.Format("January 02, 2006"),
		TotalCreated:      len(tickets),
		DepartmentSummary: countByDepartment(ctx, newNameCache(g.names), tickets),
	}
	for _, t := range tickets {
		if t.Status.IsActive() {
			data.TotalOpen++
		}
		if t.Status == domain.TicketStatusResolved {
			data.TotalResolved++
		}
		if sla.Evaluate(t.CreatedAt, t.Resolution.DueAt, t.Status, req.Now).IsOverdue {
			data.SLABreached++
		}
	}

	html, err := render("daily_report.html", data)
	if err != nil {
		return nil, err
	}
	return &Report{Subject: "Daily Report - " + data.Date, HTML: html, Tickets: len(tickets), Data: data}, nil
}

// WeeklyData feeds weekly_report.html.
type WeeklyData struct {
	StartDate             string
	EndDate               string
	TotalCreated          int
	Resolved              int
	Unresolved            int
	SLACompliant          int
	SLABreached           int
	TechnicianPerformance []TechnicianStat
	TopIssues             []Count
}

// WeeklyGenerator summarizes the Sunday-start week containing now.
type WeeklyGenerator struct{ base }

func (g *WeeklyGenerator) Generate(ctx context.Context, req Request) (*Report, error) {
	loc := req.Automation.Schedule.Location()
	start, end := weekBounds(req.Now, loc)
	tickets, err := g.createdIn(ctx, req.Automation, start, end)
	if err != nil {
		return nil, err
	}

	last := end.AddDate(0, 0, -1)
	data := WeeklyData{
		StartDate:             start.Format("January 02, 2006"),
		EndDate:               last.Format("January 02, 2006"),
		TotalCreated:          len(tickets),
		TechnicianPerformance: technicianStats(ctx, newNameCache(g.names), tickets, resolvedOnly, 10),
		TopIssues:             countByCategory(tickets, 0, 10),
	}
	for _, t := range tickets {
		if t.Status == domain.TicketStatusResolved {
			data.Resolved++
		}
		if t.Resolution.DueAt == nil {
			continue
		}
		if sla.Evaluate(t.CreatedAt, t.Resolution.DueAt, t.Status, req.Now).IsOverdue {
			data.SLABreached++
		} else {
			data.SLACompliant++
		}
	}
	data.Unresolved = data.TotalCreated - data.Resolved

	html, err := render("weekly_report.html", data)
	if err != nil {
		return nil, err
	}
	subject := fmt.Sprintf("Weekly Report - %s to %s", start.Format("Jan 02"), last.Format("Jan 02, 2006"))
	return &Report{Subject: subject, HTML: html, Tickets: len(tickets), Data: data}, nil
}

// MonthlyData feeds monthly_report.html.
type MonthlyData struct {
	Month                  string
	TotalCreated           int
	DepartmentTrends       []Count
	SLAViolations          int
	SLAComplianceRate      float64
	TechnicianProductivity []TechnicianStat
	RecurringIssues        []Count
}

// recurringThreshold is the minimum count for a category to be called recurring.
const recurringThreshold = 5

// MonthlyGenerator summarizes the calendar month containing now.
type MonthlyGenerator struct{ base }

func (g *MonthlyGenerator) Generate(ctx context.Context, req Request) (*Report, error) {
	loc := req.Automation.Schedule.Location()
	start, end := monthBounds(req.Now, loc)
	tickets, err := g.createdIn(ctx, req.Automation, start, end)
	if err != nil {
		return nil, err
	}

	names := newNameCache(g.names)
	data := MonthlyData{
		Month:                  start.Format("January 2006"),
		TotalCreated:           len(tickets),
		DepartmentTrends:       countByDepartment(ctx, names, tickets),
		SLAComplianceRate:      100,
		TechnicianProductivity: technicianStats(ctx, names, tickets, resolvedOrClosed, 0),
		RecurringIssues:        countByCategory(tickets, recurringThreshold, 0),
	}
	for _, t := range tickets {
		if t.AnyBreached() {
			data.SLAViolations++
		}
	}
	if data.TotalCreated > 0 {
		data.SLAComplianceRate = float64(data.TotalCreated-data.SLAViolations) / float64(data.TotalCreated) * 100
	}

	html, err := render("monthly_report.html", data)
	if err != nil {
		return nil, err
	}
	return &Report{Subject: "Monthly Report - " + data.Month, HTML: html, Tickets: len(tickets), Data: data}, nil
}
