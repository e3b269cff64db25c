package report

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/deskops/helpdesk-engine/internal/domain"
	"github.com/deskops/helpdesk-engine/internal/repository"
)

// OpenTicketRow is one line of the open tickets list.
type OpenTicketRow struct {
	Key          string
	Title        string
	Priority     domain.TicketPriority
	Department   string
	Assignee     string
	DueAt        string
	HoursElapsed int
	Overdue      bool
	Link         string
}

// OpenTicketsData feeds open_tickets.html.
type OpenTicketsData struct {
	Date    string
	Total   int
	Tickets []OpenTicketRow
}

// OpenTicketsGenerator lists every active ticket, newest first.
type OpenTicketsGenerator struct{ base }

func (g *OpenTicketsGenerator) Generate(ctx context.Context, req Request) (*Report, error) {
	tickets, err := g.list(ctx, repository.TicketFilter{
		OrganizationID: req.Automation.OrganizationID,
		Statuses:       domain.ActiveStatuses,
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tickets, func(i, j int) bool { return tickets[i].CreatedAt.After(tickets[j].CreatedAt) })

	loc := req.Automation.Schedule.Location()
	names := newNameCache(g.names)
	data := OpenTicketsData{
		Date:    req.Now.In(loc).Format("January 02, 2006"),
		Total:   len(tickets),
		Tickets: make([]OpenTicketRow, 0, len(tickets)),
	}
	for _, t := range tickets {
		data.Tickets = append(data.Tickets, g.row(ctx, names, t, req.Now, loc))
	}

	html, err := render("open_tickets.html", data)
	if err != nil {
		return nil, err
	}
	subject := "Daily Open Tickets Report"
	if len(tickets) == 0 {
		subject += " - No Open Tickets"
	}
	return &Report{Subject: subject, HTML: html, Tickets: len(tickets), Data: data}, nil
}

func (g *OpenTicketsGenerator) row(ctx context.Context, names *nameCache, t domain.Ticket, now time.Time, loc *time.Location) OpenTicketRow {
	key := t.ExternalKey
	if key == "" {
		key = t.ID
	}
	row := OpenTicketRow{
		Key:          key,
		Title:        t.Title,
		Priority:     t.Priority,
		Department:   names.departmentName(ctx, t.DepartmentID),
		Assignee:     names.staffName(ctx, t.AssigneeID),
		DueAt:        "N/A",
		HoursElapsed: int(math.Floor(now.Sub(t.CreatedAt).Hours())),
		Link:         g.frontendURL + "/tickets/" + key,
	}
	if due := t.Resolution.DueAt; due != nil {
		row.DueAt = due.In(loc).Format("Jan 02, 2006 15:04")
		row.Overdue = due.Before(now)
	}
	return row
}
