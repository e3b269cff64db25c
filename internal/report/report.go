// Package report builds the periodic ticket reports sent by automations.
package report

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/deskops/helpdesk-engine/internal/domain"
	"github.com/deskops/helpdesk-engine/internal/repository"
)

// ErrUnknownType is returned for automation types without a generator.
var ErrUnknownType = errors.New("report: unknown automation type")

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"upper": strings.ToUpper,
	"pct":   func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"hours": func(v float64) string { return fmt.Sprintf("%.1f", v) },
}).ParseFS(templatesFS, "templates/*.html"))

// Request is one generation of a report.
type Request struct {
	Automation domain.Automation
	Now        time.Time
}

// Report is a rendered report ready for delivery.
type Report struct {
	Subject string
	HTML    string
	Tickets int
	Data    any
}

// Generator builds the report for one automation type.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Report, error)
}

// TicketSource lists tickets for a period.
type TicketSource interface {
	ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error)
}

// NameSource labels staff and departments in reports.
type NameSource interface {
	GetStaff(ctx context.Context, id string) (*domain.StaffMember, error)
	GetDepartment(ctx context.Context, id string) (*domain.Department, error)
}

// Generators returns the generator for every automation type.
func Generators(tickets TicketSource, names NameSource, frontendURL string, pageSize int) map[domain.AutomationType]Generator {
	b := base{tickets: tickets, names: names, frontendURL: strings.TrimRight(frontendURL, "/"), pageSize: pageSize}
	return map[domain.AutomationType]Generator{
		domain.AutomationDailyOpenTickets: &OpenTicketsGenerator{b},
		domain.AutomationDailyReport:      &DailyGenerator{b},
		domain.AutomationWeeklyReport:     &WeeklyGenerator{b},
		domain.AutomationMonthlyReport:    &MonthlyGenerator{b},
	}
}

type base struct {
	tickets     TicketSource
	names       NameSource
	frontendURL string
	pageSize    int
}

func (b base) list(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := repository.CollectTickets(ctx, b.tickets, filter, b.pageSize)
	if err != nil {
		return nil, fmt.Errorf("report tickets: %w", err)
	}
	return tickets, nil
}

// createdIn lists every ticket of the automation's scope created in [from, to).
func (b base) createdIn(ctx context.Context, a domain.Automation, from, to time.Time) ([]domain.Ticket, error) {
	return b.list(ctx, repository.TicketFilter{
		OrganizationID: a.OrganizationID,
		CreatedFrom:    &from,
		CreatedBefore:  &to,
	})
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// nameCache memoizes lookups within one generation.
type nameCache struct {
	src   NameSource
	staff map[string]string
	depts map[string]string
}

func newNameCache(src NameSource) *nameCache {
	return &nameCache{src: src, staff: map[string]string{}, depts: map[string]string{}}
}

func (c *nameCache) staffName(ctx context.Context, id *string) string {
	if id == nil {
		return "Unassigned"
	}
	if n, ok := c.staff[*id]; ok {
		return n
	}
	name := "Unknown"
	if c.src != nil {
		if s, err := c.src.GetStaff(ctx, *id); err == nil {
			name = s.Name
		} else if !errors.Is(err, pgx.ErrNoRows) {
			name = *id
		}
	}
	c.staff[*id] = name
	return name
}

func (c *nameCache) departmentName(ctx context.Context, id *string) string {
	if id == nil {
		return "No Department"
	}
	if n, ok := c.depts[*id]; ok {
		return n
	}
	name := "Unknown"
	if c.src != nil {
		if d, err := c.src.GetDepartment(ctx, *id); err == nil {
			name = d.Name
		} else if !errors.Is(err, pgx.ErrNoRows) {
			name = *id
		}
	}
	c.depts[*id] = name
	return name
}
