package service

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/deskops/helpdesk-engine/internal/config"
	"github.com/deskops/helpdesk-engine/internal/domain"
	"github.com/deskops/helpdesk-engine/internal/events"
	"github.com/deskops/helpdesk-engine/internal/notify"
)

//go:embed templates/*.html
var templatesFS embed.FS

var ticketTemplates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// RecipientResolver picks who hears about a ticket event.
type RecipientResolver interface {
	Escalation(ctx context.Context, t domain.Ticket) []string
	Warning(ctx context.Context, t domain.Ticket) []string
	Staff(ctx context.Context, id string) []string
}

// NotificationService turns SLA events into messages on the configured sink.
type NotificationService struct {
	dispatcher events.Dispatcher
	sink       notify.Sink
	recipients RecipientResolver
	logger     *zap.Logger
	cfg        config.NotificationConfig
	now        func() time.Time
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, sink notify.Sink, recipients RecipientResolver, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		sink:       sink,
		recipients: recipients,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSLABreached, n.handleSLABreached)
	n.dispatcher.Subscribe(events.EventSLAWarning, n.handleSLAWarning)
	n.dispatcher.Subscribe(events.EventTicketAutoAssigned, n.handleTicketAutoAssigned)
}

type ticketEmail struct {
	TicketKey      string
	Title          string
	Priority       string
	Status         domain.TicketStatus
	Kind           string
	KindLower      string
	DueAt          string
	HoursOverdue   float64
	HoursRemaining float64
	Percentage     float64
	Link           string
}

func (n *NotificationService) baseEmail(t domain.Ticket) ticketEmail {
	key := t.ExternalKey
	if key == "" {
		key = t.ID
	}
	return ticketEmail{
		TicketKey: key,
		Title:     t.Title,
		Priority:  strings.ToUpper(string(t.Priority)),
		Status:    t.Status,
		Link:      strings.TrimRight(n.cfg.FrontendURL, "/") + "/tickets/" + key,
	}
}

func (n *NotificationService) handleSLABreached(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SLABreachedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	data := n.baseEmail(payload.Ticket)
	data.Kind = payload.Kind.Label()
	data.KindLower = string(payload.Kind)
	data.DueAt = payload.DueAt.UTC().Format(time.RFC1123)
	data.HoursOverdue = n.now().Sub(payload.DueAt).Hours()

	subject := fmt.Sprintf("SLA BREACH: Ticket #%s - %s Time Exceeded", data.TicketKey, data.Kind)
	return n.send(ctx, event, n.recipients.Escalation(ctx, payload.Ticket), subject, "sla_breached.html", data)
}

func (n *NotificationService) handleSLAWarning(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SLAWarningPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	data := n.baseEmail(payload.Ticket)
	data.Kind = payload.Kind.Label()
	data.KindLower = string(payload.Kind)
	data.DueAt = payload.DueAt.UTC().Format(time.RFC1123)
	data.HoursRemaining = payload.TimeRemaining.Hours()
	data.Percentage = payload.PercentageElapsed

	subject := fmt.Sprintf("SLA Warning: Ticket #%s - %s Deadline Approaching", data.TicketKey, data.Kind)
	return n.send(ctx, event, n.recipients.Warning(ctx, payload.Ticket), subject, "sla_warning.html", data)
}

func (n *NotificationService) handleTicketAutoAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAutoAssignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	data := n.baseEmail(payload.Ticket)
	subject := fmt.Sprintf("Ticket #%s Auto-Assigned - SLA Overdue", data.TicketKey)
	return n.send(ctx, event, n.recipients.Staff(ctx, payload.AssigneeStaffID), subject, "ticket_auto_assigned.html", data)
}

func (n *NotificationService) send(ctx context.Context, event events.Event, to []string, subject, tmpl string, data ticketEmail) error {
	if len(to) == 0 {
		n.logger.Debug("no recipients for notification",
			zap.String("ticket_id", event.TicketID),
			zap.String("event_type", string(event.Type)))
		return nil
	}

	var body bytes.Buffer
	if err := ticketTemplates.ExecuteTemplate(&body, tmpl, data); err != nil {
		return fmt.Errorf("render %s: %w", tmpl, err)
	}

	if err := n.sink.Deliver(ctx, notify.Message{
		Recipients: to,
		Subject:    subject,
		Body:       body.String(),
		TicketID:   event.TicketID,
	}); err != nil {
		return fmt.Errorf("deliver %s for ticket %s: %w", event.Type, event.TicketID, err)
	}

	n.logger.Info("notification sent",
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)),
		zap.Int("recipients", len(to)))
	return nil
}
