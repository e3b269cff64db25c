package dto

import (
	"time"

	"github.com/deskops/helpdesk-engine/internal/compliance"
	"github.com/deskops/helpdesk-engine/internal/report"
	"github.com/deskops/helpdesk-engine/internal/schedule"
)

// ScanResponse reports a manually triggered compliance pass.
type ScanResponse struct {
	compliance.ScanResult
	DurationMS int64 `json:"duration_ms"`
}

// NewScanResponse wraps a scan result.
func NewScanResponse(res compliance.ScanResult, took time.Duration) ScanResponse {
	return ScanResponse{ScanResult: res, DurationMS: took.Milliseconds()}
}

// ScheduleEntry is one row of the automation schedule.
type ScheduleEntry struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	NextRunAt time.Time  `json:"next_run_at"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	Running   bool       `json:"running"`
}

// ScheduleEntries converts scheduler entries for the response.
func ScheduleEntries(entries []schedule.Entry) []ScheduleEntry {
	out := make([]ScheduleEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, ScheduleEntry{
			ID:        e.ID,
			Name:      e.Name,
			Type:      string(e.Type),
			NextRunAt: e.NextRunAt.UTC(),
			LastRunAt: e.LastRunAt,
			Running:   e.Running,
		})
	}
	return out
}

// AutomationRunResponse reports a manual automation run.
type AutomationRunResponse struct {
	AutomationID string   `json:"automation_id"`
	Sent         bool     `json:"sent"`
	Recipients   []string `json:"recipients"`
	Tickets      int      `json:"tickets"`
	Message      string   `json:"message,omitempty"`
}

// NewAutomationRunResponse wraps a runner result.
func NewAutomationRunResponse(id string, res report.ExecutionResult) AutomationRunResponse {
	recipients := res.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	return AutomationRunResponse{
		AutomationID: id,
		Sent:         res.Sent,
		Recipients:   recipients,
		Tickets:      res.Tickets,
		Message:      res.Message,
	}
}
