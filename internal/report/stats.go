package report

import (
	"context"
	"sort"

	"github.com/deskops/helpdesk-engine/internal/domain"
)

// Count is a labelled tally.
type Count struct {
	Name  string
	Count int
}

// TechnicianStat summarizes one assignee's tickets in a period.
type TechnicianStat struct {
	Name               string
	Total              int
	Resolved           int
	ResolutionRate     float64
	AvgResolutionHours float64
}

func countByDepartment(ctx context.Context, names *nameCache, tickets []domain.Ticket) []Count {
	counts := map[string]int{}
	for _, t := range tickets {
		counts[names.departmentName(ctx, t.DepartmentID)]++
	}
	return sortedCounts(counts, 0, 0)
}

func countByCategory(tickets []domain.Ticket, minCount, limit int) []Count {
	counts := map[string]int{}
	for _, t := range tickets {
		category := t.Category
		if category == "" {
			category = "uncategorized"
		}
		counts[category]++
	}
	return sortedCounts(counts, minCount, limit)
}

// sortedCounts orders by count descending then name. limit 0 keeps all.
func sortedCounts(counts map[string]int, minCount, limit int) []Count {
	out := make([]Count, 0, len(counts))
	for name, n := range counts {
		if n < minCount {
			continue
		}
		out = append(out, Count{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// technicianStats groups assigned tickets by assignee. isResolved decides
// which statuses count as done; resolution time is closed (or last update)
// minus creation.
func technicianStats(ctx context.Context, names *nameCache, tickets []domain.Ticket, isResolved func(domain.TicketStatus) bool, limit int) []TechnicianStat {
	type acc struct {
		total, resolved int
		hours           float64
	}
	byAssignee := map[string]*acc{}
	var order []string
	for _, t := range tickets {
		if t.AssigneeID == nil {
			continue
		}
		a, ok := byAssignee[*t.AssigneeID]
		if !ok {
			a = &acc{}
			byAssignee[*t.AssigneeID] = a
			order = append(order, *t.AssigneeID)
		}
		a.total++
		if isResolved(t.Status) {
			a.resolved++
			end := t.UpdatedAt
			if t.ClosedAt != nil {
				end = *t.ClosedAt
			}
			a.hours += end.Sub(t.CreatedAt).Hours()
		}
	}

	out := make([]TechnicianStat, 0, len(order))
	for _, id := range order {
		id := id
		a := byAssignee[id]
		stat := TechnicianStat{
			Name:           names.staffName(ctx, &id),
			Total:          a.total,
			Resolved:       a.resolved,
			ResolutionRate: float64(a.resolved) / float64(a.total) * 100,
		}
		if a.resolved > 0 {
			stat.AvgResolutionHours = a.hours / float64(a.resolved)
		}
		out = append(out, stat)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Resolved != out[j].Resolved {
			return out[i].Resolved > out[j].Resolved
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func resolvedOnly(s domain.TicketStatus) bool {
	return s == domain.TicketStatusResolved
}

func resolvedOrClosed(s domain.TicketStatus) bool {
	return s == domain.TicketStatusResolved || s == domain.TicketStatusClosed
}
