package service

import (
	"time"

	"github.com/capitalize-ai/inbox-platform/internal/model"
)

// slaMatrix maps category and priority to resolution hours. The deadline is
// computed once at ticket creation and never recomputed.
var slaMatrix = map[model.TicketCategory]map[model.TicketPriority]time.Duration{
	model.CategoryBilling: {
		model.TicketPriorityUrgent: 1 * time.Hour,
		model.TicketPriorityHigh:   4 * time.Hour,
		model.TicketPriorityNormal: 24 * time.Hour,
		model.TicketPriorityLow:    48 * time.Hour,
	},
	model.CategoryRefund: {
		model.TicketPriorityUrgent: 2 * time.Hour,
		model.TicketPriorityHigh:   8 * time.Hour,
		model.TicketPriorityNormal: 24 * time.Hour,
		model.TicketPriorityLow:    48 * time.Hour,
	},
	model.CategoryReturn: {
		model.TicketPriorityUrgent: 2 * time.Hour,
		model.TicketPriorityHigh:   8 * time.Hour,
		model.TicketPriorityNormal: 24 * time.Hour,
		model.TicketPriorityLow:    72 * time.Hour,
	},
	model.CategoryProductIssue: {
		model.TicketPriorityUrgent: 2 * time.Hour,
		model.TicketPriorityHigh:   8 * time.Hour,
		model.TicketPriorityNormal: 48 * time.Hour,
		model.TicketPriorityLow:    72 * time.Hour,
	},
	model.CategoryShipping: {
		model.TicketPriorityUrgent: 4 * time.Hour,
		model.TicketPriorityHigh:   12 * time.Hour,
		model.TicketPriorityNormal: 48 * time.Hour,
		model.TicketPriorityLow:    96 * time.Hour,
	},
	model.CategoryTechnical: {
		model.TicketPriorityUrgent: 2 * time.Hour,
		model.TicketPriorityHigh:   12 * time.Hour,
		model.TicketPriorityNormal: 72 * time.Hour,
		model.TicketPriorityLow:    96 * time.Hour,
	},
	model.CategoryGeneral: {
		model.TicketPriorityUrgent: 4 * time.Hour,
		model.TicketPriorityHigh:   24 * time.Hour,
		model.TicketPriorityNormal: 48 * time.Hour,
		model.TicketPriorityLow:    96 * time.Hour,
	},
}

// SLAWindow returns the resolution window for a category/priority pair.
func SLAWindow(category model.TicketCategory, priority model.TicketPriority) (time.Duration, bool) {
	byPriority, ok := slaMatrix[category]
	if !ok {
		return 0, false
	}
	window, ok := byPriority[priority]
	return window, ok
}

// SLAStatusAt derives the SLA status from the deadline, ticket status, and
// a point in time. It is a pure function: no ticket field other than
// SLADeadline and Status participates.
func SLAStatusAt(deadline time.Time, status model.TicketStatus, now time.Time) model.SLAStatus {
	if status == model.TicketResolved || status == model.TicketClosed {
		return model.SLAOnTime
	}
	remaining := deadline.Sub(now)
	switch {
	case remaining < 0:
		return model.SLAOverdue
	case remaining < 2*time.Hour:
		return model.SLAUrgent
	case remaining < 24*time.Hour:
		return model.SLASoon
	default:
		return model.SLAOnTime
	}
}

// SLAStatusOf derives the SLA status for a ticket at a point in time.
func SLAStatusOf(t *model.Ticket, now time.Time) model.SLAStatus {
	return SLAStatusAt(t.SLADeadline, t.Status, now)
}
