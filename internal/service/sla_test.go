package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/inbox-platform/internal/model"
)

func TestSLAWindowMatrix(t *testing.T) {
	tests := []struct {
		category model.TicketCategory
		priority model.TicketPriority
		want     time.Duration
	}{
		{model.CategoryRefund, model.TicketPriorityUrgent, 2 * time.Hour},
		{model.CategoryRefund, model.TicketPriorityNormal, 24 * time.Hour},
		{model.CategoryTechnical, model.TicketPriorityUrgent, 2 * time.Hour},
		{model.CategoryTechnical, model.TicketPriorityNormal, 72 * time.Hour},
		{model.CategoryBilling, model.TicketPriorityUrgent, 1 * time.Hour},
		{model.CategoryGeneral, model.TicketPriorityLow, 96 * time.Hour},
	}

	for _, tt := range tests {
		window, ok := SLAWindow(tt.category, tt.priority)
		require.True(t, ok, "%s/%s", tt.category, tt.priority)
		assert.Equal(t, tt.want, window, "%s/%s", tt.category, tt.priority)
	}
}

func TestSLAWindowCoversAllPairs(t *testing.T) {
	categories := []model.TicketCategory{
		model.CategoryRefund, model.CategoryReturn, model.CategoryTechnical,
		model.CategoryShipping, model.CategoryBilling, model.CategoryProductIssue,
		model.CategoryGeneral,
	}
	priorities := []model.TicketPriority{
		model.TicketPriorityUrgent, model.TicketPriorityHigh,
		model.TicketPriorityNormal, model.TicketPriorityLow,
	}

	for _, c := range categories {
		for _, p := range priorities {
			_, ok := SLAWindow(c, p)
			assert.True(t, ok, "%s/%s missing", c, p)
		}
	}

	_, ok := SLAWindow("unknown", model.TicketPriorityNormal)
	assert.False(t, ok)
}

func TestSLAStatusAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		deadline time.Time
		status   model.TicketStatus
		want     model.SLAStatus
	}{
		{"far out", now.Add(48 * time.Hour), model.TicketOpen, model.SLAOnTime},
		{"within a day", now.Add(10 * time.Hour), model.TicketOpen, model.SLASoon},
		{"within two hours", now.Add(30 * time.Minute), model.TicketInProgress, model.SLAUrgent},
		{"past deadline", now.Add(-time.Minute), model.TicketOpen, model.SLAOverdue},
		{"escalated past deadline", now.Add(-time.Hour), model.TicketEscalated, model.SLAOverdue},
		{"resolved past deadline", now.Add(-time.Hour), model.TicketResolved, model.SLAOnTime},
		{"closed past deadline", now.Add(-time.Hour), model.TicketClosed, model.SLAOnTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SLAStatusAt(tt.deadline, tt.status, now))
		})
	}
}

func TestSLAStatusAtIsPure(t *testing.T) {
	deadline := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Same inputs, same answer, regardless of when it is asked.
	a := SLAStatusAt(deadline, model.TicketOpen, deadline.Add(-3*time.Hour))
	b := SLAStatusAt(deadline, model.TicketOpen, deadline.Add(-3*time.Hour))
	assert.Equal(t, a, b)
	assert.Equal(t, model.SLASoon, a)
}
