package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/inbox-platform/internal/model"
)

func TestKeywordDetectorMatches(t *testing.T) {
	d := DefaultKeywordDetector()

	tests := []struct {
		text         string
		wantCategory model.TicketCategory
		wantPriority model.TicketPriority
	}{
		{"I want a REFUND for this", model.CategoryRefund, model.TicketPriorityHigh},
		{"you overcharged me on the invoice", model.CategoryBilling, model.TicketPriorityHigh},
		{"the item arrived broken", model.CategoryProductIssue, model.TicketPriorityHigh},
		{"where is my order??", model.CategoryShipping, model.TicketPriorityNormal},
		{"I keep getting an error at checkout", model.CategoryTechnical, model.TicketPriorityNormal},
	}

	for _, tt := range tests {
		trigger, ok := d.Detect(tt.text)
		require.True(t, ok, tt.text)
		assert.Equal(t, tt.wantCategory, trigger.Category, tt.text)
		assert.Equal(t, tt.wantPriority, trigger.Priority, tt.text)
	}
}

func TestKeywordDetectorUrgencyWinsFirst(t *testing.T) {
	d := DefaultKeywordDetector()

	trigger, ok := d.Detect("I need a refund URGENT please")
	require.True(t, ok)
	assert.Equal(t, model.TicketPriorityUrgent, trigger.Priority)
}

func TestKeywordDetectorNoMatch(t *testing.T) {
	d := DefaultKeywordDetector()

	_, ok := d.Detect("thanks, that answered my question")
	assert.False(t, ok)
}

func TestKeywordDetectorCustomRules(t *testing.T) {
	d := NewKeywordDetector([]TriggerRule{
		{Keywords: []string{"warranty"}, Category: model.CategoryProductIssue, Priority: model.TicketPriorityNormal},
	})

	trigger, ok := d.Detect("is this covered by warranty?")
	require.True(t, ok)
	assert.Equal(t, "warranty", trigger.Keyword)

	_, ok = d.Detect("I want a refund")
	assert.False(t, ok)
}
