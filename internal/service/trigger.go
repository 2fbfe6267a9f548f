package service

import (
	"strings"

	"github.com/capitalize-ai/inbox-platform/internal/model"
)

// Trigger is a detected ticket trigger in customer text.
type Trigger struct {
	Category model.TicketCategory
	Priority model.TicketPriority
	Keyword  string
}

// TriggerDetector decides whether customer text warrants a ticket. The
// dispatcher consults it before invoking the AI collaborator, so the
// trigger list is data, not control flow.
type TriggerDetector interface {
	Detect(text string) (Trigger, bool)
}

// TriggerRule maps a keyword set to the ticket category and priority it
// should open.
type TriggerRule struct {
	Keywords []string
	Category model.TicketCategory
	Priority model.TicketPriority
}

// KeywordDetector matches case-insensitive keywords in order; the first
// matching rule wins so detection is deterministic.
type KeywordDetector struct {
	rules []TriggerRule
}

// NewKeywordDetector creates a detector with the given rules.
func NewKeywordDetector(rules []TriggerRule) *KeywordDetector {
	return &KeywordDetector{rules: rules}
}

// DefaultKeywordDetector returns the stock trigger ruleset. Urgency words
// are checked first so an urgent refund request escalates priority rather
// than falling through to the refund default.
func DefaultKeywordDetector() *KeywordDetector {
	return NewKeywordDetector([]TriggerRule{
		{Keywords: []string{"urgent", "emergency", "asap", "immediately"}, Category: model.CategoryGeneral, Priority: model.TicketPriorityUrgent},
		{Keywords: []string{"refund", "money back", "charged twice"}, Category: model.CategoryRefund, Priority: model.TicketPriorityHigh},
		{Keywords: []string{"overcharged", "billing", "invoice", "wrong charge"}, Category: model.CategoryBilling, Priority: model.TicketPriorityHigh},
		{Keywords: []string{"return", "exchange", "send back"}, Category: model.CategoryReturn, Priority: model.TicketPriorityNormal},
		{Keywords: []string{"broken", "defective", "damaged", "not working", "doesn't work"}, Category: model.CategoryProductIssue, Priority: model.TicketPriorityHigh},
		{Keywords: []string{"where is my order", "tracking", "shipping", "delivery", "not arrived"}, Category: model.CategoryShipping, Priority: model.TicketPriorityNormal},
		{Keywords: []string{"error", "bug", "crash", "can't log in", "cannot log in"}, Category: model.CategoryTechnical, Priority: model.TicketPriorityNormal},
	})
}

// Detect scans the text against the rule list.
func (d *KeywordDetector) Detect(text string) (Trigger, bool) {
	lowered := strings.ToLower(text)
	for _, rule := range d.rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(lowered, keyword) {
				return Trigger{
					Category: rule.Category,
					Priority: rule.Priority,
					Keyword:  keyword,
				}, true
			}
		}
	}
	return Trigger{}, false
}
