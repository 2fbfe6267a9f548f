// Package channel converts provider webhook payloads into canonical
// inbound events. Each provider has its own normalizer; payloads are parsed
// once into typed shapes rather than probed field by field.
package channel

import (
	"errors"

	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
	"github.com/capitalize-ai/inbox-platform/pkg/metrics"
)

// ErrMalformedPayload signals a payload that could not be parsed at all.
// The webhook handler still answers 200 to stop redelivery storms.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// Normalizer converts one provider's webhook payload into zero or more
// canonical inbound events. Echo events, delivery receipts, and read
// receipts are dropped. Events missing a sender or body are dropped with a
// logged warning, never fatally.
type Normalizer interface {
	Channel() model.Channel
	Normalize(businessID string, payload []byte) ([]model.InboundEvent, error)
}

func dropEvent(log *logger.Logger, ch model.Channel, reason string) {
	metrics.InboundEventsDropped.WithLabelValues(string(ch), reason).Inc()
	if log != nil {
		log.Warn("dropped inbound event",
			zap.String("channel", string(ch)),
			zap.String("reason", reason),
		)
	}
}
