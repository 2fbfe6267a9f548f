package channel

import (
	"encoding/json"
	"time"

	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
)

// Meta messenger webhook shapes, shared by Instagram and Facebook.

type metaPayload struct {
	Object string      `json:"object"`
	Entry  []metaEntry `json:"entry"`
}

type metaEntry struct {
	ID        string          `json:"id"`
	Time      int64           `json:"time"`
	Messaging []metaMessaging `json:"messaging"`
}

type metaMessaging struct {
	Sender    *metaParty   `json:"sender"`
	Recipient *metaParty   `json:"recipient"`
	Timestamp int64        `json:"timestamp"`
	Message   *metaMessage `json:"message"`
	Delivery  *json.RawMessage `json:"delivery"`
	Read      *json.RawMessage `json:"read"`
}

type metaParty struct {
	ID string `json:"id"`
}

type metaMessage struct {
	MID         string           `json:"mid"`
	Text        string           `json:"text"`
	IsEcho      bool             `json:"is_echo"`
	Attachments []metaAttachment `json:"attachments"`
}

type metaAttachment struct {
	Type    string `json:"type"`
	Payload struct {
		URL string `json:"url"`
	} `json:"payload"`
}

// metaNormalizer handles the Meta messenger webhook format for a fixed
// channel tag.
type metaNormalizer struct {
	channel model.Channel
	logger  *logger.Logger
}

// NewInstagram creates a normalizer for Instagram webhooks.
func NewInstagram(log *logger.Logger) Normalizer {
	return &metaNormalizer{channel: model.ChannelInstagram, logger: log}
}

// NewFacebook creates a normalizer for Facebook Messenger webhooks.
func NewFacebook(log *logger.Logger) Normalizer {
	return &metaNormalizer{channel: model.ChannelFacebook, logger: log}
}

func (n *metaNormalizer) Channel() model.Channel {
	return n.channel
}

// Normalize converts a Meta webhook delivery into inbound events. Echoes,
// delivery receipts, and read receipts produce no events.
func (n *metaNormalizer) Normalize(businessID string, payload []byte) ([]model.InboundEvent, error) {
	var body metaPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, ErrMalformedPayload
	}
	if len(body.Entry) == 0 {
		return nil, ErrMalformedPayload
	}

	var events []model.InboundEvent
	for _, entry := range body.Entry {
		owner := businessID
		if entry.ID != "" {
			owner = entry.ID
		}
		for _, msging := range entry.Messaging {
			if msging.Delivery != nil || msging.Read != nil {
				dropEvent(n.logger, n.channel, "receipt")
				continue
			}
			if msging.Message == nil {
				dropEvent(n.logger, n.channel, "no_message")
				continue
			}
			if msging.Message.IsEcho {
				dropEvent(n.logger, n.channel, "echo")
				continue
			}
			if msging.Sender == nil || msging.Sender.ID == "" {
				dropEvent(n.logger, n.channel, "missing_sender")
				continue
			}
			if msging.Message.Text == "" && len(msging.Message.Attachments) == 0 {
				dropEvent(n.logger, n.channel, "missing_body")
				continue
			}

			event := model.InboundEvent{
				BusinessID:        owner,
				CustomerID:        msging.Sender.ID,
				Channel:           n.channel,
				ProviderMessageID: msging.Message.MID,
				Content:           msging.Message.Text,
				MessageType:       model.MessageTypeText,
				Timestamp:         metaTimestamp(msging.Timestamp, entry.Time),
			}
			for _, att := range msging.Message.Attachments {
				event.Attachments = append(event.Attachments, model.Attachment{
					Type: model.AttachmentType(att.Type),
					URL:  att.Payload.URL,
				})
			}
			if len(event.Attachments) > 0 && event.Content == "" {
				event.MessageType = model.MessageTypeMedia
			}
			events = append(events, event)
		}
	}
	return events, nil
}

// metaTimestamp interprets Meta's millisecond timestamps, falling back to
// the entry time and finally the current time.
func metaTimestamp(messageTS, entryTS int64) time.Time {
	ts := messageTS
	if ts == 0 {
		ts = entryTS
	}
	if ts == 0 {
		return time.Now()
	}
	return time.UnixMilli(ts)
}
