package channel

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
)

// WhatsApp Cloud API webhook shapes.

type waPayload struct {
	Object string    `json:"object"`
	Entry  []waEntry `json:"entry"`
}

type waEntry struct {
	ID      string     `json:"id"`
	Changes []waChange `json:"changes"`
}

type waChange struct {
	Field string  `json:"field"`
	Value waValue `json:"value"`
}

type waValue struct {
	Messages []waMessage       `json:"messages"`
	Statuses []json.RawMessage `json:"statuses"`
}

type waMessage struct {
	From      string   `json:"from"`
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Type      string   `json:"type"`
	Text      *waText  `json:"text"`
	Image     *waMedia `json:"image"`
	Sticker   *waMedia `json:"sticker"`
}

type waText struct {
	Body string `json:"body"`
}

type waMedia struct {
	Link     string `json:"link"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
}

type whatsappNormalizer struct {
	logger *logger.Logger
}

// NewWhatsApp creates a normalizer for WhatsApp Cloud API webhooks.
func NewWhatsApp(log *logger.Logger) Normalizer {
	return &whatsappNormalizer{logger: log}
}

func (n *whatsappNormalizer) Channel() model.Channel {
	return model.ChannelWhatsApp
}

// Normalize converts a WhatsApp delivery into inbound events. Status
// updates (sent/delivered/read) carry no messages and produce no events.
func (n *whatsappNormalizer) Normalize(businessID string, payload []byte) ([]model.InboundEvent, error) {
	var body waPayload
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
		for _, change := range entry.Changes {
			if len(change.Value.Messages) == 0 && len(change.Value.Statuses) > 0 {
				dropEvent(n.logger, model.ChannelWhatsApp, "receipt")
				continue
			}
			for _, msg := range change.Value.Messages {
				if msg.From == "" {
					dropEvent(n.logger, model.ChannelWhatsApp, "missing_sender")
					continue
				}

				event := model.InboundEvent{
					BusinessID:        owner,
					CustomerID:        msg.From,
					Channel:           model.ChannelWhatsApp,
					ProviderMessageID: msg.ID,
					MessageType:       model.MessageTypeText,
					Timestamp:         waTimestamp(msg.Timestamp),
				}

				switch {
				case msg.Text != nil && msg.Text.Body != "":
					event.Content = msg.Text.Body
				case msg.Image != nil:
					event.Content = msg.Image.Caption
					event.MessageType = model.MessageTypeMedia
					event.Attachments = append(event.Attachments, model.Attachment{
						Type: model.AttachmentImage,
						URL:  msg.Image.Link,
					})
				case msg.Sticker != nil:
					event.MessageType = model.MessageTypeSticker
					event.Attachments = append(event.Attachments, model.Attachment{
						Type: model.AttachmentImage,
						URL:  msg.Sticker.Link,
					})
				default:
					dropEvent(n.logger, model.ChannelWhatsApp, "missing_body")
					continue
				}

				events = append(events, event)
			}
		}
	}
	return events, nil
}

// waTimestamp parses WhatsApp's unix-seconds timestamp string.
func waTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Now()
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(sec, 0)
}
