package channel

import (
	"encoding/json"
	"time"

	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
)

// Web chat is the platform's own widget; its payload carries one message.

type webChatPayload struct {
	BusinessID  string              `json:"business_id"`
	CustomerID  string              `json:"customer_id"`
	MessageID   string              `json:"message_id"`
	Content     string              `json:"content"`
	Attachments []webChatAttachment `json:"attachments"`
	Timestamp   string              `json:"timestamp"`
}

type webChatAttachment struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type webChatNormalizer struct {
	logger *logger.Logger
}

// NewWebChat creates a normalizer for the web chat widget.
func NewWebChat(log *logger.Logger) Normalizer {
	return &webChatNormalizer{logger: log}
}

func (n *webChatNormalizer) Channel() model.Channel {
	return model.ChannelWebChat
}

func (n *webChatNormalizer) Normalize(businessID string, payload []byte) ([]model.InboundEvent, error) {
	var body webChatPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, ErrMalformedPayload
	}

	if body.CustomerID == "" {
		dropEvent(n.logger, model.ChannelWebChat, "missing_sender")
		return nil, nil
	}
	if body.Content == "" && len(body.Attachments) == 0 {
		dropEvent(n.logger, model.ChannelWebChat, "missing_body")
		return nil, nil
	}

	owner := businessID
	if body.BusinessID != "" {
		owner = body.BusinessID
	}

	ts := time.Now()
	if body.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, body.Timestamp); err == nil {
			ts = parsed
		}
	}

	event := model.InboundEvent{
		BusinessID:        owner,
		CustomerID:        body.CustomerID,
		Channel:           model.ChannelWebChat,
		ProviderMessageID: body.MessageID,
		Content:           body.Content,
		MessageType:       model.MessageTypeText,
		Timestamp:         ts,
	}
	for _, att := range body.Attachments {
		event.Attachments = append(event.Attachments, model.Attachment{
			Type: model.AttachmentType(att.Type),
			URL:  att.URL,
		})
	}
	if event.Content == "" && len(event.Attachments) > 0 {
		event.MessageType = model.MessageTypeMedia
	}

	return []model.InboundEvent{event}, nil
}
