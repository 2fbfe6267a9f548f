package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
)

func TestWhatsAppNormalizeTextMessage(t *testing.T) {
	n := NewWhatsApp(logger.NewNop())

	payload := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "waba-9",
			"changes": [{
				"field": "messages",
				"value": {
					"messages": [{
						"from": "15551234567",
						"id": "wamid.xyz",
						"timestamp": "1717243800",
						"type": "text",
						"text": {"body": "do you deliver on weekends?"}
					}]
				}
			}]
		}]
	}`)

	events, err := n.Normalize("", payload)
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, model.ChannelWhatsApp, event.Channel)
	assert.Equal(t, "waba-9", event.BusinessID)
	assert.Equal(t, "15551234567", event.CustomerID)
	assert.Equal(t, "wamid.xyz", event.ProviderMessageID)
	assert.Equal(t, "do you deliver on weekends?", event.Content)
	assert.Equal(t, time.Unix(1717243800, 0), event.Timestamp)
}

func TestWhatsAppNormalizeDropsStatusUpdates(t *testing.T) {
	n := NewWhatsApp(logger.NewNop())

	payload := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "waba-9",
			"changes": [{
				"field": "messages",
				"value": {"statuses": [{"id": "wamid.xyz", "status": "delivered"}]}
			}]
		}]
	}`)

	events, err := n.Normalize("", payload)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestWhatsAppNormalizeImage(t *testing.T) {
	n := NewWhatsApp(logger.NewNop())

	payload := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "waba-9",
			"changes": [{
				"field": "messages",
				"value": {
					"messages": [{
						"from": "15551234567",
						"id": "wamid.img",
						"type": "image",
						"image": {"link": "https://cdn.example.com/y.jpg", "caption": "it arrived like this"}
					}]
				}
			}]
		}]
	}`)

	events, err := n.Normalize("", payload)
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, model.MessageTypeMedia, event.MessageType)
	assert.Equal(t, "it arrived like this", event.Content)
	require.Len(t, event.Attachments, 1)
	assert.Equal(t, "https://cdn.example.com/y.jpg", event.Attachments[0].URL)
}

func TestWhatsAppNormalizeMalformed(t *testing.T) {
	n := NewWhatsApp(logger.NewNop())

	_, err := n.Normalize("", []byte(`{`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
