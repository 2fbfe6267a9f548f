// Package delivery defines the outbound message delivery collaborator.
// Platform-specific HTTP calls are out of scope; the dispatcher consumes
// this interface and a real implementation is injected per deployment.
package delivery

import (
	"context"

	"go.uber.org/zap"

	"github.com/capitalize-ai/inbox-platform/internal/model"
	"github.com/capitalize-ai/inbox-platform/pkg/logger"
)

// Sender delivers a reply to a customer on a channel.
type Sender interface {
	SendMessage(ctx context.Context, channel model.Channel, recipientID, content string) (deliveryID string, err error)
}

// LogSender logs deliveries instead of sending them. Used in local runs and
// as a safe default when no channel credentials are configured.
type LogSender struct {
	logger *logger.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{logger: log}
}

// SendMessage logs the delivery and reports success.
func (s *LogSender) SendMessage(ctx context.Context, channel model.Channel, recipientID, content string) (string, error) {
	s.logger.Info("outbound message (log sender)",
		zap.String("channel", string(channel)),
		zap.String("recipient_id", recipientID),
		zap.Int("content_length", len(content)),
	)
	return "log-delivery", nil
}
