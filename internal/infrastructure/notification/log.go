package notification

import (
	"context"
	"log/slog"

	"github.com/sagenius/agency-crm/internal/domain/notification"
)

// LogChannel writes messages to the structured log. It backs counsellor
// reminders in development and any channel that is not configured.
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel creates the channel.
func NewLogChannel(logger *slog.Logger) *LogChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogChannel{logger: logger.With("channel", "log")}
}

// Type implements notification.Channel.
func (c *LogChannel) Type() notification.ChannelType {
	return notification.ChannelTypeLog
}

// Send implements notification.Channel.
func (c *LogChannel) Send(_ context.Context, msg *notification.Message) notification.DeliveryResult {
	attrs := []any{
		"message_id", msg.ID,
		"agency_id", msg.AgencyID.String(),
		"type", string(msg.Type),
		"requested_channel", string(msg.Channel),
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	}
	for k, v := range msg.Metadata {
		attrs = append(attrs, k, v)
	}
	c.logger.Info("notification", attrs...)
	return notification.Delivered(notification.ChannelTypeLog, msg.ID)
}
