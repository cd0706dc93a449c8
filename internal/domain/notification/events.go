package notification

import (
	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// DeliveryEvent - сообщение доставлено или не доставлено.
type DeliveryEvent struct {
	shared.BaseEvent
	MessageID string
	Type      NotificationType
	Channel   ChannelType
	Error     string
}

// Payload реализует shared.Event.
func (e DeliveryEvent) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"message_id": e.MessageID,
		"type":       string(e.Type),
		"channel":    string(e.Channel),
	}
	if e.Error != "" {
		p["error"] = e.Error
	}
	return p
}

// NewDeliveryEvent создаёт notification.sent или notification.failed по результату.
func NewDeliveryEvent(msg *Message, result DeliveryResult) DeliveryEvent {
	eventType := shared.EventNotificationSent
	errText := ""
	if !result.Success {
		eventType = shared.EventNotificationFailed
		if result.Error != nil {
			errText = result.Error.Error()
		}
	}
	return DeliveryEvent{
		BaseEvent: shared.NewBaseEvent(eventType, msg.AgencyID.String(), msg.ID),
		MessageID: msg.ID,
		Type:      msg.Type,
		Channel:   result.Channel,
		Error:     errText,
	}
}
