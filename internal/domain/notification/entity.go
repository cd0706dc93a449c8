package notification

import (
	"strings"
	"time"

	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// NotificationType определяет, по какому поводу отправлено сообщение.
type NotificationType string

const (
	// TypeTaskDueSoon - напоминание консультанту о задаче.
	TypeTaskDueSoon NotificationType = "task_due_soon"

	// TypeVisaGranted - поздравление студента с визой.
	TypeVisaGranted NotificationType = "visa_granted"

	// TypeStatusUpdate - сообщение студенту о ходе заявки.
	TypeStatusUpdate NotificationType = "status_update"

	// TypeDocumentRequest - просьба загрузить документы.
	TypeDocumentRequest NotificationType = "document_request"
)

// IsValid проверяет корректность типа уведомления.
func (t NotificationType) IsValid() bool {
	switch t {
	case TypeTaskDueSoon, TypeVisaGranted, TypeStatusUpdate, TypeDocumentRequest:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE
// ══════════════════════════════════════════════════════════════════════════════

// Message - готовое к отправке сообщение.
type Message struct {
	// ID - уникальный идентификатор.
	ID string

	// AgencyID - агентство-отправитель.
	AgencyID shared.AgencyID

	Type    NotificationType
	Channel ChannelType

	// To - email или номер телефона, в зависимости от канала.
	To string

	// ToName - имя получателя.
	ToName string

	Subject string
	Body    string

	// Metadata - произвольные данные для логов (student_id, task_id...).
	Metadata map[string]string

	CreatedAt time.Time
}

// NewMessageParams содержит параметры для создания сообщения.
type NewMessageParams struct {
	AgencyID shared.AgencyID
	Type     NotificationType
	Channel  ChannelType
	To       string
	ToName   string
	Subject  string
	Body     string
	Metadata map[string]string
}

// NewMessage создаёт сообщение с валидацией.
func NewMessage(params NewMessageParams) (*Message, error) {
	if !params.Channel.IsValid() {
		return nil, shared.ErrInvalidChannel
	}
	to := strings.TrimSpace(params.To)
	if to == "" && params.Channel.NeedsRecipient() {
		return nil, shared.ErrNoRecipient
	}
	if strings.TrimSpace(params.Body) == "" {
		return nil, shared.NewDomainError("notification", "Validate", shared.ErrEmptyValue, "message body is required")
	}

	meta := params.Metadata
	if meta == nil {
		meta = make(map[string]string)
	}

	return &Message{
		ID:        shared.NewID(),
		AgencyID:  params.AgencyID,
		Type:      params.Type,
		Channel:   params.Channel,
		To:        to,
		ToName:    params.ToName,
		Subject:   params.Subject,
		Body:      params.Body,
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	}, nil
}
