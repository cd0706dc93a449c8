// Package notification содержит доменную модель уведомлений агентства:
// каналы доставки (email, WhatsApp), сообщения и шаблоны.
// Способ доставки - внешний коллаборатор; здесь только контракт.
package notification

import (
	"context"
	"strings"
	"time"

	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// ChannelType - канал доставки.
type ChannelType string

const (
	ChannelTypeEmail    ChannelType = "email"
	ChannelTypeWhatsApp ChannelType = "whatsapp"
	// ChannelTypeLog пишет сообщение в журнал: разработка и напоминания
	// консультантам без настроенного получателя.
	ChannelTypeLog ChannelType = "log"
)

// ParseChannelType принимает имя канала без учёта регистра.
func ParseChannelType(s string) (ChannelType, error) {
	ct := ChannelType(strings.ToLower(strings.TrimSpace(s)))
	if !ct.IsValid() {
		return "", shared.ErrInvalidChannel
	}
	return ct, nil
}

func (ct ChannelType) IsValid() bool {
	return ct == ChannelTypeEmail || ct == ChannelTypeWhatsApp || ct == ChannelTypeLog
}

// NeedsRecipient - нужен ли адрес получателя. Лог-каналу адрес не нужен.
func (ct ChannelType) NeedsRecipient() bool {
	return ct != ChannelTypeLog
}

func (ct ChannelType) String() string { return string(ct) }

// ══════════════════════════════════════════════════════════════════════════════
// РЕЗУЛЬТАТ ДОСТАВКИ
// ══════════════════════════════════════════════════════════════════════════════

// DeliveryResult - итог одной попытки доставки. Ошибка доставки не
// возвращается как error: вызывающий решает сам, что с ней делать.
type DeliveryResult struct {
	Success bool
	Channel ChannelType

	// MessageID - идентификатор у провайдера, если он его вернул.
	MessageID   string
	DeliveredAt time.Time

	// Link - ссылка wa.me, которую открывает интерфейс консультанта.
	Link string

	Error     error
	Retryable bool
}

// Delivered - успешная доставка.
func Delivered(channel ChannelType, messageID string) DeliveryResult {
	return DeliveryResult{
		Success:     true,
		Channel:     channel,
		MessageID:   messageID,
		DeliveredAt: time.Now().UTC(),
	}
}

// Undelivered - неудачная доставка. retryable помечает временные сбои
// провайдера (таймаут, 429, 5xx).
func Undelivered(channel ChannelType, err error, retryable bool) DeliveryResult {
	if err == nil {
		err = shared.ErrNotificationFailed
	}
	return DeliveryResult{
		Channel:   channel,
		Error:     err,
		Retryable: retryable,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// КОНТРАКТЫ
// ══════════════════════════════════════════════════════════════════════════════

// Channel - один канал доставки.
type Channel interface {
	Type() ChannelType
	Send(ctx context.Context, msg *Message) DeliveryResult
}

// Sender выбирает канал по msg.Channel и отправляет сообщение.
type Sender interface {
	Send(ctx context.Context, msg *Message) DeliveryResult
}
