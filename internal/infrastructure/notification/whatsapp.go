package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sagenius/agency-crm/internal/domain/notification"
)

// ══════════════════════════════════════════════════════════════════════════════
// WHATSAPP CHANNEL
// ══════════════════════════════════════════════════════════════════════════════

// WhatsAppConfig configures the WhatsApp channel.
type WhatsAppConfig struct {
	// WebhookURL is an optional gateway endpoint. Empty means link-only
	// delivery: the result carries the wa.me link and the UI opens it.
	WebhookURL string

	// Token is sent as a bearer token to the gateway.
	Token string

	Timeout time.Duration

	// RatePerSecond and Burst bound gateway calls. Zero means 5/s with a
	// burst of 10.
	RatePerSecond float64
	Burst         int
}

// WhatsAppChannel renders wa.me links and optionally posts them to a gateway.
type WhatsAppChannel struct {
	config     WhatsAppConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewWhatsAppChannel creates the channel.
func NewWhatsAppChannel(config WhatsAppConfig, logger *slog.Logger) *WhatsAppChannel {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RatePerSecond <= 0 {
		config.RatePerSecond = 5
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	return &WhatsAppChannel{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RatePerSecond), config.Burst),
		logger:     logger.With("channel", "whatsapp"),
	}
}

// Type implements notification.Channel.
func (c *WhatsAppChannel) Type() notification.ChannelType {
	return notification.ChannelTypeWhatsApp
}

type webhookPayload struct {
	MessageID string `json:"message_id"`
	To        string `json:"to"`
	Text      string `json:"text"`
	Link      string `json:"link"`
}

// Send implements notification.Channel.
func (c *WhatsAppChannel) Send(ctx context.Context, msg *notification.Message) notification.DeliveryResult {
	link := notification.WhatsAppLink(msg.To, msg.Body)

	if c.config.WebhookURL == "" {
		result := notification.Delivered(notification.ChannelTypeWhatsApp, msg.ID)
		result.Link = link
		return result
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return notification.Undelivered(notification.ChannelTypeWhatsApp, err, true)
	}

	body, err := json.Marshal(webhookPayload{MessageID: msg.ID, To: msg.To, Text: msg.Body, Link: link})
	if err != nil {
		return notification.Undelivered(notification.ChannelTypeWhatsApp, fmt.Errorf("marshal payload: %w", err), false)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return notification.Undelivered(notification.ChannelTypeWhatsApp, fmt.Errorf("create request: %w", err), false)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return notification.Undelivered(notification.ChannelTypeWhatsApp, fmt.Errorf("execute request: %w", err), true)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
		return notification.Undelivered(notification.ChannelTypeWhatsApp,
			fmt.Errorf("whatsapp gateway status %d", resp.StatusCode), retryable)
	}

	c.logger.Debug("whatsapp message posted", "message_id", msg.ID)
	result := notification.Delivered(notification.ChannelTypeWhatsApp, msg.ID)
	result.Link = link
	return result
}
