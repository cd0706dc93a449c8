// Package notification implements the delivery channels of the agency CRM:
// SendGrid email, WhatsApp (wa.me links with an optional gateway webhook)
// and a log channel, behind a Dispatcher with per-channel circuit breakers.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/sagenius/agency-crm/internal/domain/notification"
)

// ══════════════════════════════════════════════════════════════════════════════
// EMAIL CHANNEL (SendGrid)
// ══════════════════════════════════════════════════════════════════════════════

const (
	defaultSendGridHost = "https://api.sendgrid.com"
	sendGridEndpoint    = "/v3/mail/send"
)

// ErrEmailNotConfigured is returned when the SendGrid key is missing.
var ErrEmailNotConfigured = errors.New("email channel: sendgrid api key is not configured")

// EmailConfig configures the SendGrid channel.
type EmailConfig struct {
	APIKey    string
	FromName  string
	FromEmail string

	// SubjectPrefix is prepended to every subject, e.g. "[StudyAbroad Genius] ".
	SubjectPrefix string

	// Host overrides the SendGrid API host (tests).
	Host string
}

// EmailChannel sends messages through the SendGrid v3 mail API.
type EmailChannel struct {
	key    string
	host   string
	from   *sgmail.Email
	prefix string
	logger *slog.Logger
}

// NewEmailChannel creates the channel. An empty API key is a configuration error.
func NewEmailChannel(cfg EmailConfig, logger *slog.Logger) (*EmailChannel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrEmailNotConfigured
	}
	if logger == nil {
		logger = slog.Default()
	}
	host := cfg.Host
	if host == "" {
		host = defaultSendGridHost
	}
	return &EmailChannel{
		key:    cfg.APIKey,
		host:   host,
		from:   sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
		prefix: cfg.SubjectPrefix,
		logger: logger.With("channel", "email"),
	}, nil
}

// Type implements notification.Channel.
func (c *EmailChannel) Type() notification.ChannelType {
	return notification.ChannelTypeEmail
}

// Send implements notification.Channel.
func (c *EmailChannel) Send(ctx context.Context, msg *notification.Message) notification.DeliveryResult {
	if err := ctx.Err(); err != nil {
		return notification.Undelivered(notification.ChannelTypeEmail, err, false)
	}

	req := sendgrid.GetRequest(c.key, sendGridEndpoint, c.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(c.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return notification.Undelivered(notification.ChannelTypeEmail, fmt.Errorf("sendgrid request: %w", err), true)
	}
	if res.StatusCode >= http.StatusBadRequest {
		retryable := res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError
		return notification.Undelivered(notification.ChannelTypeEmail,
			fmt.Errorf("sendgrid status %d: %s", res.StatusCode, truncate(res.Body, 200)), retryable)
	}

	messageID := ""
	if ids := res.Headers["X-Message-Id"]; len(ids) > 0 {
		messageID = ids[0]
	}
	c.logger.Debug("email sent", "message_id", messageID, "to", msg.To)
	return notification.Delivered(notification.ChannelTypeEmail, messageID)
}

func (c *EmailChannel) prepare(msg *notification.Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = c.prefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(c.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Body))
	for k, v := range msg.Metadata {
		if v != "" {
			m.SetCustomArg(k, v)
		}
	}
	return m
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
