package command

import (
	"context"
	"fmt"

	"github.com/sagenius/agency-crm/internal/domain/agency"
	"github.com/sagenius/agency-crm/internal/domain/notification"
	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEND STATUS UPDATE COMMAND
// Renders the agency's WhatsApp template for a student and hands it to the
// WhatsApp channel, which either posts it to a gateway or returns a wa.me link.
// ══════════════════════════════════════════════════════════════════════════════

// SendStatusUpdateCommand requests a WhatsApp status update for one student.
type SendStatusUpdateCommand struct {
	User      agency.User
	StudentID string
}

// Validate validates the command.
func (c SendStatusUpdateCommand) Validate() error {
	if err := authorizeWriter("send_status_update", c.User); err != nil {
		return err
	}
	if c.StudentID == "" {
		return invalidInput("send_status_update", "student_id is required")
	}
	return nil
}

// SendStatusUpdateResult contains the rendered message and the delivery outcome.
type SendStatusUpdateResult struct {
	Text      string
	Link      string
	MessageID string
}

// SendStatusUpdateHandler handles SendStatusUpdateCommand.
type SendStatusUpdateHandler struct {
	deps   Deps
	sender notification.Sender
}

// NewSendStatusUpdateHandler creates a new SendStatusUpdateHandler.
func NewSendStatusUpdateHandler(deps Deps, sender notification.Sender) *SendStatusUpdateHandler {
	return &SendStatusUpdateHandler{deps: deps.withDefaults(), sender: sender}
}

// Handle executes the command. A student without a phone number is rejected.
func (h *SendStatusUpdateHandler) Handle(ctx context.Context, cmd SendStatusUpdateCommand) (*SendStatusUpdateResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("send_status_update: validation failed: %w", err)
	}
	agencyID := cmd.User.AgencyID

	roster, err := h.deps.Students.Load(ctx, agencyID)
	if err != nil {
		return nil, fmt.Errorf("send_status_update: load students: %w", err)
	}
	s, err := roster.Get(cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("send_status_update: %w", err)
	}
	if s.Phone.Digits() == "" {
		return nil, fmt.Errorf("send_status_update: %w", shared.ErrNoRecipient)
	}

	rec, err := h.deps.Agency.Settings(ctx, agencyID)
	if err != nil {
		return nil, fmt.Errorf("send_status_update: load settings: %w", err)
	}
	settings := rec.Settings.WithDefaults()

	text := notification.Fill(settings.Templates.WhatsappUpdate, notification.TemplateVars{
		StudentName: s.Name,
		AgencyName:  settings.AgencyName,
		Country:     s.TargetCountry.String(),
		Status:      s.Status.String(),
	})

	msg, err := notification.NewMessage(notification.NewMessageParams{
		AgencyID: agencyID,
		Type:     notification.TypeStatusUpdate,
		Channel:  notification.ChannelTypeWhatsApp,
		To:       s.Phone.String(),
		ToName:   s.Name,
		Body:     text,
		Metadata: map[string]string{"student_id": s.ID},
	})
	if err != nil {
		return nil, fmt.Errorf("send_status_update: %w", err)
	}

	res := h.sender.Send(ctx, msg)
	if !res.Success {
		return nil, fmt.Errorf("send_status_update: %w", res.Error)
	}

	h.deps.Logger.Info("status update sent",
		"agency_id", agencyID.String(),
		"student_id", s.ID,
		"message_id", res.MessageID,
	)
	return &SendStatusUpdateResult{Text: text, Link: res.Link, MessageID: res.MessageID}, nil
}
