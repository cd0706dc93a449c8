package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sagenius/agency-crm/internal/application/feature"
	"github.com/sagenius/agency-crm/internal/domain/agency"
	"github.com/sagenius/agency-crm/internal/domain/notification"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON VISA GRANTED HANDLER
// Поздравляет студента письмом, когда он переходит в Visa Granted.
// Письмо уходит, только если включены и toggle email_on_visa, и
// настройка агентства notifications.emailOnVisa, и у студента есть email.
// ═══════════════════════════════════════════════════════════════════════════

// OnVisaGrantedHandler обрабатывает student.status_changed с To = Visa Granted.
type OnVisaGrantedHandler struct {
	agency   agency.Repository
	sender   notification.Sender
	features feature.Gate

	logger *slog.Logger
	config VisaGrantedConfig
}

// VisaGrantedConfig содержит конфигурацию обработчика.
type VisaGrantedConfig struct {
	// Timeout - ограничение на отправку письма.
	Timeout time.Duration
}

// DefaultVisaGrantedConfig возвращает конфигурацию по умолчанию.
func DefaultVisaGrantedConfig() VisaGrantedConfig {
	return VisaGrantedConfig{Timeout: 30 * time.Second}
}

// NewOnVisaGrantedHandler создаёт обработчик.
func NewOnVisaGrantedHandler(
	agencyRepo agency.Repository,
	sender notification.Sender,
	features feature.Gate,
	logger *slog.Logger,
	config VisaGrantedConfig,
) *OnVisaGrantedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if features == nil {
		features = feature.Defaults()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultVisaGrantedConfig().Timeout
	}
	return &OnVisaGrantedHandler{
		agency:   agencyRepo,
		sender:   sender,
		features: features,
		logger:   logger.With("handler", "on_visa_granted"),
		config:   config,
	}
}

// Handle реализует shared.EventHandler. Ошибка доставки логируется и
// не возвращается: смена статуса уже сохранена.
func (h *OnVisaGrantedHandler) Handle(event shared.Event) error {
	changed, ok := event.(student.StatusChangedEvent)
	if !ok || changed.To != student.StatusVisaGranted {
		return nil
	}

	agencyID := shared.AgencyID(changed.AgencyID())
	if !h.features.EnabledFor(feature.EmailOnVisa, agencyID.String()) {
		return nil
	}
	s := changed.Student
	if s.Email == "" {
		h.logger.Debug("student has no email, skipping", "student_id", s.ID)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	rec, err := h.agency.Settings(ctx, agencyID)
	if err != nil {
		return fmt.Errorf("on_visa_granted: load settings: %w", err)
	}
	settings := rec.Settings.WithDefaults()
	if !settings.Notifications.EmailOnVisa {
		return nil
	}

	vars := notification.TemplateVars{
		StudentName: s.Name,
		AgencyName:  settings.AgencyName,
		Country:     s.TargetCountry.String(),
		Status:      changed.To.String(),
	}
	msg, err := notification.NewMessage(notification.NewMessageParams{
		AgencyID: agencyID,
		Type:     notification.TypeVisaGranted,
		Channel:  notification.ChannelTypeEmail,
		To:       s.Email.String(),
		ToName:   s.Name,
		Subject:  notification.Fill("Visa Granted: {student_name} ({country})", vars),
		Body:     notification.Fill(settings.Templates.EmailVisaGranted, vars),
		Metadata: map[string]string{"student_id": s.ID},
	})
	if err != nil {
		return fmt.Errorf("on_visa_granted: %w", err)
	}

	res := h.sender.Send(ctx, msg)
	if !res.Success {
		h.logger.Error("visa email failed",
			"agency_id", agencyID.String(),
			"student_id", s.ID,
			"error", res.Error,
		)
		return nil
	}

	h.logger.Info("visa email sent",
		"agency_id", agencyID.String(),
		"student_id", s.ID,
		"message_id", res.MessageID,
	)
	return nil
}
