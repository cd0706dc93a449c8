// Package agency содержит данные уровня агентства: настройки,
// пользователей и роли, партнёров и комиссии, журнал действий.
package agency

import (
	"strings"
	"time"

	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS
// ══════════════════════════════════════════════════════════════════════════════

// Значения по умолчанию для нового агентства.
const (
	DefaultAgencyName = "StudyAbroad Genius"
	DefaultCurrency   = "NPR"

	DefaultWhatsappTemplate = "Hi {student_name}, this is {agency_name}. " +
		"Your application for {country} is now: {status}."
	DefaultVisaEmailTemplate = "Dear {student_name},\n\nCongratulations! Your visa for {country} " +
		"has been granted.\n\nBest regards,\n{agency_name}"
)

// NotificationSettings - какие автоматические уведомления включены.
type NotificationSettings struct {
	EmailOnVisa    bool `json:"emailOnVisa"`
	DailyReminders bool `json:"dailyReminders"`
}

// Templates - шаблоны сообщений с плейсхолдерами
// {student_name}, {agency_name}, {country}, {status}.
type Templates struct {
	WhatsappUpdate   string `json:"whatsappUpdate"`
	EmailVisaGranted string `json:"emailVisaGranted"`
}

// Settings - настройки агентства.
type Settings struct {
	AgencyName     string               `json:"agencyName"`
	Currency       string               `json:"currency"`
	DefaultCountry student.Country      `json:"defaultCountry"`
	Notifications  NotificationSettings `json:"notifications"`
	Templates      Templates            `json:"templates"`
	UpdatedAt      time.Time            `json:"updatedAt,omitempty"`
}

// DefaultSettings возвращает настройки нового агентства.
func DefaultSettings() Settings {
	return Settings{
		AgencyName:     DefaultAgencyName,
		Currency:       DefaultCurrency,
		DefaultCountry: student.CountryAustralia,
		Notifications: NotificationSettings{
			EmailOnVisa:    true,
			DailyReminders: true,
		},
		Templates: Templates{
			WhatsappUpdate:   DefaultWhatsappTemplate,
			EmailVisaGranted: DefaultVisaEmailTemplate,
		},
	}
}

// Validate проверяет настройки.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.AgencyName) == "" {
		return shared.NewDomainError("agency", "Validate", shared.ErrEmptyValue, "agency name is required")
	}
	if !isCurrencyCode(s.Currency) {
		return shared.ErrInvalidCurrency
	}
	if _, err := student.ParseCountry(string(s.DefaultCountry)); err != nil {
		return err
	}
	return nil
}

// WithDefaults заполняет пустые поля значениями по умолчанию.
// Нужен для записей, сохранённых старыми версиями без шаблонов.
func (s Settings) WithDefaults() Settings {
	d := DefaultSettings()
	if s.AgencyName == "" {
		s.AgencyName = d.AgencyName
	}
	if s.Currency == "" {
		s.Currency = d.Currency
	}
	if s.DefaultCountry == "" {
		s.DefaultCountry = d.DefaultCountry
	}
	if s.Templates.WhatsappUpdate == "" {
		s.Templates.WhatsappUpdate = d.Templates.WhatsappUpdate
	}
	if s.Templates.EmailVisaGranted == "" {
		s.Templates.EmailVisaGranted = d.Templates.EmailVisaGranted
	}
	return s
}

// isCurrencyCode - три заглавные латинские буквы (ISO 4217).
func isCurrencyCode(c string) bool {
	if len(c) != 3 {
		return false
	}
	for i := 0; i < len(c); i++ {
		if c[i] < 'A' || c[i] > 'Z' {
			return false
		}
	}
	return true
}
