package shared

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// ИДЕНТИФИКАТОРЫ
// ══════════════════════════════════════════════════════════════════════════════

// AgencyID - идентификатор арендатора. Все коллекции привязаны к нему.
type AgencyID string

var agencyIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)

// IsValid проверяет, что id годится как сегмент ключа хранилища.
func (a AgencyID) IsValid() bool {
	return agencyIDRegex.MatchString(string(a))
}

func (a AgencyID) String() string {
	return string(a)
}

// NewAgencyID обрезает пробелы и проверяет формат.
func NewAgencyID(id string) (AgencyID, error) {
	aid := AgencyID(strings.TrimSpace(id))
	if aid == "" {
		return "", ErrAgencyRequired
	}
	if !aid.IsValid() {
		return "", NewDomainError("shared", "NewAgencyID", ErrInvalidID, "invalid agency ID format")
	}
	return aid, nil
}

// NewID возвращает новый непрозрачный идентификатор. Уникален даже при
// генерации многих id в один момент.
func NewID() string {
	return uuid.NewString()
}

// ══════════════════════════════════════════════════════════════════════════════
// КОНТАКТЫ
// ══════════════════════════════════════════════════════════════════════════════

// Email - нормализованный адрес. Пустое значение означает "не указан".
type Email string

// IsValid проверяет синтаксис адреса.
func (e Email) IsValid() bool {
	if e == "" {
		return true
	}
	addr, err := mail.ParseAddress(string(e))
	return err == nil && addr.Address == string(e)
}

func (e Email) String() string {
	return string(e)
}

// NewEmail приводит адрес к нижнему регистру и проверяет его.
func NewEmail(raw string) (Email, error) {
	e := Email(strings.ToLower(strings.TrimSpace(raw)))
	if !e.IsValid() {
		return "", NewDomainError("shared", "NewEmail", ErrInvalidFormat, "invalid email address")
	}
	return e, nil
}

// Phone - номер телефона в том виде, как его ввёл оператор.
type Phone string

// Digits оставляет только цифры, как требуют ссылки wa.me.
func (p Phone) Digits() string {
	var b strings.Builder
	for _, r := range string(p) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (p Phone) String() string {
	return string(p)
}

// ══════════════════════════════════════════════════════════════════════════════
// ЧАСЫ
// ══════════════════════════════════════════════════════════════════════════════

// Clock возвращает текущее время. Тесты подставляют фиксированное "сейчас".
type Clock func() time.Time

// SystemClock читает системное время в зоне loc.
func SystemClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return func() time.Time { return time.Now().In(loc) }
}

// FixedClock всегда возвращает t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
