package notification

import (
	"net/url"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEMPLATES
// ══════════════════════════════════════════════════════════════════════════════

// TemplateVars - значения плейсхолдеров шаблона.
type TemplateVars struct {
	StudentName string
	AgencyName  string
	Country     string
	Status      string
}

// Fill подставляет {student_name}, {agency_name}, {country}, {status}.
// Неизвестные плейсхолдеры остаются как есть.
func Fill(tpl string, vars TemplateVars) string {
	return strings.NewReplacer(
		"{student_name}", vars.StudentName,
		"{agency_name}", vars.AgencyName,
		"{country}", vars.Country,
		"{status}", vars.Status,
	).Replace(tpl)
}

// WhatsAppLink строит ссылку https://wa.me/{digits}?text={text}.
// Из номера оставляются только цифры.
func WhatsAppLink(phone, text string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return "https://wa.me/" + digits.String() + "?text=" + url.QueryEscape(text)
}
