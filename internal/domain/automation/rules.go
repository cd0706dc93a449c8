// Package automation содержит движок правил: по смене статуса студента
// он детерминированно синтезирует задачи follow-up с днём и временем.
package automation

import (
	"strings"

	"github.com/sagenius/agency-crm/internal/domain/student"
	"github.com/sagenius/agency-crm/internal/domain/task"
)

// ══════════════════════════════════════════════════════════════════════════════
// RULE TABLE
// ══════════════════════════════════════════════════════════════════════════════

// Rule - одна строка таблицы автоматизации.
type Rule struct {
	// Status - статус, вход в который запускает правило.
	Status student.ApplicationStatus

	// Template - текст задачи. Плейсхолдеры: {name}, {country}.
	Template string

	Priority task.Priority

	// DayOffset - через сколько календарных дней от "сейчас".
	DayOffset int

	DueTime task.DueTime

	// SkipCountries - страны, для которых правило не применяется.
	SkipCountries []student.Country
}

// Applies проверяет, применимо ли правило к студенту.
func (r Rule) Applies(s *student.Student) bool {
	for _, c := range r.SkipCountries {
		if s.TargetCountry == c {
			return false
		}
	}
	return true
}

// Render подставляет данные студента в шаблон.
func (r Rule) Render(s *student.Student) string {
	return strings.NewReplacer(
		"{name}", s.Name,
		"{country}", string(s.TargetCountry),
	).Replace(r.Template)
}

// countryIndia - NOC выдаётся непальским студентам; для India задача проверки NOC не нужна.
const countryIndia student.Country = "India"

// DefaultRules возвращает исчерпывающую таблицу правил. Для Lead задач нет.
func DefaultRules() []Rule {
	return []Rule{
		{
			Status:    student.StatusApplied,
			Template:  "Check Offer Status: {name} ({country})",
			Priority:  task.PriorityLow,
			DayOffset: 7,
			DueTime:   "11:00",
		},
		{
			Status:    student.StatusOfferReceived,
			Template:  "Collect Tuition Fee & GTE Docs: {name}",
			Priority:  task.PriorityHigh,
			DayOffset: 1,
			DueTime:   "14:00",
		},
		{
			Status:        student.StatusOfferReceived,
			Template:      "Verify NOC Status for {name}",
			Priority:      task.PriorityMedium,
			DayOffset:     2,
			DueTime:       "12:00",
			SkipCountries: []student.Country{countryIndia},
		},
		{
			Status:    student.StatusVisaGranted,
			Template:  "Conduct Pre-Departure Briefing: {name}",
			Priority:  task.PriorityHigh,
			DayOffset: 1,
			DueTime:   "15:00",
		},
		{
			Status:    student.StatusVisaGranted,
			Template:  "CLAIM COMMISSION: {name} ({country})",
			Priority:  task.PriorityHigh,
			DayOffset: 3,
			DueTime:   "10:00",
		},
		{
			Status:    student.StatusVisaGranted,
			Template:  "Archive Student File: {name}",
			Priority:  task.PriorityLow,
			DayOffset: 5,
			DueTime:   "17:00",
		},
		{
			Status:    student.StatusVisaRejected,
			Template:  "Process Tuition Refund: {name}",
			Priority:  task.PriorityHigh,
			DayOffset: 1,
			DueTime:   "11:00",
		},
		{
			Status:    student.StatusVisaRejected,
			Template:  "Review Refusal Reason with {name}",
			Priority:  task.PriorityMedium,
			DayOffset: 2,
			DueTime:   "14:00",
		},
	}
}
