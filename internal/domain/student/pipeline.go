package student

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION STATE MACHINE
// Переходы между пятью статусами не ограничены (консультант может исправить
// ошибочный клик), единственный барьер - блокировка зависимостями.
// ══════════════════════════════════════════════════════════════════════════════

// Transition описывает применённую смену статуса.
type Transition struct {
	StudentID string            `json:"studentId"`
	From      ApplicationStatus `json:"from"`
	To        ApplicationStatus `json:"to"`
	At        time.Time         `json:"at"`

	// CommissionPrompt - после Visa Granted интерфейс предлагает оформить комиссию.
	CommissionPrompt bool `json:"commissionPrompt"`
}

// StateMachine проверяет и применяет переходы статуса.
type StateMachine struct{}

// NewStateMachine создаёт машину состояний.
func NewStateMachine() *StateMachine {
	return &StateMachine{}
}

// RequestTransition применяет переход к s. Если студент заблокирован,
// возвращает *BlockedTransitionError и статус не меняется.
// Повторный вход в тот же статус разрешён и считается полноценным переходом.
func (m *StateMachine) RequestTransition(s *Student, to ApplicationStatus, resolve Resolver, now time.Time) (Transition, error) {
	if !to.IsValid() {
		return Transition{}, UnknownStatus(to)
	}

	if block := IsBlocked(s, resolve); block.Blocked {
		return Transition{}, &BlockedTransitionError{
			StudentID:   s.ID,
			BlockerID:   block.BlockerID,
			BlockerName: block.BlockerName,
		}
	}

	tr := Transition{
		StudentID:        s.ID,
		From:             s.Status,
		To:               to,
		At:               now,
		CommissionPrompt: to == StatusVisaGranted,
	}

	s.Status = to
	s.UpdatedAt = now
	return tr, nil
}
