package eventhandler

import (
	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// Handler - обработчик, который можно подписать на шину.
type Handler interface {
	Handle(event shared.Event) error
}

// Register подписывает обработчики на student.status_changed.
// Порядок подписки сохраняется: на синхронной шине задачи создаются до письма.
func Register(bus shared.EventSubscriber, handlers ...Handler) error {
	for _, h := range handlers {
		if h == nil {
			continue
		}
		if err := bus.Subscribe(shared.EventStatusChanged, h.Handle); err != nil {
			return err
		}
	}
	return nil
}
