package agency

import (
	"time"

	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY LOG
// ══════════════════════════════════════════════════════════════════════════════

// MaxActivityEntries - сколько последних записей хранит журнал.
const MaxActivityEntries = 500

// Действия, которые пишутся в журнал.
const (
	ActionCreate     = "CREATE"
	ActionUpdate     = "UPDATE"
	ActionDelete     = "DELETE"
	ActionStatus     = "STATUS_CHANGE"
	ActionDependency = "DEPENDENCY"
	ActionDocument   = "DOCUMENT"
	ActionAutomation = "AUTOMATION"
	ActionCommission = "COMMISSION"
	ActionSettings   = "SETTINGS"
)

// ActivityEntry - одна запись журнала.
type ActivityEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	Details   string    `json:"details"`
	UserName  string    `json:"userName"`
	Timestamp time.Time `json:"timestamp"`
}

// NewActivityEntry создаёт запись журнала.
func NewActivityEntry(action, entity, details, userName string, at time.Time) ActivityEntry {
	return ActivityEntry{
		ID:        shared.NewID(),
		Action:    action,
		Entity:    entity,
		Details:   details,
		UserName:  userName,
		Timestamp: at,
	}
}

// ActivityLog - журнал агентства (новые сверху) с ревизией хранилища.
type ActivityLog struct {
	Entries  []ActivityEntry
	Revision int64
}

// Append добавляет записи в начало и обрезает журнал до MaxActivityEntries.
func (l *ActivityLog) Append(entries ...ActivityEntry) {
	merged := make([]ActivityEntry, 0, len(entries)+len(l.Entries))
	for i := len(entries) - 1; i >= 0; i-- {
		merged = append(merged, entries[i])
	}
	merged = append(merged, l.Entries...)
	if len(merged) > MaxActivityEntries {
		merged = merged[:MaxActivityEntries]
	}
	l.Entries = merged
}

// Recent возвращает последние limit записей (все при limit <= 0).
func (l *ActivityLog) Recent(limit int) []ActivityEntry {
	if limit <= 0 || limit >= len(l.Entries) {
		return l.Entries
	}
	return l.Entries[:limit]
}
