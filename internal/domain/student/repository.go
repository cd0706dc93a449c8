package student

import (
	"context"
	"sort"
	"strings"

	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Хранилище работает с коллекцией студентов агентства целиком:
// прочитать, изменить в памяти, записать с проверкой ревизии.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Roster - коллекция студентов одного агентства вместе с ревизией,
// по которой она была прочитана.
type Roster struct {
	Students []*Student
	Revision int64
}

// Find возвращает студента по id.
func (r *Roster) Find(id string) (*Student, bool) {
	for _, s := range r.Students {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// Get возвращает студента или ErrStudentNotFound.
func (r *Roster) Get(id string) (*Student, error) {
	s, ok := r.Find(id)
	if !ok {
		return nil, ErrStudentNotFound
	}
	return s, nil
}

// Resolver возвращает Resolver по этой коллекции.
func (r *Roster) Resolver() Resolver {
	return r.Find
}

// Graph строит граф зависимостей по этой коллекции.
func (r *Roster) Graph() *Graph {
	return NewGraph(r.Students)
}

// Add добавляет студента в начало списка (новые сверху).
func (r *Roster) Add(s *Student) {
	r.Students = append([]*Student{s}, r.Students...)
}

// Remove удаляет студента и возвращает его.
func (r *Roster) Remove(id string) (*Student, error) {
	for i, s := range r.Students {
		if s.ID == id {
			r.Students = append(r.Students[:i], r.Students[i+1:]...)
			return s, nil
		}
	}
	return nil, ErrStudentNotFound
}

// Filter задаёт отбор студентов для списка.
type Filter struct {
	Status  ApplicationStatus
	Country Country
	Query   string
}

// List возвращает студентов, подходящих под фильтр, отсортированных по дате создания (новые сверху).
func (r *Roster) List(f Filter) []*Student {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]*Student, 0, len(r.Students))
	for _, s := range r.Students {
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if f.Country != "" && s.TargetCountry != f.Country {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(s.Name), q) &&
			!strings.Contains(strings.ToLower(s.Email.String()), q) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Repository определяет доступ к коллекции студентов агентства.
type Repository interface {
	// Load читает коллекцию целиком. Пустая коллекция имеет ревизию 0.
	Load(ctx context.Context, agencyID shared.AgencyID) (*Roster, error)

	// Store записывает коллекцию. Если ревизия в хранилище отличается от
	// roster.Revision, возвращает ошибку shared.ErrConcurrentModification.
	// При успехе roster.Revision обновляется.
	Store(ctx context.Context, agencyID shared.AgencyID, roster *Roster) error
}
