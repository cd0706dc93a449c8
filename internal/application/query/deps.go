// Package query - операции чтения: списки, карточки, доска и планировщик.
package query

import (
	"fmt"
	"time"

	"github.com/sagenius/agency-crm/internal/application/feature"
	"github.com/sagenius/agency-crm/internal/domain/agency"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
	"github.com/sagenius/agency-crm/internal/domain/task"
)

// ══════════════════════════════════════════════════════════════════════════════
// ЗАВИСИМОСТИ ЗАПРОСОВ
// Запросы только читают коллекции и не берут блокировку агентства:
// каждая коллекция читается целиком, поэтому снимок внутри неё согласован.
// ══════════════════════════════════════════════════════════════════════════════

// Deps - коллабораторы, общие для всех обработчиков запросов.
type Deps struct {
	Students student.Repository
	Tasks    task.Repository
	Agency   agency.Repository
	Catalog  *student.Catalog
	Features feature.Gate
	Clock    shared.Clock
}

func (d Deps) withDefaults() Deps {
	if d.Catalog == nil {
		d.Catalog = student.DefaultCatalog()
	}
	if d.Features == nil {
		d.Features = feature.Defaults()
	}
	if d.Clock == nil {
		d.Clock = shared.SystemClock(time.UTC)
	}
	return d
}

// policy возвращает правило подсчёта прогресса для агентства.
func (d Deps) policy(agencyID shared.AgencyID) student.ProgressPolicy {
	return student.ProgressPolicy{
		ExcludeWaived: d.Features.EnabledFor(feature.ExcludeWaivedDocuments, agencyID.String()),
	}
}

// TenantQuery - запрос в пределах одного агентства.
type TenantQuery struct {
	AgencyID shared.AgencyID
}

// Validate проверяет, что агентство указано.
func (q TenantQuery) Validate() error {
	if !q.AgencyID.IsValid() {
		return shared.ErrAgencyRequired
	}
	return nil
}

// StudentQuery - запрос по одному студенту.
type StudentQuery struct {
	AgencyID  shared.AgencyID
	StudentID string
}

// Validate проверяет параметры.
func (q StudentQuery) Validate() error {
	if !q.AgencyID.IsValid() {
		return shared.ErrAgencyRequired
	}
	if q.StudentID == "" {
		return shared.NewDomainError("query", "Validate", shared.ErrInvalidID, "student_id is required")
	}
	return nil
}

func wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
