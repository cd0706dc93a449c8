package query

import (
	"context"

	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT QUERIES
// Карточки студентов, прогресс документов, чек-лист и готовность пакета.
// ══════════════════════════════════════════════════════════════════════════════

// ListStudentsQuery - параметры списка студентов.
type ListStudentsQuery struct {
	AgencyID shared.AgencyID

	// Status, Country, Search - необязательные фильтры.
	Status  student.ApplicationStatus
	Country student.Country
	Search  string
}

// StudentDTO - студент вместе с вычисленными полями.
type StudentDTO struct {
	*student.Student

	// ─────────────────────────────────────────────────────────────────────────
	// Вычисляемые поля
	// ─────────────────────────────────────────────────────────────────────────

	// Progress - процент готовности документов.
	Progress int `json:"progress"`

	// Blocked - смена статуса сейчас запрещена.
	Blocked bool `json:"blocked"`

	// BlockerName - имя первого незавершённого блокера.
	BlockerName string `json:"blockerName,omitempty"`
}

// ProgressDTO - прогресс документов одного студента.
type ProgressDTO struct {
	StudentID string          `json:"studentId"`
	Country   student.Country `json:"country"`
	Progress  int             `json:"progress"`
}

// DocumentsDTO - чек-лист документов и готовность пакета для партнёра.
type DocumentsDTO struct {
	StudentID string                  `json:"studentId"`
	Country   student.Country         `json:"country"`
	Progress  int                     `json:"progress"`
	Items     []student.ChecklistItem `json:"items"`

	// BundleReady - все документы пакета загружены.
	BundleReady bool `json:"bundleReady"`

	// MissingForBundle - чего не хватает для пакета.
	MissingForBundle []string `json:"missingForBundle"`
}

// StudentQueryHandler обрабатывает запросы по студентам.
type StudentQueryHandler struct {
	deps Deps
}

// NewStudentQueryHandler создаёт обработчик.
func NewStudentQueryHandler(deps Deps) *StudentQueryHandler {
	return &StudentQueryHandler{deps: deps.withDefaults()}
}

// List возвращает студентов по фильтру, новые сверху.
func (h *StudentQueryHandler) List(ctx context.Context, q ListStudentsQuery) ([]StudentDTO, error) {
	tq := TenantQuery{AgencyID: q.AgencyID}
	if err := tq.Validate(); err != nil {
		return nil, wrap("list_students", err)
	}

	roster, err := h.deps.Students.Load(ctx, tq.AgencyID)
	if err != nil {
		return nil, wrap("list_students", err)
	}

	policy := h.deps.policy(tq.AgencyID)
	resolve := roster.Resolver()
	items := roster.List(student.Filter{Status: q.Status, Country: q.Country, Query: q.Search})

	out := make([]StudentDTO, 0, len(items))
	for _, s := range items {
		dto, err := h.toDTO(s, resolve, policy)
		if err != nil {
			return nil, wrap("list_students", err)
		}
		out = append(out, dto)
	}
	return out, nil
}

// Get возвращает одного студента.
func (h *StudentQueryHandler) Get(ctx context.Context, q StudentQuery) (*StudentDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, wrap("get_student", err)
	}
	roster, s, err := h.load(ctx, q)
	if err != nil {
		return nil, wrap("get_student", err)
	}
	dto, err := h.toDTO(s, roster.Resolver(), h.deps.policy(q.AgencyID))
	if err != nil {
		return nil, wrap("get_student", err)
	}
	return &dto, nil
}

// Progress вычисляет процент готовности документов.
func (h *StudentQueryHandler) Progress(ctx context.Context, q StudentQuery) (*ProgressDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, wrap("compute_progress", err)
	}
	_, s, err := h.load(ctx, q)
	if err != nil {
		return nil, wrap("compute_progress", err)
	}
	p, err := student.Progress(s, h.deps.Catalog, h.deps.policy(q.AgencyID))
	if err != nil {
		return nil, wrap("compute_progress", err)
	}
	return &ProgressDTO{StudentID: s.ID, Country: s.TargetCountry, Progress: p}, nil
}

// Documents возвращает чек-лист и готовность пакета.
func (h *StudentQueryHandler) Documents(ctx context.Context, q StudentQuery) (*DocumentsDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, wrap("document_checklist", err)
	}
	_, s, err := h.load(ctx, q)
	if err != nil {
		return nil, wrap("document_checklist", err)
	}

	items, err := student.Checklist(s, h.deps.Catalog)
	if err != nil {
		return nil, wrap("document_checklist", err)
	}
	p, err := student.Progress(s, h.deps.Catalog, h.deps.policy(q.AgencyID))
	if err != nil {
		return nil, wrap("document_checklist", err)
	}

	missing := student.MissingForBundle(s)
	if missing == nil {
		missing = []string{}
	}
	return &DocumentsDTO{
		StudentID:        s.ID,
		Country:          s.TargetCountry,
		Progress:         p,
		Items:            items,
		BundleReady:      len(missing) == 0,
		MissingForBundle: missing,
	}, nil
}

func (h *StudentQueryHandler) load(ctx context.Context, q StudentQuery) (*student.Roster, *student.Student, error) {
	roster, err := h.deps.Students.Load(ctx, q.AgencyID)
	if err != nil {
		return nil, nil, err
	}
	s, err := roster.Get(q.StudentID)
	if err != nil {
		return nil, nil, err
	}
	return roster, s, nil
}

func (h *StudentQueryHandler) toDTO(s *student.Student, resolve student.Resolver, policy student.ProgressPolicy) (StudentDTO, error) {
	p, err := student.Progress(s, h.deps.Catalog, policy)
	if err != nil {
		return StudentDTO{}, err
	}
	block := student.IsBlocked(s, resolve)
	return StudentDTO{
		Student:     s,
		Progress:    p,
		Blocked:     block.Blocked,
		BlockerName: block.BlockerName,
	}, nil
}
