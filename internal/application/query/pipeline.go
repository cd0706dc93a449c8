package query

import (
	"context"
	"sort"

	"github.com/sagenius/agency-crm/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// PIPELINE BOARD
// Канбан-доска: колонка на каждый статус в порядке воронки.
// ══════════════════════════════════════════════════════════════════════════════

// Прогнозная стоимость одного студента в колонке (в валюте агентства).
// Остальные колонки денег не приносят.
var columnValues = map[student.ApplicationStatus]float64{
	student.StatusOfferReceived: 50000,
	student.StatusVisaGranted:   150000,
}

// CardDTO - карточка студента на доске.
type CardDTO struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	TargetCountry student.Country `json:"targetCountry"`
	Progress      int             `json:"progress"`
	Blocked       bool            `json:"blocked"`
	BlockerName   string          `json:"blockerName,omitempty"`
}

// ColumnDTO - одна колонка доски.
type ColumnDTO struct {
	Status student.ApplicationStatus `json:"status"`
	Count  int                       `json:"count"`

	// ProjectedValue - число студентов, умноженное на стоимость колонки.
	ProjectedValue float64   `json:"projectedValue"`
	Students       []CardDTO `json:"students"`
}

// BoardDTO - вся доска.
type BoardDTO struct {
	Currency       string      `json:"currency"`
	Columns        []ColumnDTO `json:"columns"`
	ProjectedTotal float64     `json:"projectedTotal"`
}

// NocEntryDTO - строка NOC-трекера.
type NocEntryDTO struct {
	ID            string                    `json:"id"`
	Name          string                    `json:"name"`
	TargetCountry student.Country           `json:"targetCountry"`
	Status        student.ApplicationStatus `json:"status"`
	NocStatus     student.NocStatus         `json:"nocStatus"`
}

// PipelineHandler строит доску и NOC-трекер.
type PipelineHandler struct {
	deps Deps
}

// NewPipelineHandler создаёт обработчик.
func NewPipelineHandler(deps Deps) *PipelineHandler {
	return &PipelineHandler{deps: deps.withDefaults()}
}

// Board группирует студентов по статусам. Пустые колонки присутствуют.
func (h *PipelineHandler) Board(ctx context.Context, q TenantQuery) (*BoardDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, wrap("pipeline_board", err)
	}

	roster, err := h.deps.Students.Load(ctx, q.AgencyID)
	if err != nil {
		return nil, wrap("pipeline_board", err)
	}
	settings, err := h.deps.Agency.Settings(ctx, q.AgencyID)
	if err != nil {
		return nil, wrap("pipeline_board", err)
	}

	policy := h.deps.policy(q.AgencyID)
	resolve := roster.Resolver()
	students := roster.List(student.Filter{})

	board := &BoardDTO{Currency: settings.Settings.WithDefaults().Currency}
	for _, status := range student.Statuses() {
		col := ColumnDTO{Status: status, Students: []CardDTO{}}
		for _, s := range students {
			if s.Status != status {
				continue
			}
			p, err := student.Progress(s, h.deps.Catalog, policy)
			if err != nil {
				return nil, wrap("pipeline_board", err)
			}
			block := student.IsBlocked(s, resolve)
			col.Students = append(col.Students, CardDTO{
				ID:            s.ID,
				Name:          s.Name,
				TargetCountry: s.TargetCountry,
				Progress:      p,
				Blocked:       block.Blocked,
				BlockerName:   block.BlockerName,
			})
		}
		col.Count = len(col.Students)
		col.ProjectedValue = float64(col.Count) * columnValues[status]
		board.ProjectedTotal += col.ProjectedValue
		board.Columns = append(board.Columns, col)
	}
	return board, nil
}

// NocTracker возвращает студентов, у которых идёт NOC или он скоро понадобится.
// Сортировка: по этапу NOC, затем по имени.
func (h *PipelineHandler) NocTracker(ctx context.Context, q TenantQuery) ([]NocEntryDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, wrap("noc_tracker", err)
	}

	roster, err := h.deps.Students.Load(ctx, q.AgencyID)
	if err != nil {
		return nil, wrap("noc_tracker", err)
	}

	out := []NocEntryDTO{}
	for _, s := range roster.Students {
		if !s.IsNocTracked() {
			continue
		}
		out = append(out, NocEntryDTO{
			ID:            s.ID,
			Name:          s.Name,
			TargetCountry: s.TargetCountry,
			Status:        s.Status,
			NocStatus:     s.NocStatus,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if a, b := nocOrder(out[i].NocStatus), nocOrder(out[j].NocStatus); a != b {
			return a < b
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func nocOrder(n student.NocStatus) int {
	switch n {
	case student.NocNotApplied:
		return 0
	case student.NocApplied:
		return 1
	case student.NocVoucherReceived:
		return 2
	case student.NocVerified:
		return 3
	case student.NocIssued:
		return 4
	default:
		return 5
	}
}
