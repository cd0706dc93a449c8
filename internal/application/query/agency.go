package query

import (
	"context"

	"github.com/sagenius/agency-crm/internal/domain/agency"
)

// ══════════════════════════════════════════════════════════════════════════════
// AGENCY QUERIES
// Настройки, партнёры, комиссии, финансы и журнал - только чтение.
// ══════════════════════════════════════════════════════════════════════════════

// ActivityQuery - последние записи журнала.
type ActivityQuery struct {
	TenantQuery

	// Limit - сколько записей вернуть (0 = 50, максимум agency.MaxActivityEntries).
	Limit int
}

// AgencyQueryHandler обрабатывает запросы уровня агентства.
type AgencyQueryHandler struct {
	deps Deps
}

// NewAgencyQueryHandler создаёт обработчик.
func NewAgencyQueryHandler(deps Deps) *AgencyQueryHandler {
	return &AgencyQueryHandler{deps: deps.withDefaults()}
}

// Settings возвращает настройки; если их нет - значения по умолчанию.
func (h *AgencyQueryHandler) Settings(ctx context.Context, q TenantQuery) (*agency.Settings, error) {
	if err := q.Validate(); err != nil {
		return nil, wrap("get_settings", err)
	}
	rec, err := h.deps.Agency.Settings(ctx, q.AgencyID)
	if err != nil {
		return nil, wrap("get_settings", err)
	}
	s := rec.Settings.WithDefaults()
	return &s, nil
}

// Partners возвращает каталог партнёров.
func (h *AgencyQueryHandler) Partners(ctx context.Context, q TenantQuery) ([]agency.Partner, error) {
	if err := q.Validate(); err != nil {
		return nil, wrap("list_partners", err)
	}
	book, err := h.deps.Agency.Partners(ctx, q.AgencyID)
	if err != nil {
		return nil, wrap("list_partners", err)
	}
	return book.Partners, nil
}

// Claims возвращает заявки на комиссию, новые сверху.
func (h *AgencyQueryHandler) Claims(ctx context.Context, q TenantQuery) ([]*agency.CommissionClaim, error) {
	if err := q.Validate(); err != nil {
		return nil, wrap("list_claims", err)
	}
	ledger, err := h.deps.Agency.Claims(ctx, q.AgencyID)
	if err != nil {
		return nil, wrap("list_claims", err)
	}
	if ledger.Claims == nil {
		return []*agency.CommissionClaim{}, nil
	}
	return ledger.Claims, nil
}

// Invoices возвращает счета.
func (h *AgencyQueryHandler) Invoices(ctx context.Context, q TenantQuery) ([]agency.Invoice, error) {
	if err := q.Validate(); err != nil {
		return nil, wrap("list_invoices", err)
	}
	items, err := h.deps.Agency.Invoices(ctx, q.AgencyID)
	if err != nil {
		return nil, wrap("list_invoices", err)
	}
	return items, nil
}

// Expenses возвращает расходы.
func (h *AgencyQueryHandler) Expenses(ctx context.Context, q TenantQuery) ([]agency.Expense, error) {
	if err := q.Validate(); err != nil {
		return nil, wrap("list_expenses", err)
	}
	items, err := h.deps.Agency.Expenses(ctx, q.AgencyID)
	if err != nil {
		return nil, wrap("list_expenses", err)
	}
	return items, nil
}

// Activity возвращает последние записи журнала.
func (h *AgencyQueryHandler) Activity(ctx context.Context, q ActivityQuery) ([]agency.ActivityEntry, error) {
	if err := q.Validate(); err != nil {
		return nil, wrap("list_activity", err)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > agency.MaxActivityEntries {
		limit = agency.MaxActivityEntries
	}

	log, err := h.deps.Agency.Activity(ctx, q.AgencyID)
	if err != nil {
		return nil, wrap("list_activity", err)
	}
	entries := log.Recent(limit)
	if entries == nil {
		return []agency.ActivityEntry{}, nil
	}
	return entries, nil
}
