package agency

import (
	"context"

	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// SettingsRecord - настройки вместе с ревизией хранилища.
type SettingsRecord struct {
	Settings Settings
	Revision int64
}

// PartnerBook - список партнёров с ревизией.
type PartnerBook struct {
	Partners []Partner
	Revision int64
}

// ClaimLedger - список заявок на комиссию с ревизией (новые сверху).
type ClaimLedger struct {
	Claims   []*CommissionClaim
	Revision int64
}

// Add добавляет заявку в начало.
func (l *ClaimLedger) Add(c *CommissionClaim) {
	l.Claims = append([]*CommissionClaim{c}, l.Claims...)
}

// Repository - доступ к коллекциям уровня агентства.
// Все Save* проверяют ревизию и возвращают shared.ErrConcurrentModification.
type Repository interface {
	// Settings возвращает настройки; если их нет, DefaultSettings с ревизией 0.
	Settings(ctx context.Context, agencyID shared.AgencyID) (*SettingsRecord, error)
	SaveSettings(ctx context.Context, agencyID shared.AgencyID, rec *SettingsRecord) error

	Partners(ctx context.Context, agencyID shared.AgencyID) (*PartnerBook, error)
	SavePartners(ctx context.Context, agencyID shared.AgencyID, book *PartnerBook) error

	Claims(ctx context.Context, agencyID shared.AgencyID) (*ClaimLedger, error)
	SaveClaims(ctx context.Context, agencyID shared.AgencyID, ledger *ClaimLedger) error

	Invoices(ctx context.Context, agencyID shared.AgencyID) ([]Invoice, error)
	SaveInvoices(ctx context.Context, agencyID shared.AgencyID, invoices []Invoice) error

	Expenses(ctx context.Context, agencyID shared.AgencyID) ([]Expense, error)
	SaveExpenses(ctx context.Context, agencyID shared.AgencyID, expenses []Expense) error

	Activity(ctx context.Context, agencyID shared.AgencyID) (*ActivityLog, error)
	SaveActivity(ctx context.Context, agencyID shared.AgencyID, log *ActivityLog) error
}
