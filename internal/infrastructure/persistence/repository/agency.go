package repository

import (
	"context"
	"encoding/json"

	"github.com/sagenius/agency-crm/internal/domain/agency"
	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/infrastructure/persistence/collection"
)

// AgencyRepository implements agency.Repository.
type AgencyRepository struct {
	store collection.Store
}

// NewAgencyRepository creates a repository over store.
func NewAgencyRepository(store collection.Store) *AgencyRepository {
	return &AgencyRepository{store: store}
}

// Settings returns stored settings merged with defaults.
func (r *AgencyRepository) Settings(ctx context.Context, agencyID shared.AgencyID) (*agency.SettingsRecord, error) {
	if !agencyID.IsValid() {
		return nil, shared.ErrAgencyRequired
	}

	snap, err := r.store.Fetch(ctx, agencyID, collection.Settings)
	if err != nil {
		return nil, err
	}
	if len(snap.Data) == 0 {
		return &agency.SettingsRecord{Settings: agency.DefaultSettings(), Revision: snap.Revision}, nil
	}

	var s agency.Settings
	if err := json.Unmarshal(snap.Data, &s); err != nil {
		return nil, shared.WrapError("repository", "decode settings", shared.ErrStorage, "stored settings are not valid", err)
	}
	return &agency.SettingsRecord{Settings: s.WithDefaults(), Revision: snap.Revision}, nil
}

// SaveSettings implements agency.Repository.
func (r *AgencyRepository) SaveSettings(ctx context.Context, agencyID shared.AgencyID, rec *agency.SettingsRecord) error {
	rev, err := saveValue(ctx, r.store, agencyID, collection.Settings, rec.Settings, rec.Revision)
	if err != nil {
		return err
	}
	rec.Revision = rev
	return nil
}

// Partners returns the stored partners, or the default catalog when none are stored.
func (r *AgencyRepository) Partners(ctx context.Context, agencyID shared.AgencyID) (*agency.PartnerBook, error) {
	partners, rev, err := fetchList[agency.Partner](ctx, r.store, agencyID, collection.Partners)
	if err != nil {
		return nil, err
	}
	if rev == 0 {
		partners = agency.DefaultPartners()
	}
	return &agency.PartnerBook{Partners: partners, Revision: rev}, nil
}

// SavePartners implements agency.Repository.
func (r *AgencyRepository) SavePartners(ctx context.Context, agencyID shared.AgencyID, book *agency.PartnerBook) error {
	rev, err := saveValue(ctx, r.store, agencyID, collection.Partners, nonNil(book.Partners), book.Revision)
	if err != nil {
		return err
	}
	book.Revision = rev
	return nil
}

// Claims implements agency.Repository.
func (r *AgencyRepository) Claims(ctx context.Context, agencyID shared.AgencyID) (*agency.ClaimLedger, error) {
	claims, rev, err := fetchList[*agency.CommissionClaim](ctx, r.store, agencyID, collection.Claims)
	if err != nil {
		return nil, err
	}
	return &agency.ClaimLedger{Claims: claims, Revision: rev}, nil
}

// SaveClaims implements agency.Repository.
func (r *AgencyRepository) SaveClaims(ctx context.Context, agencyID shared.AgencyID, ledger *agency.ClaimLedger) error {
	rev, err := saveValue(ctx, r.store, agencyID, collection.Claims, nonNil(ledger.Claims), ledger.Revision)
	if err != nil {
		return err
	}
	ledger.Revision = rev
	return nil
}

// Invoices implements agency.Repository.
func (r *AgencyRepository) Invoices(ctx context.Context, agencyID shared.AgencyID) ([]agency.Invoice, error) {
	invoices, _, err := fetchList[agency.Invoice](ctx, r.store, agencyID, collection.Invoices)
	return invoices, err
}

// SaveInvoices replaces the invoice collection. Used by seeding only.
func (r *AgencyRepository) SaveInvoices(ctx context.Context, agencyID shared.AgencyID, invoices []agency.Invoice) error {
	return r.replace(ctx, agencyID, collection.Invoices, nonNil(invoices))
}

// Expenses implements agency.Repository.
func (r *AgencyRepository) Expenses(ctx context.Context, agencyID shared.AgencyID) ([]agency.Expense, error) {
	expenses, _, err := fetchList[agency.Expense](ctx, r.store, agencyID, collection.Expenses)
	return expenses, err
}

// SaveExpenses replaces the expense collection. Used by seeding only.
func (r *AgencyRepository) SaveExpenses(ctx context.Context, agencyID shared.AgencyID, expenses []agency.Expense) error {
	return r.replace(ctx, agencyID, collection.Expenses, nonNil(expenses))
}

// Activity implements agency.Repository.
func (r *AgencyRepository) Activity(ctx context.Context, agencyID shared.AgencyID) (*agency.ActivityLog, error) {
	entries, rev, err := fetchList[agency.ActivityEntry](ctx, r.store, agencyID, collection.Activity)
	if err != nil {
		return nil, err
	}
	return &agency.ActivityLog{Entries: entries, Revision: rev}, nil
}

// SaveActivity implements agency.Repository.
func (r *AgencyRepository) SaveActivity(ctx context.Context, agencyID shared.AgencyID, log *agency.ActivityLog) error {
	rev, err := saveValue(ctx, r.store, agencyID, collection.Activity, nonNil(log.Entries), log.Revision)
	if err != nil {
		return err
	}
	log.Revision = rev
	return nil
}

func (r *AgencyRepository) replace(ctx context.Context, agencyID shared.AgencyID, name collection.Name, v interface{}) error {
	snap, err := r.store.Fetch(ctx, agencyID, name)
	if err != nil {
		return err
	}
	_, err = saveValue(ctx, r.store, agencyID, name, v, snap.Revision)
	return err
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
