// Package collection defines the tenant-scoped collection store that every
// persistence backend implements. A collection is one JSON document per
// (agency, name) pair, written whole with an optimistic revision check.
package collection

import (
	"context"
	"fmt"

	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// Name identifies a collection inside an agency.
type Name string

const (
	Students Name = "students"
	Tasks    Name = "tasks"
	Partners Name = "partners"
	Invoices Name = "invoices"
	Expenses Name = "expenses"
	Claims   Name = "claims"
	Activity Name = "activity"
	Settings Name = "settings"
)

// Names returns every known collection.
func Names() []Name {
	return []Name{Students, Tasks, Partners, Invoices, Expenses, Claims, Activity, Settings}
}

// Key returns the physical key of a collection: sag_{collection}_{agencyId}.
func Key(agencyID shared.AgencyID, name Name) string {
	return fmt.Sprintf("sag_%s_%s", name, agencyID)
}

// Snapshot is a collection as read from the store.
// A missing collection is an empty snapshot with revision 0.
type Snapshot struct {
	Data     []byte
	Revision int64
}

// IsEmpty reports whether nothing has been stored yet.
func (s Snapshot) IsEmpty() bool {
	return s.Revision == 0 && len(s.Data) == 0
}

// Store is implemented by memory, postgres, firestore and the redis cache decorator.
type Store interface {
	// Fetch reads a collection.
	Fetch(ctx context.Context, agencyID shared.AgencyID, name Name) (Snapshot, error)

	// Save writes a collection if the stored revision equals baseRevision and
	// returns the new revision. A mismatch is shared.ErrConcurrentModification;
	// every other failure matches shared.ErrStorage.
	Save(ctx context.Context, agencyID shared.AgencyID, name Name, data []byte, baseRevision int64) (int64, error)
}

// Pinger is implemented by stores with a remote backend.
type Pinger interface {
	Ping(ctx context.Context) error
}
