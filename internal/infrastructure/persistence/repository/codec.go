// Package repository maps domain aggregates onto tenant collections.
// Each repository reads a whole collection, decodes it into typed values
// and writes it back with the revision it was read at.
package repository

import (
	"context"
	"encoding/json"

	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/infrastructure/persistence/collection"
)

// fetchList decodes a JSON array collection. A missing collection is an empty list.
func fetchList[T any](ctx context.Context, store collection.Store, agencyID shared.AgencyID, name collection.Name) ([]T, int64, error) {
	if !agencyID.IsValid() {
		return nil, 0, shared.ErrAgencyRequired
	}

	snap, err := store.Fetch(ctx, agencyID, name)
	if err != nil {
		return nil, 0, err
	}

	items := []T{}
	if len(snap.Data) == 0 {
		return items, snap.Revision, nil
	}
	if err := json.Unmarshal(snap.Data, &items); err != nil {
		return nil, 0, shared.WrapError("repository", "decode "+string(name), shared.ErrStorage, "stored collection is not valid", err)
	}
	if items == nil {
		items = []T{}
	}
	return items, snap.Revision, nil
}

// saveValue encodes v and saves it at baseRevision.
func saveValue(ctx context.Context, store collection.Store, agencyID shared.AgencyID, name collection.Name, v interface{}, baseRevision int64) (int64, error) {
	if !agencyID.IsValid() {
		return 0, shared.ErrAgencyRequired
	}

	data, err := json.Marshal(v)
	if err != nil {
		return 0, shared.WrapError("repository", "encode "+string(name), shared.ErrStorage, "collection cannot be encoded", err)
	}
	return store.Save(ctx, agencyID, name, data, baseRevision)
}
