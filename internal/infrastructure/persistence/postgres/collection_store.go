package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/infrastructure/persistence/collection"
)

// CollectionStore implements collection.Store on the tenant_collections table.
type CollectionStore struct {
	db *DB
}

// NewCollectionStore creates a store over an open pool.
func NewCollectionStore(db *DB) *CollectionStore {
	return &CollectionStore{db: db}
}

const (
	fetchCollectionSQL = `
		SELECT data, revision FROM tenant_collections
		WHERE agency_id = $1 AND name = $2`

	insertCollectionSQL = `
		INSERT INTO tenant_collections (agency_id, name, data, revision, updated_at)
		VALUES ($1, $2, $3::jsonb, 1, NOW())
		ON CONFLICT (agency_id, name) DO NOTHING`

	updateCollectionSQL = `
		UPDATE tenant_collections
		SET data = $3::jsonb, revision = revision + 1, updated_at = NOW()
		WHERE agency_id = $1 AND name = $2 AND revision = $4
		RETURNING revision`

	currentRevisionSQL = `
		SELECT COALESCE(MAX(revision), 0) FROM tenant_collections
		WHERE agency_id = $1 AND name = $2`
)

// Fetch implements collection.Store.
func (s *CollectionStore) Fetch(ctx context.Context, agencyID shared.AgencyID, name collection.Name) (collection.Snapshot, error) {
	var (
		data     []byte
		revision int64
	)
	err := s.db.QueryRow(ctx, fetchCollectionSQL, string(agencyID), string(name)).Scan(&data, &revision)
	if err != nil {
		if isNoRows(err) {
			return collection.Snapshot{}, nil
		}
		return collection.Snapshot{}, shared.StorageFailure("postgres.Fetch", err)
	}
	return collection.Snapshot{Data: data, Revision: revision}, nil
}

// Save implements collection.Store.
// Revision 0 inserts, anything else is a conditional update.
func (s *CollectionStore) Save(ctx context.Context, agencyID shared.AgencyID, name collection.Name, data []byte, baseRevision int64) (int64, error) {
	var newRevision int64

	err := s.db.InTx(ctx, func(tx pgx.Tx) error {
		if baseRevision == 0 {
			tag, err := tx.Exec(ctx, insertCollectionSQL, string(agencyID), string(name), string(data))
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 1 {
				newRevision = 1
				return nil
			}
			return s.conflict(ctx, tx, agencyID, name, baseRevision)
		}

		err := tx.QueryRow(ctx, updateCollectionSQL, string(agencyID), string(name), string(data), baseRevision).Scan(&newRevision)
		if isNoRows(err) {
			return s.conflict(ctx, tx, agencyID, name, baseRevision)
		}
		return err
	})
	if err != nil {
		return 0, shared.StorageFailure("postgres.Save", err)
	}
	return newRevision, nil
}

// Ping implements collection.Pinger.
func (s *CollectionStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *CollectionStore) conflict(ctx context.Context, q queryer, agencyID shared.AgencyID, name collection.Name, base int64) error {
	var current int64
	if err := q.QueryRow(ctx, currentRevisionSQL, string(agencyID), string(name)).Scan(&current); err != nil {
		return err
	}
	return shared.ConcurrentModification(string(name), base, current)
}
