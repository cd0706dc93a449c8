// Package firestore implements collection.Store on Cloud Firestore.
// Documents live at agencies/{agencyId}/collections/{name}.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/infrastructure/persistence/collection"
)

const (
	agenciesCollection = "agencies"
	tenantCollections  = "collections"
)

// collectionDoc is the stored document shape.
type collectionDoc struct {
	Key       string    `firestore:"key"`
	Data      string    `firestore:"data"`
	Revision  int64     `firestore:"revision"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// Store implements collection.Store.
type Store struct {
	client *firestore.Client
}

// NewClient creates a Firestore client for the given project.
func NewClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firestore: project id must be provided")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore: failed to create client: %w", err)
	}
	return client, nil
}

// NewStore wraps an existing client.
func NewStore(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) ref(agencyID shared.AgencyID, name collection.Name) *firestore.DocumentRef {
	return s.client.Collection(agenciesCollection).Doc(string(agencyID)).
		Collection(tenantCollections).Doc(string(name))
}

// Fetch implements collection.Store.
func (s *Store) Fetch(ctx context.Context, agencyID shared.AgencyID, name collection.Name) (collection.Snapshot, error) {
	snap, err := s.ref(agencyID, name).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return collection.Snapshot{}, nil
		}
		return collection.Snapshot{}, shared.StorageFailure("firestore.Fetch", err)
	}

	var doc collectionDoc
	if err := snap.DataTo(&doc); err != nil {
		return collection.Snapshot{}, shared.StorageFailure("firestore.Fetch", err)
	}
	return collection.Snapshot{Data: []byte(doc.Data), Revision: doc.Revision}, nil
}

// Save implements collection.Store. The revision check and the write run
// in one Firestore transaction.
func (s *Store) Save(ctx context.Context, agencyID shared.AgencyID, name collection.Name, data []byte, baseRevision int64) (int64, error) {
	ref := s.ref(agencyID, name)
	var newRevision int64

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var current int64

		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			var doc collectionDoc
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			current = doc.Revision
		case status.Code(err) == codes.NotFound:
			current = 0
		default:
			return err
		}

		if current != baseRevision {
			return shared.ConcurrentModification(string(name), baseRevision, current)
		}

		newRevision = current + 1
		return tx.Set(ref, collectionDoc{
			Key:       collection.Key(agencyID, name),
			Data:      string(data),
			Revision:  newRevision,
			UpdatedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return 0, shared.StorageFailure("firestore.Save", err)
	}
	return newRevision, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping reads a sentinel document. NotFound still proves the project is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.Collection(agenciesCollection).Doc("_health").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("firestore: ping: %w", err)
	}
	return nil
}
