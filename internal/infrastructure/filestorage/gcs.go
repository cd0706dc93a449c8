package filestorage

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/sagenius/agency-crm/internal/domain/shared"
)

// GCSBackend stores objects in a Google Cloud Storage bucket. Writes use a
// DoesNotExist precondition so an existing object is never replaced.
type GCSBackend struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

// NewGCSBackend creates a client with application default credentials.
func NewGCSBackend(ctx context.Context, bucket string) (*GCSBackend, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("filestorage: gcs client: %w", err)
	}
	return &GCSBackend{client: client, bucket: client.Bucket(bucket), name: bucket}, nil
}

// Put implements Backend.
func (b *GCSBackend) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	w := b.bucket.Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", mapGCSError(err)
	}
	if err := w.Close(); err != nil {
		return "", mapGCSError(err)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.name, key), nil
}

// Delete implements Backend. Missing objects are not an error.
func (b *GCSBackend) Delete(ctx context.Context, key string) error {
	err := b.bucket.Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return shared.StorageFailure("filestorage.Delete", err)
	}
	return nil
}

// Close releases the client.
func (b *GCSBackend) Close() error {
	return b.client.Close()
}

func mapGCSError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return ErrObjectExists
	}
	return shared.StorageFailure("filestorage.Put", err)
}
