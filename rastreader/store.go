package rastreader

import (
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"golang.org/x/net/context"
)

// ErrObjectNotFound marks a cell that does not exist in the archive.
// Sparse layers hit this constantly; callers treat it as an empty cell.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore fetches whole stored objects. Implementations must be safe
// for concurrent use.
type ObjectStore interface {
	Get(ctx context.Context, bucket, object string) ([]byte, error)
}

// GCSStore reads objects from Google Cloud Storage.
type GCSStore struct {
	client *storage.Client
}

func NewGCSStore(ctx context.Context) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) Get(ctx context.Context, bucket, object string) ([]byte, error) {
	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%s/%s: %w", bucket, object, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("opening %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s/%s: %w", bucket, object, err)
	}
	return data, nil
}
