// Package objectstore persists the merged dataset snapshot as a gzipped
// JSON object in a cloud storage bucket. The snapshot is the next run's
// merge baseline, not a serving artifact.
package objectstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/weatherforhumans/thermal-etl/internal/config"
	"github.com/weatherforhumans/thermal-etl/internal/domain"
)

// SnapshotStore implements pipeline.SnapshotStore over one bucket object.
type SnapshotStore struct {
	client *storage.Client
	bucket string
	object string
}

// New creates a snapshot store using application default credentials.
func New(ctx context.Context, cfg config.SnapshotConfig) (*SnapshotStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &SnapshotStore{client: client, bucket: cfg.Bucket, object: cfg.Object}, nil
}

// Load reads and decodes the snapshot. A missing object means no prior run
// has completed and returns (nil, nil).
func (s *SnapshotStore) Load(ctx context.Context) (*domain.Dataset, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s/%s: %w", s.bucket, s.object, err)
	}
	defer r.Close()

	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	defer gz.Close()

	var ds domain.Dataset
	if err := json.NewDecoder(gz).Decode(&ds); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &ds, nil
}

// Save overwrites the snapshot object with the given dataset.
func (s *SnapshotStore) Save(ctx context.Context, ds *domain.Dataset) error {
	w := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
	w.ContentType = "application/json"
	w.ContentEncoding = "gzip"

	gz := gzip.NewWriter(w)
	if err := json.NewEncoder(gz).Encode(ds); err != nil {
		_ = gz.Close()
		_ = w.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		_ = w.Close()
		return fmt.Errorf("compress snapshot: %w", err)
	}
	// Close commits the upload; errors before this point abandon the write.
	if err := w.Close(); err != nil {
		return fmt.Errorf("write snapshot %s/%s: %w", s.bucket, s.object, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *SnapshotStore) Close() error {
	return s.client.Close()
}
