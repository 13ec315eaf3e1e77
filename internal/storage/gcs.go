package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

const gcsPrefix = "digests/"

// GCSStore keeps digests as objects under digests/ in a Cloud Storage bucket.
type GCSStore struct {
	client     *storage.Client
	bucketName string
	prefix     string
}

// NewGCSStore creates a Cloud Storage backed store. Credentials come from the
// environment; STORAGE_EMULATOR_HOST is honored by the client.
func NewGCSStore(ctx context.Context, bucketName string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	return &GCSStore{
		client:     client,
		bucketName: bucketName,
		prefix:     gcsPrefix,
	}, nil
}

// Save uploads body as a markdown object.
func (s *GCSStore) Save(ctx context.Context, name string, body []byte) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	objectName := s.prefix + name
	writer := s.client.Bucket(s.bucketName).Object(objectName).NewWriter(ctx)
	writer.ContentType = "text/markdown; charset=utf-8"

	if _, err := writer.Write(body); err != nil {
		writer.Close()
		return "", fmt.Errorf("writing object data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("closing object writer: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucketName, objectName), nil
}

// Get downloads a saved digest.
func (s *GCSStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	reader, err := s.client.Bucket(s.bucketName).Object(s.prefix + name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("opening object reader: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading object data: %w", err)
	}
	return data, nil
}

// List returns digest names under the prefix, newest first.
func (s *GCSStore) List(ctx context.Context) ([]string, error) {
	it := s.client.Bucket(s.bucketName).Objects(ctx, &storage.Query{Prefix: s.prefix})

	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing objects: %w", err)
		}
		names = append(names, path.Base(attrs.Name))
	}

	sortNewestFirst(names)
	return names, nil
}

// Close closes the Cloud Storage client
func (s *GCSStore) Close() error {
	return s.client.Close()
}
