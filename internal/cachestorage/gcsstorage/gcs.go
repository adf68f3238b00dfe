// Package gcsstorage implements cache storage on Google Cloud Storage.
package gcsstorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/discochess/nestcache/internal/cachestorage/objectstore"
	"github.com/discochess/nestcache/internal/codec"
)

// Compile-time check that Bucket implements objectstore.Bucket.
var _ objectstore.Bucket = (*Bucket)(nil)

// Bucket is a GCS bucket holding cache objects.
type Bucket struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

// New creates a GCS-backed cache storage.
// The bucket must already exist. The codec handles entry compression.
func New(ctx context.Context, bucketName string, c codec.Codec, opts ...Option) (*objectstore.Storage, error) {
	b, err := NewBucket(ctx, bucketName, opts...)
	if err != nil {
		return nil, err
	}
	return objectstore.New(b, c), nil
}

// NewBucket creates a GCS bucket handle.
func NewBucket(ctx context.Context, bucketName string, opts ...Option) (*Bucket, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}

	b := &Bucket{
		client: client,
		bucket: client.Bucket(bucketName),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// Option configures a Bucket.
type Option func(*Bucket)

// WithPrefix sets a key prefix for all operations.
func WithPrefix(prefix string) Option {
	return func(b *Bucket) {
		b.prefix = normalizePrefix(prefix)
	}
}

// ParseURL parses "gs://bucket/prefix" into bucket and prefix.
func ParseURL(gcsURL string) (bucket, prefix string, err error) {
	if !strings.HasPrefix(gcsURL, "gs://") {
		return "", "", fmt.Errorf("invalid GCS path: must start with gs://")
	}

	path := strings.TrimPrefix(gcsURL, "gs://")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		return "", "", fmt.Errorf("invalid GCS path: missing bucket name")
	}

	bucket = parts[0]
	if len(parts) > 1 {
		prefix = normalizePrefix(parts[1])
	}

	return bucket, prefix, nil
}

// Read fetches an object.
func (b *Bucket) Read(ctx context.Context, key string) ([]byte, error) {
	reader, err := b.bucket.Object(b.objectKey(key)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, objectstore.ErrObjectNotFound
		}
		return nil, fmt.Errorf("creating reader: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, nil
}

// Write uploads an object. The object only becomes visible when the writer
// is closed successfully.
func (b *Bucket) Write(ctx context.Context, key string, data []byte) error {
	writer := b.bucket.Object(b.objectKey(key)).NewWriter(ctx)

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalizing %s: %w", key, err)
	}
	return nil
}

// Remove deletes an object.
func (b *Bucket) Remove(ctx context.Context, key string) error {
	err := b.bucket.Object(b.objectKey(key)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// List returns the keys of every object under prefix.
func (b *Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: b.objectKey(prefix)})

	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing objects: %w", err)
		}
		keys = append(keys, strings.TrimPrefix(attrs.Name, b.prefix))
	}
	return keys, nil
}

// Close releases resources.
func (b *Bucket) Close() error {
	return b.client.Close()
}

// objectKey returns the full object name for a bucket-relative key.
func (b *Bucket) objectKey(key string) string {
	return b.prefix + key
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return prefix
}
