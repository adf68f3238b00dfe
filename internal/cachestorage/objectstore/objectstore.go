// Package objectstore implements cache storage on top of a flat object
// bucket. Disk, S3 and GCS backends share this layout:
//
//	partitions.json                        partition names, creation order
//	partitions/<name>/<xxhash>.entry[.ext] one encoded entry per key
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/discochess/nestcache/internal/cachestorage"
	"github.com/discochess/nestcache/internal/cachestorage/entry"
	"github.com/discochess/nestcache/internal/codec"
	"github.com/discochess/nestcache/internal/message"
	"github.com/discochess/nestcache/internal/stats"
)

var (
	// ErrObjectNotFound is returned by a Bucket when an object does not exist.
	ErrObjectNotFound = errors.New("objectstore: object not found")

	// ErrCorruptEntry is returned when a stored object cannot be decoded.
	ErrCorruptEntry = errors.New("objectstore: corrupt entry")
)

// Bucket is a flat namespace of objects addressed by slash-separated keys.
type Bucket interface {
	// Read returns the content of an object.
	// Returns ErrObjectNotFound if the object does not exist.
	Read(ctx context.Context, key string) ([]byte, error)

	// Write replaces the content of an object atomically.
	Write(ctx context.Context, key string, data []byte) error

	// Remove deletes an object. Removing a missing object is not an error.
	Remove(ctx context.Context, key string) error

	// List returns the keys of all objects under prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases any resources held by the bucket.
	Close() error
}

const (
	indexKey       = "partitions.json"
	partitionsDir  = "partitions/"
	entryExtension = "entry"
)

// Compile-time checks.
var (
	_ cachestorage.Storage   = (*Storage)(nil)
	_ cachestorage.Partition = (*Partition)(nil)
)

// Storage is a cache storage backed by a Bucket.
type Storage struct {
	bucket    Bucket
	codec     codec.Codec
	logger    *zap.Logger
	collector stats.Collector
	now       func() time.Time

	mu     sync.Mutex
	index  []string
	loaded bool
}

// Option configures a Storage.
type Option func(*Storage)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Storage) {
		s.logger = l
	}
}

// WithStats sets the collector that counts corrupt entries.
func WithStats(c stats.Collector) Option {
	return func(s *Storage) {
		if c != nil {
			s.collector = c
		}
	}
}

// New creates a storage on top of bucket. Entries are compressed with c.
func New(bucket Bucket, c codec.Codec, opts ...Option) *Storage {
	s := &Storage{
		bucket:    bucket,
		codec:     c,
		logger:    zap.NewNop(),
		collector: stats.NewNoop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bucket returns the underlying bucket.
func (s *Storage) Bucket() Bucket {
	return s.bucket
}

// Open returns a handle to the named partition.
func (s *Storage) Open(ctx context.Context, name string) (cachestorage.Partition, error) {
	if err := cachestorage.CheckName(name); err != nil {
		return nil, err
	}
	return &Partition{storage: s, name: name}, nil
}

// Has reports whether the named partition exists.
func (s *Storage) Has(ctx context.Context, name string) (bool, error) {
	names, err := s.Names(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// Names lists partitions in creation order.
//
// The index is cached after the first read. Writers re-read it before
// rewriting, so processes sharing a bucket do not drop each other's
// partitions, but a reader may not see a partition another process created
// after the cache was filled.
func (s *Storage) Names(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadIndexLocked(ctx); err != nil {
		return nil, err
	}
	return append([]string(nil), s.index...), nil
}

// Delete removes the named partition and every entry in it.
func (s *Storage) Delete(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reloadIndexLocked(ctx); err != nil {
		return false, err
	}

	pos := -1
	for i, n := range s.index {
		if n == name {
			pos = i
			break
		}
	}
	if pos < 0 {
		return false, nil
	}

	keys, err := s.bucket.List(ctx, partitionPrefix(name))
	if err != nil {
		return false, fmt.Errorf("listing partition %q: %w", name, err)
	}
	for _, key := range keys {
		if err := s.bucket.Remove(ctx, key); err != nil {
			return false, fmt.Errorf("removing %s: %w", key, err)
		}
	}

	next := make([]string, 0, len(s.index)-1)
	next = append(next, s.index[:pos]...)
	next = append(next, s.index[pos+1:]...)
	if err := s.writeIndexLocked(ctx, next); err != nil {
		return false, err
	}

	s.logger.Debug("partition deleted", zap.String("partition", name), zap.Int("entries", len(keys)))
	return true, nil
}

// Close closes the underlying bucket.
func (s *Storage) Close() error {
	return s.bucket.Close()
}

// ensurePartition records name in the index if it is not there yet.
func (s *Storage) ensurePartition(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadIndexLocked(ctx); err != nil {
		return err
	}
	if slices.Contains(s.index, name) {
		return nil
	}

	// Another process may have rewritten the index since it was cached.
	if err := s.reloadIndexLocked(ctx); err != nil {
		return err
	}
	if slices.Contains(s.index, name) {
		return nil
	}

	next := append(append([]string(nil), s.index...), name)
	if err := s.writeIndexLocked(ctx, next); err != nil {
		return err
	}
	s.logger.Debug("partition created", zap.String("partition", name))
	return nil
}

func (s *Storage) reloadIndexLocked(ctx context.Context) error {
	s.loaded = false
	return s.loadIndexLocked(ctx)
}

func (s *Storage) loadIndexLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	data, err := s.bucket.Read(ctx, indexKey)
	if errors.Is(err, ErrObjectNotFound) {
		s.index = nil
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading partition index: %w", err)
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("parsing partition index: %w", err)
	}
	s.index = names
	s.loaded = true
	return nil
}

func (s *Storage) writeIndexLocked(ctx context.Context, names []string) error {
	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling partition index: %w", err)
	}
	if err := s.bucket.Write(ctx, indexKey, data); err != nil {
		return fmt.Errorf("writing partition index: %w", err)
	}
	s.index = names
	return nil
}

// EntryKey returns the object key of the entry for key in partition.
func (s *Storage) EntryKey(partition, key string) string {
	name := fmt.Sprintf("%016x.%s", xxhash.Sum64String(key), entryExtension)
	if ext := s.codec.Extension(); ext != "" {
		name += "." + ext
	}
	return partitionPrefix(partition) + name
}

// partitionPrefix returns the object prefix of a partition.
func partitionPrefix(name string) string {
	return partitionsDir + url.PathEscape(name) + "/"
}

// Partition is a handle to one partition of a Storage.
type Partition struct {
	storage *Storage
	name    string
}

// Name returns the partition name.
func (p *Partition) Name() string {
	return p.name
}

// Match reads and decodes the entry for req.
func (p *Partition) Match(ctx context.Context, req *message.Request) (*message.Response, error) {
	if !req.IsGet() {
		return nil, cachestorage.ErrNotFound
	}

	key := req.Key()
	e, err := p.read(ctx, p.storage.EntryKey(p.name, key))
	if errors.Is(err, ErrCorruptEntry) {
		// A miss lets the caller refetch and overwrite the object.
		p.storage.corrupt(p.name, key, err)
		return nil, cachestorage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	// Hash collision: a different URL owns this object.
	if e.Key != key {
		return nil, cachestorage.ErrNotFound
	}
	return e.Response, nil
}

// Put encodes resp and writes it under req.
func (p *Partition) Put(ctx context.Context, req *message.Request, resp *message.Response) error {
	if err := cachestorage.CheckPut(req, resp); err != nil {
		return err
	}

	stored := resp.Clone()
	stored.StoredAt = p.storage.now()

	var buf bytes.Buffer
	key := req.Key()
	if err := entry.Encode(&buf, p.storage.codec, key, stored); err != nil {
		return fmt.Errorf("encoding entry: %w", err)
	}

	if err := p.storage.ensurePartition(ctx, p.name); err != nil {
		return err
	}
	if err := p.storage.bucket.Write(ctx, p.storage.EntryKey(p.name, key), buf.Bytes()); err != nil {
		return fmt.Errorf("writing entry: %w", err)
	}
	return nil
}

// Delete removes the entry for req.
func (p *Partition) Delete(ctx context.Context, req *message.Request) (bool, error) {
	key := req.Key()
	objKey := p.storage.EntryKey(p.name, key)

	e, err := p.read(ctx, objKey)
	if errors.Is(err, cachestorage.ErrNotFound) {
		return false, nil
	}
	if err != nil && !errors.Is(err, ErrCorruptEntry) {
		return false, err
	}
	if e != nil && e.Key != key {
		return false, nil
	}

	if err := p.storage.bucket.Remove(ctx, objKey); err != nil {
		return false, fmt.Errorf("removing entry: %w", err)
	}
	return true, nil
}

// Keys decodes every entry of the partition and returns their keys.
func (p *Partition) Keys(ctx context.Context) ([]string, error) {
	objKeys, err := p.storage.bucket.List(ctx, partitionPrefix(p.name))
	if err != nil {
		return nil, fmt.Errorf("listing partition %q: %w", p.name, err)
	}

	keys := make([]string, 0, len(objKeys))
	for _, objKey := range objKeys {
		if !strings.Contains(objKey, "."+entryExtension) {
			continue
		}
		e, err := p.read(ctx, objKey)
		if errors.Is(err, cachestorage.ErrNotFound) {
			continue
		}
		if errors.Is(err, ErrCorruptEntry) {
			p.storage.corrupt(p.name, objKey, err)
			continue
		}
		if err != nil {
			return nil, err
		}
		keys = append(keys, e.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Entries decodes every entry of the partition.
// Entries that fail to decode are reported through fn with a nil entry.
func (p *Partition) Entries(ctx context.Context, fn func(objKey string, e *entry.Entry, err error) error) error {
	objKeys, err := p.storage.bucket.List(ctx, partitionPrefix(p.name))
	if err != nil {
		return fmt.Errorf("listing partition %q: %w", p.name, err)
	}
	for _, objKey := range objKeys {
		e, err := p.read(ctx, objKey)
		if err := fn(objKey, e, err); err != nil {
			return err
		}
	}
	return nil
}

func (p *Partition) read(ctx context.Context, objKey string) (*entry.Entry, error) {
	data, err := p.storage.bucket.Read(ctx, objKey)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, cachestorage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading entry: %w", err)
	}

	e, err := entry.Decode(bytes.NewReader(data), p.storage.codec)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrCorruptEntry, objKey, err)
	}
	return e, nil
}

// corrupt records an entry that could not be decoded.
func (s *Storage) corrupt(partition, key string, err error) {
	s.collector.IncCounter(stats.MetricCorruptEntries, 1)
	s.logger.Warn("corrupt cache entry",
		zap.String("partition", partition),
		zap.String("key", key),
		zap.Error(err))
}
