package tieredstorage

import (
	"context"
	"time"

	"github.com/discochess/nestcache/internal/cachestorage"
	"github.com/discochess/nestcache/internal/message"
)

// Compile-time checks.
var (
	_ cachestorage.Storage   = (*Storage)(nil)
	_ cachestorage.Partition = (*Partition)(nil)
)

// Storage wraps a durable Storage with a memory tier.
type Storage struct {
	underlying cachestorage.Storage
	backend    Backend
	now        func() time.Time
}

// New creates a tiered storage over underlying.
func New(underlying cachestorage.Storage, backend Backend) *Storage {
	return &Storage{
		underlying: underlying,
		backend:    backend,
		now:        time.Now,
	}
}

// Open returns a tiered handle to the named partition.
func (s *Storage) Open(ctx context.Context, name string) (cachestorage.Partition, error) {
	p, err := s.underlying.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Partition{storage: s, underlying: p}, nil
}

// Has delegates to the durable storage.
func (s *Storage) Has(ctx context.Context, name string) (bool, error) {
	return s.underlying.Has(ctx, name)
}

// Delete removes the partition from the durable storage and empties the
// memory tier.
func (s *Storage) Delete(ctx context.Context, name string) (bool, error) {
	deleted, err := s.underlying.Delete(ctx, name)
	if err != nil {
		return false, err
	}
	if deleted {
		s.backend.Purge()
	}
	return deleted, nil
}

// Names delegates to the durable storage.
func (s *Storage) Names(ctx context.Context) ([]string, error) {
	return s.underlying.Names(ctx)
}

// Close closes the underlying storage.
func (s *Storage) Close() error {
	return s.underlying.Close()
}

// Stats returns memory tier statistics.
func (s *Storage) Stats() Stats {
	return s.backend.Stats()
}

// Underlying returns the durable storage.
func (s *Storage) Underlying() cachestorage.Storage {
	return s.underlying
}

// Partition is a tiered handle to one partition.
type Partition struct {
	storage    *Storage
	underlying cachestorage.Partition
}

// Name returns the partition name.
func (p *Partition) Name() string {
	return p.underlying.Name()
}

// Match checks the memory tier first, then the durable partition.
func (p *Partition) Match(ctx context.Context, req *message.Request) (*message.Response, error) {
	if !req.IsGet() {
		return nil, cachestorage.ErrNotFound
	}

	key := p.tierKey(req)
	if resp, ok := p.storage.backend.Get(key); ok {
		return resp.Clone(), nil
	}

	// Memory miss - read from the durable partition.
	resp, err := p.underlying.Match(ctx, req)
	if err != nil {
		return nil, err
	}

	p.storage.backend.Set(key, resp.Clone())
	return resp, nil
}

// Put writes through to the durable partition, then fills the memory tier.
func (p *Partition) Put(ctx context.Context, req *message.Request, resp *message.Response) error {
	if err := p.underlying.Put(ctx, req, resp); err != nil {
		return err
	}

	stored := resp.Clone()
	stored.StoredAt = p.storage.now()
	p.storage.backend.Set(p.tierKey(req), stored)
	return nil
}

// Delete removes the entry from both tiers.
func (p *Partition) Delete(ctx context.Context, req *message.Request) (bool, error) {
	p.storage.backend.Remove(p.tierKey(req))
	return p.underlying.Delete(ctx, req)
}

// Keys delegates to the durable partition.
func (p *Partition) Keys(ctx context.Context) ([]string, error) {
	return p.underlying.Keys(ctx)
}

// tierKey returns the memory tier key for req in this partition.
func (p *Partition) tierKey(req *message.Request) string {
	return p.underlying.Name() + "\x00" + req.Key()
}
