// Package memstorage provides an in-memory cache storage for testing and for
// short-lived interceptors.
package memstorage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/discochess/nestcache/internal/cachestorage"
	"github.com/discochess/nestcache/internal/message"
)

// Compile-time checks.
var (
	_ cachestorage.Storage   = (*Storage)(nil)
	_ cachestorage.Partition = (*Partition)(nil)
)

// Storage is an in-memory cache storage.
type Storage struct {
	mu         sync.RWMutex
	order      []string
	partitions map[string]map[string]*message.Response
	now        func() time.Time
}

// New creates a new in-memory storage.
func New() *Storage {
	return &Storage{
		partitions: make(map[string]map[string]*message.Response),
		now:        time.Now,
	}
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
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.partitions[name]
	return ok, nil
}

// Delete removes the named partition.
func (s *Storage) Delete(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.partitions[name]; !ok {
		return false, nil
	}
	delete(s.partitions, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// Names lists partitions in creation order.
func (s *Storage) Names(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}

// Close is a no-op for the memory storage.
func (s *Storage) Close() error {
	return nil
}

// Set stores a response directly (for test setup).
// The response is copied to prevent caller mutations from affecting the storage.
func (s *Storage) Set(partition string, req *message.Request, resp *message.Response) {
	s.put(partition, req.Key(), resp)
}

// Len returns the number of entries in the named partition.
func (s *Storage) Len(partition string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.partitions[partition])
}

func (s *Storage) put(partition, key string, resp *message.Response) {
	stored := resp.Clone()
	stored.StoredAt = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.partitions[partition]
	if !ok {
		entries = make(map[string]*message.Response)
		s.partitions[partition] = entries
		s.order = append(s.order, partition)
	}
	entries[key] = stored
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

// Match returns a copy of the stored response for req.
func (p *Partition) Match(ctx context.Context, req *message.Request) (*message.Response, error) {
	if !req.IsGet() {
		return nil, cachestorage.ErrNotFound
	}

	p.storage.mu.RLock()
	defer p.storage.mu.RUnlock()

	resp, ok := p.storage.partitions[p.name][req.Key()]
	if !ok {
		return nil, cachestorage.ErrNotFound
	}
	return resp.Clone(), nil
}

// Put stores a copy of resp under req.
func (p *Partition) Put(ctx context.Context, req *message.Request, resp *message.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cachestorage.CheckPut(req, resp); err != nil {
		return err
	}
	p.storage.put(p.name, req.Key(), resp)
	return nil
}

// Delete removes the entry for req.
func (p *Partition) Delete(ctx context.Context, req *message.Request) (bool, error) {
	p.storage.mu.Lock()
	defer p.storage.mu.Unlock()

	entries := p.storage.partitions[p.name]
	key := req.Key()
	if _, ok := entries[key]; !ok {
		return false, nil
	}
	delete(entries, key)
	return true, nil
}

// Keys returns the stored keys in lexical order.
func (p *Partition) Keys(ctx context.Context) ([]string, error) {
	p.storage.mu.RLock()
	defer p.storage.mu.RUnlock()

	entries := p.storage.partitions[p.name]
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
