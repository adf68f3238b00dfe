// Package cachestorage defines named, durable cache partitions that map a
// request identity to a stored response, and the storage that hosts them.
package cachestorage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/discochess/nestcache/internal/message"
)

var (
	// ErrNotFound is returned when no entry matches a request.
	ErrNotFound = errors.New("cachestorage: entry not found")

	// ErrNotCacheable is returned by Put for request/response pairs that
	// a partition refuses to store.
	ErrNotCacheable = errors.New("cachestorage: response not cacheable")

	// ErrInvalidName is returned for empty partition names and for the
	// relative path elements "." and "..".
	ErrInvalidName = errors.New("cachestorage: invalid partition name")
)

// Partition is a named key-value store of request -> response.
// Implementations are safe for concurrent use. Each Put and Match is atomic
// for a single entry; concurrent writes to one key resolve last-write-wins.
type Partition interface {
	// Name returns the partition name.
	Name() string

	// Match returns the response stored for req.
	// Returns ErrNotFound when nothing is stored or req is not a GET.
	Match(ctx context.Context, req *message.Request) (*message.Response, error)

	// Put stores resp under req, replacing any previous entry.
	// The first Put creates the partition.
	Put(ctx context.Context, req *message.Request, resp *message.Response) error

	// Delete removes the entry for req and reports whether one existed.
	Delete(ctx context.Context, req *message.Request) (bool, error)

	// Keys returns the keys of every stored entry.
	Keys(ctx context.Context) ([]string, error)
}

// Storage hosts the partitions of one interceptor installation.
type Storage interface {
	// Open returns a handle to the named partition. The partition itself
	// is created lazily on its first write.
	Open(ctx context.Context, name string) (Partition, error)

	// Has reports whether the named partition exists.
	Has(ctx context.Context, name string) (bool, error)

	// Delete removes the named partition and all its entries.
	Delete(ctx context.Context, name string) (bool, error)

	// Names lists existing partitions, in creation order where the backend
	// records it and in lexical order otherwise.
	Names(ctx context.Context) ([]string, error)

	// Close releases any resources held by the storage.
	Close() error
}

// CheckName validates a partition name.
func CheckName(name string) error {
	switch strings.TrimSpace(name) {
	case "":
		return ErrInvalidName
	case ".", "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// CheckPut reports whether the pair may be stored.
// Only GET requests are cacheable, partial content is refused and so is a
// response varying on every request header.
func CheckPut(req *message.Request, resp *message.Response) error {
	if !req.IsGet() {
		return fmt.Errorf("%w: method %s", ErrNotCacheable, req.Method)
	}
	if resp.Status == http.StatusPartialContent {
		return fmt.Errorf("%w: partial content", ErrNotCacheable)
	}
	for _, v := range resp.Header.Values("Vary") {
		for _, field := range strings.Split(v, ",") {
			if strings.TrimSpace(field) == "*" {
				return fmt.Errorf("%w: vary *", ErrNotCacheable)
			}
		}
	}
	return nil
}

// MatchAll looks req up in every partition of s, in the order returned by
// Names, and returns the first match.
func MatchAll(ctx context.Context, s Storage, req *message.Request) (*message.Response, error) {
	if !req.IsGet() {
		return nil, ErrNotFound
	}

	names, err := s.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing partitions: %w", err)
	}

	for _, name := range names {
		p, err := s.Open(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("opening partition %q: %w", name, err)
		}
		resp, err := p.Match(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("matching in partition %q: %w", name, err)
		}
	}

	return nil, ErrNotFound
}
