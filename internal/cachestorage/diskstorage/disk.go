// Package diskstorage implements durable cache storage on the local
// filesystem.
package diskstorage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/discochess/nestcache/internal/cachestorage/objectstore"
	"github.com/discochess/nestcache/internal/codec"
)

// Compile-time check that Bucket implements objectstore.Bucket.
var _ objectstore.Bucket = (*Bucket)(nil)

const tempPrefix = ".tmp-"

// Bucket stores objects as files below a root directory.
type Bucket struct {
	root string
}

// New creates a disk-backed cache storage rooted at the given directory.
// The directory is created if it does not exist. The codec handles entry
// compression.
func New(root string, c codec.Codec, opts ...objectstore.Option) (*objectstore.Storage, error) {
	b, err := NewBucket(root)
	if err != nil {
		return nil, err
	}
	return objectstore.New(b, c, opts...), nil
}

// NewBucket creates a bucket rooted at the given directory.
func NewBucket(root string) (*Bucket, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating root directory: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	return &Bucket{root: filepath.Clean(root)}, nil
}

// Root returns the root directory.
func (b *Bucket) Root() string {
	return b.root
}

// Read reads an object file.
func (b *Bucket) Read(ctx context.Context, key string) ([]byte, error) {
	// Check for cancellation before starting I/O.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(b.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, objectstore.ErrObjectNotFound
		}
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, nil
}

// Write writes data to a temporary file and renames it into place, so
// readers never observe a partially written object.
func (b *Bucket) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dst := b.path(key)
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

// Remove deletes an object file.
func (b *Bucket) Remove(ctx context.Context, key string) error {
	if err := os.Remove(b.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", key, err)
	}
	return nil
}

// List walks the directory holding prefix and returns matching keys.
func (b *Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	start := b.root
	if dir := path.Dir(prefix); dir != "." {
		start = b.path(dir)
	}

	var keys []string
	err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		rel, err := filepath.Rel(b.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", prefix, err)
	}

	sort.Strings(keys)
	return keys, nil
}

// Close releases any resources held by the bucket.
func (b *Bucket) Close() error {
	return nil
}

// path returns the filesystem path for an object key.
func (b *Bucket) path(key string) string {
	return filepath.Join(b.root, filepath.FromSlash(key))
}
