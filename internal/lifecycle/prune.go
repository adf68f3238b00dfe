package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/discochess/nestcache/internal/cachestorage"
)

// Prune deletes every partition of s whose name starts with prefix, except
// keep. With dryRun set nothing is deleted. It returns the names that were
// (or would be) deleted, including those deleted before an error.
func Prune(ctx context.Context, s cachestorage.Storage, prefix, keep string, dryRun bool) ([]string, error) {
	names, err := s.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing partitions: %w", err)
	}

	var pruned []string
	for _, name := range names {
		if name == keep || !strings.HasPrefix(name, prefix) {
			continue
		}
		if !dryRun {
			if _, err := s.Delete(ctx, name); err != nil {
				return pruned, fmt.Errorf("deleting partition %q: %w", name, err)
			}
		}
		pruned = append(pruned, name)
	}
	return pruned, nil
}
