package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/nestcache/internal/cachestorage"
	"github.com/discochess/nestcache/internal/cachestorage/entry"
	"github.com/discochess/nestcache/internal/message"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the integrity of every cached entry",
	Long: `Verify that every entry in every partition can be read back.

This command checks:
- Each entry can be decompressed and decoded
- Each entry is stored under the key it was written for
- The shell partition holds every manifest resource (with --manifest-check)`,
	RunE: runVerify,
}

var (
	verifyManifest bool
)

func init() {
	verifyCmd.Flags().BoolVar(&verifyManifest, "manifest-check", false, "also check the shell partition holds every manifest resource")
	rootCmd.AddCommand(verifyCmd)
}

// entryWalker is implemented by object-backed partitions that can decode
// every stored object, including ones whose key is unreadable.
type entryWalker interface {
	Entries(ctx context.Context, fn func(objKey string, e *entry.Entry, err error) error) error
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	st, err := openStorage(ctx, zap.NewNop())
	if err != nil {
		return err
	}
	defer st.Close()

	names, err := st.Names(ctx)
	if err != nil {
		return fmt.Errorf("listing partitions: %w", err)
	}

	var checked, errCount int
	for _, name := range names {
		p, err := st.Open(ctx, name)
		if err != nil {
			return fmt.Errorf("opening partition %q: %w", name, err)
		}
		n, bad, err := verifyPartition(ctx, p)
		if err != nil {
			return fmt.Errorf("verifying partition %q: %w", name, err)
		}
		checked += n
		errCount += bad
		if verbose {
			fmt.Printf("  %s: %d entries, %d errors\n", name, n, bad)
		}
	}

	if verifyManifest {
		missing, err := missingManifestEntries(ctx, st)
		if err != nil {
			return err
		}
		for _, u := range missing {
			fmt.Printf("  MISSING: %s\n", u)
		}
		errCount += len(missing)
	}

	if errCount > 0 {
		return fmt.Errorf("verification failed: %d errors in %d entries", errCount, checked)
	}
	fmt.Printf("Verified %d entries in %d partitions.\n", checked, len(names))
	return nil
}

func verifyPartition(ctx context.Context, p cachestorage.Partition) (checked, bad int, err error) {
	if w, ok := p.(entryWalker); ok {
		err := w.Entries(ctx, func(objKey string, e *entry.Entry, err error) error {
			checked++
			if err != nil {
				fmt.Printf("  ERROR: %s: %v\n", objKey, err)
				bad++
			}
			return nil
		})
		return checked, bad, err
	}

	keys, err := p.Keys(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, key := range keys {
		checked++
		req, err := message.NewRequest("GET", key)
		if err != nil {
			fmt.Printf("  ERROR: %s: %v\n", key, err)
			bad++
			continue
		}
		if _, err := p.Match(ctx, req); err != nil {
			fmt.Printf("  ERROR: %s: %v\n", key, err)
			bad++
		}
	}
	return checked, bad, nil
}

func missingManifestEntries(ctx context.Context, st cachestorage.Storage) ([]string, error) {
	m, err := loadManifest()
	if err != nil {
		return nil, err
	}
	origin, err := parseOrigin()
	if err != nil {
		return nil, err
	}
	reqs, err := m.Resolve(origin)
	if err != nil {
		return nil, fmt.Errorf("resolving manifest: %w", err)
	}

	p, err := st.Open(ctx, cfg.ShellPartition)
	if err != nil {
		return nil, fmt.Errorf("opening shell partition: %w", err)
	}
	var missing []string
	for _, req := range reqs {
		_, err := p.Match(ctx, req)
		if errors.Is(err, cachestorage.ErrNotFound) {
			missing = append(missing, req.Key())
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("matching %s: %w", req.Key(), err)
		}
	}
	return missing, nil
}
