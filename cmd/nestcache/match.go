package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/nestcache/internal/cachestorage"
	"github.com/discochess/nestcache/internal/message"
)

var matchCmd = &cobra.Command{
	Use:   "match [URL]",
	Short: "Look up a URL across all partitions",
	Long: `Look up the cached response for an absolute URL the same way the shell
strategy does: partitions are searched in creation order and the first match
wins. The network is never contacted.

Examples:
  nestcache match "https://nest.example.org/index.html"
  nestcache match --json "https://api.maptiler.com/maps/topo-v4/12/2048/1361.png"`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

var (
	matchJSON bool
	matchBody bool
)

func init() {
	matchCmd.Flags().BoolVar(&matchJSON, "json", false, "output result as JSON")
	matchCmd.Flags().BoolVar(&matchBody, "body", false, "write the cached body to stdout")
	rootCmd.AddCommand(matchCmd)
}

// matchResult is the --json output.
type matchResult struct {
	URL        string              `json:"url"`
	Partition  string              `json:"partition"`
	Status     int                 `json:"status"`
	StatusText string              `json:"status_text,omitempty"`
	Header     map[string][]string `json:"header,omitempty"`
	BodyBytes  int                 `json:"body_bytes"`
	StoredAt   time.Time           `json:"stored_at"`
}

func runMatch(cmd *cobra.Command, args []string) error {
	req, err := message.NewRequest("GET", args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, err := openStorage(ctx, zap.NewNop())
	if err != nil {
		return err
	}
	defer st.Close()

	partition, resp, err := matchFirst(ctx, st, req)
	if errors.Is(err, cachestorage.ErrNotFound) {
		return fmt.Errorf("%s is not cached", req.Key())
	}
	if err != nil {
		return err
	}

	switch {
	case matchBody:
		_, err := os.Stdout.Write(resp.Body)
		return err
	case matchJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(matchResult{
			URL:        req.Key(),
			Partition:  partition,
			Status:     resp.Status,
			StatusText: resp.StatusText,
			Header:     resp.Header,
			BodyBytes:  len(resp.Body),
			StoredAt:   resp.StoredAt,
		})
	default:
		fmt.Printf("URL:       %s\n", req.Key())
		fmt.Printf("Partition: %s\n", partition)
		fmt.Printf("Status:    %d %s\n", resp.Status, resp.StatusText)
		fmt.Printf("Body:      %s\n", formatBytes(int64(len(resp.Body))))
		fmt.Printf("Stored:    %s\n", resp.StoredAt.Format(time.RFC3339))
		return nil
	}
}

// matchFirst mirrors cachestorage.MatchAll and also reports which partition
// answered.
func matchFirst(ctx context.Context, st cachestorage.Storage, req *message.Request) (string, *message.Response, error) {
	names, err := st.Names(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("listing partitions: %w", err)
	}
	for _, name := range names {
		p, err := st.Open(ctx, name)
		if err != nil {
			return "", nil, fmt.Errorf("opening partition %q: %w", name, err)
		}
		resp, err := p.Match(ctx, req)
		if err == nil {
			return name, resp, nil
		}
		if !errors.Is(err, cachestorage.ErrNotFound) {
			return "", nil, fmt.Errorf("matching in partition %q: %w", name, err)
		}
	}
	return "", nil, cachestorage.ErrNotFound
}
