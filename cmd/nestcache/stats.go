package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/nestcache/internal/config"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the cache partitions and their sizes",
	Long: `Display statistics about the cache storage including:
- Partitions, in creation order
- Number of entries per partition
- Total size on disk (disk backend only)`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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
	if len(names) == 0 {
		fmt.Println("No partitions found.")
		fmt.Println("Run 'nestcache install' to pre-warm the shell partition.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARTITION\tENTRIES\tROLE")
	var total int
	for _, name := range names {
		p, err := st.Open(ctx, name)
		if err != nil {
			return fmt.Errorf("opening partition %q: %w", name, err)
		}
		keys, err := p.Keys(ctx)
		if err != nil {
			return fmt.Errorf("listing partition %q: %w", name, err)
		}
		total += len(keys)
		fmt.Fprintf(w, "%s\t%d\t%s\n", name, len(keys), role(name))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nBackend:        %s\n", cfg.Backend)
	fmt.Printf("Entries:        %d\n", total)
	if cfg.Backend == config.BackendDisk {
		size, err := dirSize(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("measuring data directory: %w", err)
		}
		fmt.Printf("Data directory: %s\n", cfg.DataDir)
		fmt.Printf("Total size:     %s\n", formatBytes(size))
	}
	return nil
}

func role(name string) string {
	switch name {
	case cfg.ShellPartition:
		return "shell"
	case cfg.TilePartition:
		return "tiles"
	default:
		return "orphaned"
	}
}

func dirSize(root string) (int64, error) {
	var size int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		return nil
	})
	return size, err
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
