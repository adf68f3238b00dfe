package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/nestcache/internal/lifecycle"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete stale shell partitions",
	Long: `Delete every partition whose name starts with --prefix, except the current
shell partition. Old shell partitions are otherwise kept forever and still
searched by the shell strategy.

Examples:
  # Show what would be deleted
  nestcache prune --dry-run

  # Delete shell-v1, shell-v0, ... but keep shell-v2 and tile-cache
  nestcache prune --prefix shell-`,
	RunE: runPrune,
}

var (
	prunePrefix string
	pruneDryRun bool
)

func init() {
	pruneCmd.Flags().StringVar(&prunePrefix, "prefix", "shell-", "delete partitions starting with this prefix")
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "list partitions without deleting them")
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	if prunePrefix == "" {
		return fmt.Errorf("--prefix must not be empty")
	}

	ctx := context.Background()
	st, err := openStorage(ctx, zap.NewNop())
	if err != nil {
		return err
	}
	defer st.Close()

	pruned, err := lifecycle.Prune(ctx, st, prunePrefix, cfg.ShellPartition, pruneDryRun)
	for _, name := range pruned {
		if pruneDryRun {
			fmt.Printf("would delete %s\n", name)
		} else {
			fmt.Printf("deleted %s\n", name)
		}
	}
	if err != nil {
		return err
	}
	if len(pruned) == 0 {
		fmt.Println("Nothing to prune.")
	}
	return nil
}
