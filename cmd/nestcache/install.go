package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/discochess/nestcache/internal/stats/logger"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Pre-warm the shell partition from the asset manifest",
	Long: `Fetch every resource of the asset manifest and store the responses in the
shell partition. Nothing is written unless every resource answers with a 2xx
status.

A later 'nestcache serve' resumes the installed version without fetching.`,
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	ctx := context.Background()
	st, err := openStorage(ctx, log)
	if err != nil {
		return err
	}

	ic, err := newInterceptor(st, log, logger.New(log.Named("stats")))
	if err != nil {
		st.Close()
		return err
	}
	defer ic.Close()

	start := time.Now()
	if err := ic.Install(ctx); err != nil {
		return err
	}

	p, err := st.Open(ctx, ic.ShellPartition())
	if err != nil {
		return fmt.Errorf("opening shell partition: %w", err)
	}
	keys, err := p.Keys(ctx)
	if err != nil {
		return fmt.Errorf("listing shell partition: %w", err)
	}

	fmt.Printf("Installed %d resources into %q in %s\n", len(keys), ic.ShellPartition(), time.Since(start).Round(time.Millisecond))
	return nil
}
