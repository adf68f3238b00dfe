// Package main provides the nestcache-bench CLI tool for sizing the tile
// cache's memory tier.
package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"

	"github.com/discochess/nestcache/benchmark/analysis"
	"github.com/discochess/nestcache/benchmark/reporting"
	"github.com/discochess/nestcache/benchmark/simulation"
)

var (
	sessionCount int
	steps        int
	seed         uint64
	capacities   []int
	bootstrap    int
	outputFormat string
	outputFile   string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "nestcache-bench",
	Short: "Benchmark memory tier capacities for the tile cache",
	Long: `nestcache-bench replays synthetic map sessions through the tile cache.

Each session pans and zooms a viewport and requests every visible tile. The
durable cache is kept between sessions while the memory tier starts cold,
and the memory hit rate is measured for every capacity.

Examples:
  # Compare the default capacities
  nestcache-bench run

  # Compare two capacities over more sessions
  nestcache-bench run --sessions 500 --capacities 64,512

  # Output as markdown report
  nestcache-bench run --format markdown --output report.md`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the benchmark simulation",
	RunE:  runBenchmark,
}

func init() {
	runCmd.Flags().IntVarP(&sessionCount, "sessions", "n", 200, "number of sessions to replay")
	runCmd.Flags().IntVar(&steps, "steps", 60, "viewport moves per session")
	runCmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")
	runCmd.Flags().IntSliceVarP(&capacities, "capacities", "c", []int{64, 256}, "memory tier capacities to compare")
	runCmd.Flags().IntVar(&bootstrap, "bootstrap", 10000, "bootstrap iterations")
	runCmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "output format: text, markdown")
	runCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	if sessionCount <= 0 {
		return fmt.Errorf("--sessions must be positive")
	}
	if len(capacities) == 0 {
		return fmt.Errorf("at least one capacity is required")
	}

	cfg := simulation.DefaultSessionConfig()
	cfg.Steps = steps

	rng := rand.New(rand.NewPCG(seed, seed))
	sessions := make([][]string, sessionCount)
	var totalRequests int
	for i := range sessions {
		sessions[i] = simulation.GenerateSession(cfg, rng)
		totalRequests += len(sessions[i])
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Replaying %d tile requests from %d sessions...\n", totalRequests, len(sessions))
	}

	sim := simulation.NewSimulator(capacities...)
	results, err := sim.SimulateSessions(cmd.Context(), sessions)
	if err != nil {
		return fmt.Errorf("simulating: %w", err)
	}

	var comparison *analysis.CapacityComparison
	if len(capacities) >= 2 {
		comparison = analysis.CompareCapacities(
			results[capacities[0]],
			results[capacities[1]],
			bootstrap,
			0.95,
			seed,
		)
	}

	var output io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	switch outputFormat {
	case "markdown":
		return writeMarkdownReport(output, cfg, len(sessions), totalRequests, results, comparison)
	default:
		return writeTextReport(output, len(sessions), totalRequests, results, comparison)
	}
}

func writeTextReport(w io.Writer, sessions, requests int, results map[int]*simulation.AggregateResult, comp *analysis.CapacityComparison) error {
	fmt.Fprintf(w, "Nestcache Memory Tier Benchmark\n")
	fmt.Fprintf(w, "===============================\n\n")
	fmt.Fprintf(w, "Sessions: %d\n", sessions)
	fmt.Fprintf(w, "Tile requests: %d\n\n", requests)

	fmt.Fprintf(w, "Results:\n")
	fmt.Fprintf(w, "--------\n\n")

	for _, capacity := range reporting.SortedCapacities(results) {
		m := simulation.ComputeMetrics(results[capacity])
		fmt.Fprintf(w, "%d entries:\n", capacity)
		fmt.Fprintf(w, "  Memory hit rate:   %.1f%%\n", m.MemoryHitRate)
		fmt.Fprintf(w, "  Durable hit rate:  %.1f%%\n", m.DurableHitRate)
		fmt.Fprintf(w, "  Median session:    %.1f%%\n", m.MedianHitRate)
		fmt.Fprintf(w, "  P10 session:       %.1f%%\n", m.P10HitRate)
		fmt.Fprintf(w, "  Network fetches:   %d\n", m.NetworkFetches)
		fmt.Fprintf(w, "  Unique tiles:      %d\n\n", m.UniqueTiles)
	}

	if comp != nil {
		fmt.Fprintf(w, "Statistical Analysis:\n")
		fmt.Fprintf(w, "---------------------\n\n")
		fmt.Fprintln(w, comp.Summary())
	}
	return nil
}

func writeMarkdownReport(w io.Writer, cfg simulation.SessionConfig, sessions, requests int, results map[int]*simulation.AggregateResult, comp *analysis.CapacityComparison) error {
	report := reporting.NewMarkdownReport(w)
	report.WriteHeader("Nestcache Memory Tier Benchmark")
	report.WriteMethodology(sessions, requests, cfg)
	report.WriteSummaryTable(results)

	if comp != nil {
		report.WriteComparison(comp)
	}
	for _, capacity := range reporting.SortedCapacities(results) {
		report.WriteDistributionChart(capacity, results[capacity].HitRatePerSession)
	}

	report.WriteFooter()
	return nil
}
