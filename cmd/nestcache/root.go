package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/nestcache/internal/config"
)

var (
	// cfg holds the environment defaults, overridden by flags.
	cfg    config.Config
	envErr error

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "nestcache",
	Short: "Offline cache for the nest logger web shell and map tiles",
	Long: `Nestcache answers every request of the nest logger page from a local cache,
the network, or both.

Map tiles are cached the first time they are fetched and served from the
cache from then on. The page shell is pre-warmed at install time and served
cache-first. Defaults come from NESTCACHE_* environment variables.

Examples:
  # Serve the page at https://nest.example.org through the cache
  nestcache serve --origin https://nest.example.org

  # Pre-warm the shell partition without serving
  nestcache install --origin https://nest.example.org

  # Look up a cached tile
  nestcache match "https://api.maptiler.com/maps/topo-v4/12/2048/1361.png"

  # Show partitions
  nestcache stats`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envErr != nil {
			return envErr
		}
		return cfg.Validate()
	},
}

func init() {
	cfg, envErr = config.Load()

	f := rootCmd.PersistentFlags()
	f.StringVar(&cfg.Backend, "backend", cfg.Backend, "storage backend: disk, sqlite, s3, gcs or memory")
	f.StringVarP(&cfg.DataDir, "data-dir", "d", cfg.DataDir, "directory for the disk backend")
	f.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "database file for the sqlite backend")
	f.StringVar(&cfg.Bucket, "bucket", cfg.Bucket, "bucket for the s3 backend, or gs://bucket/prefix for gcs")
	f.StringVar(&cfg.Prefix, "prefix", cfg.Prefix, "object key prefix for the s3 and gcs backends")
	f.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "AWS region for the s3 backend")
	f.StringVar(&cfg.S3Endpoint, "s3-endpoint", cfg.S3Endpoint, "custom endpoint for S3-compatible services")
	f.StringVar(&cfg.Codec, "codec", cfg.Codec, "entry compression for object backends: zstd, gzip or none")
	f.IntVar(&cfg.MemoryEntries, "memory-entries", cfg.MemoryEntries, "entries kept in the in-memory tier (0 disables it)")
	f.StringVar(&cfg.Origin, "origin", cfg.Origin, "page origin relative manifest entries resolve against")
	f.StringVar(&cfg.ManifestPath, "manifest", cfg.ManifestPath, "JSON asset manifest replacing the built-in one")
	f.StringVar(&cfg.ShellPartition, "shell-partition", cfg.ShellPartition, "partition filled at install time")
	f.StringVar(&cfg.TilePartition, "tile-partition", cfg.TilePartition, "partition holding map tiles")
	f.StringVar(&cfg.TileHost, "tile-host", cfg.TileHost, "host serving map tiles")
	f.StringVar(&cfg.TileMarker, "tile-marker", cfg.TileMarker, "path fragment identifying tile requests")
	f.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// newLogger returns a development logger with --verbose and a production
// logger otherwise.
func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
