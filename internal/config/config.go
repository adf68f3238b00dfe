// Package config loads the command line defaults from NESTCACHE_*
// environment variables. The library itself never reads the environment.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends.
const (
	BackendDisk   = "disk"
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Entry codecs for object backends.
const (
	CodecZstd = "zstd"
	CodecGzip = "gzip"
	CodecNone = "none"
)

var (
	backends = []string{BackendDisk, BackendSQLite, BackendS3, BackendGCS, BackendMemory}
	codecs   = []string{CodecZstd, CodecGzip, CodecNone}
)

// Config holds deploy-time settings.
type Config struct {
	Backend    string `env:"NESTCACHE_BACKEND"     envDefault:"disk"`
	DataDir    string `env:"NESTCACHE_DATA_DIR"    envDefault:"./nestcache-data"`
	SQLitePath string `env:"NESTCACHE_SQLITE_PATH" envDefault:"./nestcache.db"`
	Bucket     string `env:"NESTCACHE_BUCKET"`
	Prefix     string `env:"NESTCACHE_PREFIX"`
	S3Region   string `env:"NESTCACHE_S3_REGION"`
	S3Endpoint string `env:"NESTCACHE_S3_ENDPOINT"`
	Codec      string `env:"NESTCACHE_CODEC"       envDefault:"zstd"`

	// MemoryEntries sizes the in-memory tier. Zero disables it.
	MemoryEntries int `env:"NESTCACHE_MEMORY_ENTRIES" envDefault:"0"`

	Origin         string `env:"NESTCACHE_ORIGIN"`
	ManifestPath   string `env:"NESTCACHE_MANIFEST"`
	ShellPartition string `env:"NESTCACHE_SHELL_PARTITION" envDefault:"shell-v2"`
	TilePartition  string `env:"NESTCACHE_TILE_PARTITION"  envDefault:"tile-cache"`
	TileHost       string `env:"NESTCACHE_TILE_HOST"       envDefault:"api.maptiler.com"`
	TileMarker     string `env:"NESTCACHE_TILE_MARKER"     envDefault:"/maps/topo-v4/"`
	PrunePrefix    string `env:"NESTCACHE_PRUNE_PREFIX"`

	Listen          string        `env:"NESTCACHE_LISTEN"           envDefault:":8080"`
	MetricsAddr     string        `env:"NESTCACHE_METRICS_ADDR"`
	ShutdownTimeout time.Duration `env:"NESTCACHE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// LoadFrom reads the configuration from environ instead of the process
// environment.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks settings that flags may have overridden.
func (c Config) Validate() error {
	var errs []error
	if !slices.Contains(backends, c.Backend) {
		errs = append(errs, fmt.Errorf("unknown backend %q (want one of %v)", c.Backend, backends))
	}
	if !slices.Contains(codecs, c.Codec) {
		errs = append(errs, fmt.Errorf("unknown codec %q (want one of %v)", c.Codec, codecs))
	}
	if (c.Backend == BackendS3 || c.Backend == BackendGCS) && c.Bucket == "" {
		errs = append(errs, fmt.Errorf("backend %s needs a bucket", c.Backend))
	}
	if c.MemoryEntries < 0 {
		errs = append(errs, errors.New("memory entries must not be negative"))
	}
	if c.ShellPartition == "" || c.TilePartition == "" {
		errs = append(errs, errors.New("partition names must not be empty"))
	}
	if c.ShellPartition == c.TilePartition {
		errs = append(errs, errors.New("shell and tile partitions must differ"))
	}
	return errors.Join(errs...)
}
