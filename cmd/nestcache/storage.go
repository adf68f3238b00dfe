package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/discochess/nestcache/internal/cachestorage"
	"github.com/discochess/nestcache/internal/cachestorage/diskstorage"
	"github.com/discochess/nestcache/internal/cachestorage/gcsstorage"
	"github.com/discochess/nestcache/internal/cachestorage/memstorage"
	"github.com/discochess/nestcache/internal/cachestorage/objectstore"
	"github.com/discochess/nestcache/internal/cachestorage/s3storage"
	"github.com/discochess/nestcache/internal/cachestorage/sqlitestorage"
	"github.com/discochess/nestcache/internal/codec"
	"github.com/discochess/nestcache/internal/codec/gzipcodec"
	"github.com/discochess/nestcache/internal/codec/noopcodec"
	"github.com/discochess/nestcache/internal/codec/zstdcodec"
	"github.com/discochess/nestcache/internal/config"
)

// newCodec returns the entry codec named by the configuration.
func newCodec(name string) (codec.Codec, error) {
	switch name {
	case config.CodecZstd:
		return zstdcodec.New(), nil
	case config.CodecGzip:
		return gzipcodec.New(), nil
	case config.CodecNone:
		return noopcodec.New(), nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// openStorage opens the configured durable backend. extra applies to the
// object-store backends only.
// The in-memory tier is added by the interceptor, not here.
func openStorage(ctx context.Context, logger *zap.Logger, extra ...objectstore.Option) (cachestorage.Storage, error) {
	c, err := newCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}
	objOpts := append([]objectstore.Option{objectstore.WithLogger(logger.Named("storage"))}, extra...)

	switch cfg.Backend {
	case config.BackendDisk:
		st, err := diskstorage.New(cfg.DataDir, c, objOpts...)
		if err != nil {
			return nil, fmt.Errorf("opening data directory: %w", err)
		}
		return st, nil

	case config.BackendSQLite:
		st, err := sqlitestorage.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite database: %w", err)
		}
		return st, nil

	case config.BackendS3:
		var opts []s3storage.Option
		if cfg.Prefix != "" {
			opts = append(opts, s3storage.WithPrefix(cfg.Prefix))
		}
		if cfg.S3Region != "" {
			opts = append(opts, s3storage.WithRegion(cfg.S3Region))
		}
		if cfg.S3Endpoint != "" {
			opts = append(opts, s3storage.WithEndpoint(cfg.S3Endpoint))
		}
		b, err := s3storage.NewBucket(ctx, cfg.Bucket, opts...)
		if err != nil {
			return nil, fmt.Errorf("opening s3 bucket: %w", err)
		}
		return objectstore.New(b, c, objOpts...), nil

	case config.BackendGCS:
		bucket, prefix := cfg.Bucket, cfg.Prefix
		if b, p, err := gcsstorage.ParseURL(cfg.Bucket); err == nil {
			bucket = b
			if prefix == "" {
				prefix = p
			}
		}
		b, err := gcsstorage.NewBucket(ctx, bucket, gcsstorage.WithPrefix(prefix))
		if err != nil {
			return nil, fmt.Errorf("opening gcs bucket: %w", err)
		}
		return objectstore.New(b, c, objOpts...), nil

	case config.BackendMemory:
		return memstorage.New(), nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
