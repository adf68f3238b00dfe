package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/discochess/nestcache"
	"github.com/discochess/nestcache/internal/cachestorage/objectstore"
	"github.com/discochess/nestcache/internal/proxy"
	promstats "github.com/discochess/nestcache/internal/stats/prometheus"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the page and its tiles through the cache",
	Long: `Run an HTTP proxy that answers every request through the interceptor.

Relative requests are resolved against --origin. Absolute-form requests
(the proxy is configured as the client's HTTP proxy) are handled as a
forward proxy, which is how tiles and CDN assets reach the cache.

On start the configured version is installed and activated. If its shell
partition already exists it is resumed without touching the network, unless
--reinstall is given. Until a version is active, requests go straight to the
network.`,
	RunE: runServe,
}

var (
	serveReinstall bool
)

func init() {
	f := serveCmd.Flags()
	f.StringVar(&cfg.Listen, "listen", cfg.Listen, "address to serve on")
	f.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address to expose Prometheus metrics on (empty disables)")
	f.StringVar(&cfg.PrunePrefix, "prune-prefix", cfg.PrunePrefix, "delete partitions with this prefix on activation (empty disables)")
	f.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "grace period for in-flight requests on shutdown")
	f.BoolVar(&serveReinstall, "reinstall", false, "install even if the shell partition already exists")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := promstats.New(registry)

	st, err := openStorage(ctx, logger, objectstore.WithStats(collector))
	if err != nil {
		return err
	}

	var extra []nestcache.Option
	if cfg.PrunePrefix != "" {
		extra = append(extra, nestcache.WithStalePartitionPruning(cfg.PrunePrefix))
	}
	ic, err := newInterceptor(st, logger, collector, extra...)
	if err != nil {
		st.Close()
		return err
	}

	reg := nestcache.NewRegistration(nestcache.WithLogger(logger), nestcache.WithStats(collector))
	defer reg.Close()

	if err := activate(ctx, reg, ic, logger); err != nil {
		// Keep serving uncontrolled; the page still works online.
		logger.Error("no active version, passing requests to the network", zap.Error(err))
		defer ic.Close()
	}

	origin, err := parseOrigin()
	if err != nil {
		return err
	}

	servers := []*http.Server{{
		Addr:              cfg.Listen,
		Handler:           proxy.New(reg, origin, proxy.WithLogger(logger.Named("proxy"))),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
		servers = append(servers, &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		logger.Info("shut down")
		return errors.Join(errs...)
	})

	return g.Wait()
}

// activate resumes ic when a complete install survives from an earlier run,
// and installs it otherwise.
func activate(ctx context.Context, reg *nestcache.Registration, ic *nestcache.Interceptor, logger *zap.Logger) error {
	if !serveReinstall {
		err := reg.Resume(ctx, ic)
		if err == nil {
			logger.Info("resumed installed version", zap.String("partition", ic.ShellPartition()))
			return nil
		}
		if !errors.Is(err, nestcache.ErrNotInstalled) {
			return err
		}
		logger.Info("no complete install found", zap.String("partition", ic.ShellPartition()), zap.Error(err))
	}
	return reg.Register(ctx, ic)
}
