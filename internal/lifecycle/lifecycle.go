// Package lifecycle manages the install and activation of one interceptor
// version.
//
// A version starts in StateNew. Install pre-warms the shell partition with
// every manifest resource and moves to StateInstalled, from which the
// version may activate at once without waiting for open pages to close.
// A failed install leaves the version StateRedundant for good.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/discochess/nestcache/internal/cachestorage"
	"github.com/discochess/nestcache/internal/fetch"
	"github.com/discochess/nestcache/internal/message"
	"github.com/discochess/nestcache/internal/stats"
)

var (
	// ErrInstallFailed is wrapped by every install batch failure.
	ErrInstallFailed = errors.New("install failed")

	// ErrInvalidState is returned when an operation is not permitted in
	// the current state.
	ErrInvalidState = errors.New("invalid lifecycle state")

	// ErrNotInstalled is returned by Resume when the shell partition does
	// not hold every manifest resource.
	ErrNotInstalled = errors.New("version not installed")

	// ErrBadStatus is returned when a manifest resource answers with a
	// non-2xx status.
	ErrBadStatus = errors.New("bad response status")
)

// DefaultInstallConcurrency bounds the parallel manifest fetches.
const DefaultInstallConcurrency = 8

// State is the lifecycle state of a version.
type State int32

const (
	StateNew State = iota
	StateInstalling
	StateInstalled
	StateActive
	StateRedundant
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActive:
		return "active"
	case StateRedundant:
		return "redundant"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Manager owns the state machine of one version.
type Manager struct {
	storage     cachestorage.Storage
	partition   string
	requests    []*message.Request
	fetcher     fetch.Fetcher
	logger      *zap.Logger
	stats       stats.Collector
	concurrency int
	prunePrefix string

	mu    sync.Mutex
	state State
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithStats sets the stats collector.
func WithStats(c stats.Collector) Option {
	return func(m *Manager) {
		m.stats = c
	}
}

// WithInstallConcurrency bounds the number of manifest fetches in flight.
// Values below 1 mean no limit.
func WithInstallConcurrency(n int) Option {
	return func(m *Manager) {
		m.concurrency = n
	}
}

// WithStalePartitionPruning deletes, on activation, every partition whose
// name starts with prefix other than the shell partition.
func WithStalePartitionPruning(prefix string) Option {
	return func(m *Manager) {
		m.prunePrefix = prefix
	}
}

// New creates a manager that installs requests into the named shell
// partition of storage.
func New(storage cachestorage.Storage, partition string, requests []*message.Request, fetcher fetch.Fetcher, opts ...Option) *Manager {
	m := &Manager{
		storage:     storage,
		partition:   partition,
		requests:    requests,
		fetcher:     fetcher,
		logger:      zap.NewNop(),
		stats:       stats.NewNoop(),
		concurrency: DefaultInstallConcurrency,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Controlling reports whether this version answers requests from pages.
// Once active it claims every page, including those loaded before it.
func (m *Manager) Controlling() bool {
	return m.State() == StateActive
}

// Partition returns the shell partition name.
func (m *Manager) Partition() string {
	return m.partition
}

// transition moves from one of the allowed states to next.
func (m *Manager) transition(next State, allowed ...State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range allowed {
		if m.state == s {
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidState, m.state, next)
}

func (m *Manager) set(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Install fetches every manifest resource and, only when all of them
// answered with a 2xx status, writes them into the shell partition.
// Install may be called once.
func (m *Manager) Install(ctx context.Context) error {
	if err := m.transition(StateInstalling, StateNew); err != nil {
		return err
	}

	start := time.Now()
	m.logger.Info("installing",
		zap.String("partition", m.partition),
		zap.Int("resources", len(m.requests)),
	)

	if err := m.install(ctx); err != nil {
		m.set(StateRedundant)
		m.stats.IncCounter(stats.MetricInstallFailures, 1)
		m.logger.Error("install failed", zap.String("partition", m.partition), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}

	m.set(StateInstalled)
	elapsed := time.Since(start)
	m.stats.IncCounter(stats.MetricInstalls, 1)
	m.stats.ObserveHistogram(stats.MetricInstallSeconds, elapsed.Seconds())
	m.logger.Info("installed",
		zap.String("partition", m.partition),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

func (m *Manager) install(ctx context.Context) error {
	responses, err := m.fetchAll(ctx)
	if err != nil {
		return err
	}

	existed, err := m.storage.Has(ctx, m.partition)
	if err != nil {
		return fmt.Errorf("checking partition %q: %w", m.partition, err)
	}
	p, err := m.storage.Open(ctx, m.partition)
	if err != nil {
		return fmt.Errorf("opening partition %q: %w", m.partition, err)
	}

	for i, req := range m.requests {
		if err := p.Put(ctx, req, responses[i]); err != nil {
			m.rollback(ctx, p, existed, m.requests[:i])
			return fmt.Errorf("storing %s: %w", req.Key(), err)
		}
	}
	return nil
}

// fetchAll fetches every request concurrently. The first failure cancels
// the remaining fetches.
func (m *Manager) fetchAll(ctx context.Context) ([]*message.Response, error) {
	responses := make([]*message.Response, len(m.requests))

	g, gctx := errgroup.WithContext(ctx)
	if m.concurrency > 0 {
		g.SetLimit(m.concurrency)
	}
	for i, req := range m.requests {
		g.Go(func() error {
			resp, err := m.fetcher.Fetch(gctx, req)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", req.Key(), err)
			}
			if !resp.OK() {
				return fmt.Errorf("fetching %s: %w: %d", req.Key(), ErrBadStatus, resp.Status)
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return responses, nil
}

// rollback undoes a failed write phase. It is best-effort. A partition the
// batch created is deleted as a whole; in a partition that existed before,
// only the entries written by the batch are removed.
func (m *Manager) rollback(ctx context.Context, p cachestorage.Partition, existed bool, written []*message.Request) {
	ctx = context.WithoutCancel(ctx)
	if !existed {
		if _, err := m.storage.Delete(ctx, m.partition); err != nil {
			m.logger.Warn("rollback failed", zap.String("partition", m.partition), zap.Error(err))
		}
		return
	}
	for _, req := range written {
		if _, err := p.Delete(ctx, req); err != nil {
			m.logger.Warn("rollback failed", zap.String("url", req.Key()), zap.Error(err))
		}
	}
}

// Activate makes the installed version control every page. With pruning
// enabled, stale shell partitions are deleted first; a pruning failure is
// logged and does not prevent activation.
func (m *Manager) Activate(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateInstalled {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot activate from %s", ErrInvalidState, state)
	}
	m.mu.Unlock()

	if m.prunePrefix != "" {
		pruned, err := Prune(ctx, m.storage, m.prunePrefix, m.partition, false)
		if err != nil {
			m.logger.Warn("pruning stale partitions failed", zap.Error(err))
		}
		if len(pruned) > 0 {
			m.stats.IncCounter(stats.MetricPrunedPartitions, int64(len(pruned)))
			m.logger.Info("pruned stale partitions", zap.Strings("partitions", pruned))
		}
	}

	if err := m.transition(StateActive, StateInstalled); err != nil {
		return err
	}
	m.stats.IncCounter(stats.MetricActivations, 1)
	m.logger.Info("activated", zap.String("partition", m.partition))
	return nil
}

// Resume marks a version installed by an earlier process as active without
// fetching anything. Every manifest resource must already be stored in the
// shell partition; otherwise Resume returns ErrNotInstalled and the version
// stays StateNew, ready for Install.
func (m *Manager) Resume(ctx context.Context) error {
	ok, err := m.storage.Has(ctx, m.partition)
	if err != nil {
		return fmt.Errorf("checking partition %q: %w", m.partition, err)
	}
	if !ok {
		return fmt.Errorf("%w: partition %q missing", ErrNotInstalled, m.partition)
	}

	p, err := m.storage.Open(ctx, m.partition)
	if err != nil {
		return fmt.Errorf("opening partition %q: %w", m.partition, err)
	}
	for _, req := range m.requests {
		_, err := p.Match(ctx, req)
		if errors.Is(err, cachestorage.ErrNotFound) {
			return fmt.Errorf("%w: partition %q has no entry for %s", ErrNotInstalled, m.partition, req.Key())
		}
		if err != nil {
			return fmt.Errorf("checking %s: %w", req.Key(), err)
		}
	}

	if err := m.transition(StateActive, StateNew); err != nil {
		return err
	}
	m.stats.IncCounter(stats.MetricActivations, 1)
	m.logger.Info("resumed", zap.String("partition", m.partition))
	return nil
}
