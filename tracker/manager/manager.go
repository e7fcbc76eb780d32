// Package manager owns the set of live interpreters: it spawns them, fans decoded
// events out to them, drops them once terminal and snapshots them to disk so that
// a restart resumes every in-flight transfer.
package manager

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/oraichain/ibc-routing/tracker/decoder"
	"github.com/oraichain/ibc-routing/tracker/interpreter"
	"github.com/oraichain/ibc-routing/tracker/metrics"
	"github.com/oraichain/ibc-routing/tracker/store"
)

const (
	defaultSnapshotInterval = 30 * time.Second
	snapshotExt             = ".json"
)

// Config holds the collaborators shared by every interpreter.
type Config struct {
	Store            interpreter.Store
	Options          interpreter.Options
	SnapshotDir      string // empty disables snapshots
	SnapshotInterval time.Duration
	Metrics          *metrics.Metrics // optional
	Logger           zerolog.Logger
}

// Manager is a concurrent registry of interpreters keyed by handle.
//
// The map lock is held only while the map changes; events are delivered outside
// of it, and each interpreter serialises its own deliveries.
type Manager struct {
	store            interpreter.Store
	opts             interpreter.Options
	snapshotDir      string
	snapshotInterval time.Duration
	metrics          *metrics.Metrics
	baseLogger       zerolog.Logger
	logger           zerolog.Logger

	mu        sync.RWMutex
	instances map[string]*interpreter.Interpreter // handle -> interpreter
	origins   map[string]string                   // origin key -> handle
	originOf  map[string]string                   // handle -> origin key

	wg sync.WaitGroup
}

// New creates an empty manager.
func New(cfg Config) *Manager {
	interval := cfg.SnapshotInterval
	if interval <= 0 {
		interval = defaultSnapshotInterval
	}
	m := &Manager{
		store:            cfg.Store,
		snapshotDir:      cfg.SnapshotDir,
		snapshotInterval: interval,
		metrics:          cfg.Metrics,
		baseLogger:       cfg.Logger,
		logger:           cfg.Logger.With().Str("component", "interpreter_manager").Logger(),
		instances:        make(map[string]*interpreter.Interpreter),
		origins:          make(map[string]string),
		originOf:         make(map[string]string),
	}

	opts := cfg.Options
	onTransition := opts.OnTransition
	opts.OnTransition = func(from, to interpreter.State) {
		m.metrics.ObserveTransition(string(from), string(to))
		if onTransition != nil {
			onTransition(from, to)
		}
	}
	m.opts = opts
	return m
}

// Spawn creates an interpreter for a transfer starting in origin and registers it.
func (m *Manager) Spawn(origin store.Domain) *interpreter.Interpreter {
	it := interpreter.New(origin, m.store, m.opts, m.baseLogger)
	m.Append(it)
	return it
}

// Claim returns the live interpreter tracking originKey, or spawns and registers a
// new one. The bool reports whether a new interpreter was created. Checking and
// registering happen under one lock, so concurrent duplicates of a source event
// share one interpreter.
func (m *Manager) Claim(originKey string, origin store.Domain) (*interpreter.Interpreter, bool) {
	m.mu.Lock()
	if handle, ok := m.origins[originKey]; ok {
		if it, alive := m.instances[handle]; alive && !it.Terminal() {
			m.mu.Unlock()
			return it, false
		}
	}
	it := interpreter.New(origin, m.store, m.opts, m.baseLogger)
	m.instances[it.Handle()] = it
	m.indexOrigin(originKey, it.Handle())
	n := len(m.instances)
	m.mu.Unlock()

	m.metrics.SetActive(n)
	return it, true
}

// Append registers an interpreter.
func (m *Manager) Append(it *interpreter.Interpreter) {
	m.mu.Lock()
	m.instances[it.Handle()] = it
	if key := it.Context().OriginKey; key != "" {
		m.indexOrigin(key, it.Handle())
	}
	n := len(m.instances)
	m.mu.Unlock()

	m.metrics.SetActive(n)
}

// Remove unregisters an interpreter and deletes its snapshot. It reports whether
// the handle was known.
func (m *Manager) Remove(handle string) bool {
	m.mu.Lock()
	it, ok := m.instances[handle]
	if ok {
		delete(m.instances, handle)
		if key, indexed := m.originOf[handle]; indexed {
			delete(m.originOf, handle)
			// A newer instance may have claimed the key since.
			if m.origins[key] == handle {
				delete(m.origins, key)
			}
		}
	}
	n := len(m.instances)
	m.mu.Unlock()

	if !ok {
		return false
	}
	m.metrics.SetActive(n)
	if m.snapshotDir != "" {
		if err := os.Remove(m.snapshotPath(handle)); err != nil && !os.IsNotExist(err) {
			m.logger.Warn().Err(err).Str("handle", handle).Msg("failed to delete snapshot")
		}
	}
	m.logger.Debug().Str("handle", handle).Str("state", string(it.State())).Msg("interpreter removed")
	return true
}

// indexOrigin must be called with mu held.
func (m *Manager) indexOrigin(key, handle string) {
	if old, ok := m.origins[key]; ok && old != handle {
		delete(m.originOf, old)
	}
	m.origins[key] = handle
	m.originOf[handle] = key
}

// Get returns the interpreter with the given handle.
func (m *Manager) Get(handle string) (*interpreter.Interpreter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.instances[handle]
	return it, ok
}

// FindByOrigin returns the interpreter tracking the transfer with originKey.
func (m *Manager) FindByOrigin(originKey string) (*interpreter.Interpreter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	handle, ok := m.origins[originKey]
	if !ok {
		return nil, false
	}
	it, ok := m.instances[handle]
	return it, ok
}

// Count returns the number of registered interpreters.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.instances)
}

// Handles returns the registered handles in lexical order.
func (m *Manager) Handles() []string {
	m.mu.RLock()
	handles := make([]string, 0, len(m.instances))
	for h := range m.instances {
		handles = append(handles, h)
	}
	m.mu.RUnlock()

	sort.Strings(handles)
	return handles
}

// Instances returns a copy of the registered interpreters.
func (m *Manager) Instances() []*interpreter.Interpreter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*interpreter.Interpreter, 0, len(m.instances))
	for _, it := range m.instances {
		out = append(out, it)
	}
	return out
}

// Broadcast offers ev to every live interpreter concurrently and returns how many
// matched it. Interpreters that reached a terminal state are removed afterwards.
func (m *Manager) Broadcast(ctx context.Context, ev decoder.Event) (int, error) {
	targets := m.Instances()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		matched int
		errs    []error
	)
	for _, it := range targets {
		wg.Add(1)
		go func(it *interpreter.Interpreter) {
			defer wg.Done()
			ok, err := it.Deliver(ctx, ev)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, errors.Wrapf(err, "deliver to %s", it.Handle()))
			}
			if ok {
				matched++
			}
		}(it)
	}
	wg.Wait()

	m.Prune()
	return matched, stderrors.Join(errs...)
}

// Prune removes every terminal interpreter and returns how many were removed.
func (m *Manager) Prune() int {
	removed := 0
	for _, it := range m.Instances() {
		if it.Terminal() && m.Remove(it.Handle()) {
			removed++
		}
	}
	return removed
}

// Start snapshots all interpreters periodically until ctx ends, then once more.
func (m *Manager) Start(ctx context.Context) {
	if m.snapshotDir == "" {
		return
	}
	m.wg.Add(1)
	go m.run(ctx)
}

// Wait blocks until the snapshot loop started by Start has written its final
// snapshot.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := m.SnapshotAll(); err != nil {
				m.logger.Error().Err(err).Msg("final snapshot failed")
			}
			return
		case <-ticker.C:
			if err := m.SnapshotAll(); err != nil {
				m.logger.Warn().Err(err).Msg("periodic snapshot failed")
			}
		}
	}
}

// SnapshotAll writes one JSON file per live interpreter into the snapshot directory.
func (m *Manager) SnapshotAll() error {
	if m.snapshotDir == "" {
		return nil
	}
	if err := os.MkdirAll(m.snapshotDir, 0o750); err != nil {
		return errors.Wrap(err, "failed to create snapshot directory")
	}

	var errs []error
	written := 0
	for _, it := range m.Instances() {
		if it.Terminal() {
			continue
		}
		if err := m.writeSnapshot(it.Snapshot()); err != nil {
			errs = append(errs, err)
			continue
		}
		written++
	}
	m.logger.Debug().Int("written", written).Msg("interpreters snapshotted")
	return stderrors.Join(errs...)
}

func (m *Manager) writeSnapshot(snap interpreter.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to encode snapshot %s", snap.Handle)
	}
	path := m.snapshotPath(snap.Handle)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrapf(err, "failed to write snapshot %s", snap.Handle)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "failed to commit snapshot %s", snap.Handle)
	}
	return nil
}

// Recover loads every snapshot in the snapshot directory and registers the
// restored interpreters. Unreadable snapshots are skipped and logged.
func (m *Manager) Recover() (int, error) {
	if m.snapshotDir == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(m.snapshotDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "failed to read snapshot directory")
	}

	restored := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), snapshotExt) {
			continue
		}
		path := filepath.Join(m.snapshotDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			m.logger.Warn().Err(err).Str("file", entry.Name()).Msg("failed to read snapshot")
			continue
		}
		var snap interpreter.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			m.logger.Warn().Err(err).Str("file", entry.Name()).Msg("skipping corrupt snapshot")
			continue
		}
		it, err := interpreter.Restore(snap, m.store, m.opts, m.baseLogger)
		if err != nil {
			m.logger.Warn().Err(err).Str("file", entry.Name()).Msg("skipping invalid snapshot")
			continue
		}
		if it.Terminal() {
			_ = os.Remove(path)
			continue
		}
		m.Append(it)
		restored++
	}

	m.logger.Info().Int("restored", restored).Msg("interpreters recovered from snapshots")
	return restored, nil
}

func (m *Manager) snapshotPath(handle string) string {
	return filepath.Join(m.snapshotDir, handle+snapshotExt)
}
