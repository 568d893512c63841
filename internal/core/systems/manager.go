// Package systems runs the per-tick work of the client in priority order.
package systems

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zeusync/glowline/internal/core/observability/log"
)

var (
	ErrSystemExists   = errors.New("system already registered")
	ErrSystemNotFound = errors.New("system not found")
)

type entry struct {
	system  System
	enabled bool
	order   int
	metrics Metrics
}

// Manager orchestrates registered systems. Tick is meant to be called from
// the host tick thread; registration may happen from any goroutine.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []*entry
	seq     int
	tick    uint64

	logger log.Log
	now    func() time.Time
	onErr  func(name string, err error)
}

func NewManager(logger log.Log) *Manager {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Manager{
		entries: make(map[string]*entry),
		logger:  logger.With(log.String("component", "systems")),
		now:     time.Now,
	}
}

// OnSystemError registers a callback for failed updates.
func (m *Manager) OnSystemError(fn func(name string, err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onErr = fn
}

func (m *Manager) Register(s System) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[s.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrSystemExists, s.Name())
	}
	m.seq++
	e := &entry{system: s, enabled: true, order: m.seq}
	m.entries[s.Name()] = e
	m.rebuild()
	m.logger.Debug("system registered", log.String("system", s.Name()), log.Int("priority", int(s.Priority())))
	return nil
}

func (m *Manager) Unregister(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[name]; !ok {
		return fmt.Errorf("%w: %s", ErrSystemNotFound, name)
	}
	delete(m.entries, name)
	m.rebuild()
	return nil
}

func (m *Manager) SetEnabled(name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSystemNotFound, name)
	}
	e.enabled = enabled
	return nil
}

// Order returns system names in execution order.
func (m *Manager) Order() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	for i, e := range m.order {
		out[i] = e.system.Name()
	}
	return out
}

func (m *Manager) Metrics(name string) (Metrics, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok {
		return Metrics{}, false
	}
	return e.metrics, true
}

// Tick runs every enabled system once. A failing system does not stop the
// others; all errors are joined.
func (m *Manager) Tick() error {
	m.mu.Lock()
	m.tick++
	tick := m.tick
	run := make([]*entry, 0, len(m.order))
	for _, e := range m.order {
		if e.enabled {
			run = append(run, e)
		}
	}
	onErr := m.onErr
	m.mu.Unlock()

	var errs []error
	for _, e := range run {
		started := m.now()
		err := e.system.Update(tick)
		elapsed := m.now().Sub(started)

		m.mu.Lock()
		e.record(started, elapsed, err)
		m.mu.Unlock()

		if err != nil {
			err = fmt.Errorf("%s: %w", e.system.Name(), err)
			m.logger.Warn("system update failed", log.String("system", e.system.Name()), log.Error(err))
			if onErr != nil {
				onErr(e.system.Name(), err)
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ticks is the number of completed Tick calls.
func (m *Manager) Ticks() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tick
}

func (m *Manager) rebuild() {
	m.order = m.order[:0]
	for _, e := range m.entries {
		m.order = append(m.order, e)
	}
	sort.Slice(m.order, func(i, j int) bool {
		a, b := m.order[i], m.order[j]
		if a.system.Priority() != b.system.Priority() {
			return a.system.Priority() > b.system.Priority()
		}
		return a.order < b.order
	})
}

func (e *entry) record(at time.Time, elapsed time.Duration, err error) {
	e.metrics.ExecutionCount++
	e.metrics.TotalExecutionTime += elapsed
	e.metrics.AverageExecutionTime = e.metrics.TotalExecutionTime / time.Duration(e.metrics.ExecutionCount)
	if elapsed > e.metrics.MaxExecutionTime {
		e.metrics.MaxExecutionTime = elapsed
	}
	e.metrics.LastExecutionTime = at
	if err != nil {
		e.metrics.ErrorCount++
		e.metrics.LastError = err
	}
}
