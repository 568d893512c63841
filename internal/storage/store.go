// Package storage persists the selection registry as a flat JSON document.
//
// Failures never reach the user: unreadable files leave the defaults in
// place, malformed files are moved aside to <file>.backup and replaced.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/zeusync/glowline/internal/core/events/bus"
	"github.com/zeusync/glowline/internal/core/observability/log"
	"github.com/zeusync/glowline/internal/core/selection"
)

// BackupSuffix is appended to a malformed file before it is replaced.
const BackupSuffix = ".backup"

// Outcome describes how Load obtained the registry state.
type Outcome uint8

const (
	// OutcomeLoaded means the file was read and applied.
	OutcomeLoaded Outcome = iota
	// OutcomeCreated means no file existed; defaults were written.
	OutcomeCreated
	// OutcomeEmpty means the file held no document; defaults were written.
	OutcomeEmpty
	// OutcomeRecovered means the file was malformed, backed up and replaced.
	OutcomeRecovered
	// OutcomeFailed means an I/O error; the defaults are in use.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoaded:
		return "loaded"
	case OutcomeCreated:
		return "created"
	case OutcomeEmpty:
		return "empty"
	case OutcomeRecovered:
		return "recovered"
	default:
		return "failed"
	}
}

type Store struct {
	path     string
	registry *selection.Registry
	schema   *jsonschema.Schema
	logger   log.Log
	debounce time.Duration

	mu       sync.Mutex
	lastHash uint64
	hasHash  bool

	reloads    chan selection.Snapshot
	watchReady chan struct{}
	readyOnce  sync.Once
}

type Option func(*Store)

func WithLogger(l log.Log) Option {
	return func(s *Store) { s.logger = l }
}

// WithDebounce sets how long Watch waits for writes to settle.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) { s.debounce = d }
}

func New(path string, registry *selection.Registry, opts ...Option) (*Store, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("compile selection schema: %w", err)
	}
	s := &Store{
		path:       path,
		registry:   registry,
		schema:     schema,
		logger:     log.NewNop(),
		debounce:   100 * time.Millisecond,
		reloads:    make(chan selection.Snapshot, 1),
		watchReady: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(log.String("component", "storage"), log.String("file", path))
	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) BackupPath() string {
	return s.path + BackupSuffix
}

// Load replaces the registry state with the file content, recovering from
// every failure as described in the package doc.
func (s *Store) Load() Outcome {
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Info("no selection file found, creating defaults")
		s.resetAndSave()
		return OutcomeCreated
	case err != nil:
		s.logger.Error("failed to read selection file, using defaults", log.Error(err))
		s.registry.Restore(selection.DefaultSnapshot())
		return OutcomeFailed
	}

	if isBlank(data) {
		s.logger.Warn("selection file is empty, using defaults")
		s.resetAndSave()
		return OutcomeEmpty
	}

	snap, err := s.decode(data)
	if err != nil {
		s.logger.Error("selection file is malformed", log.Error(err))
		if err := os.Rename(s.path, s.BackupPath()); err != nil {
			s.logger.Error("failed to back up malformed selection file", log.Error(err))
			s.registry.Restore(selection.DefaultSnapshot())
			return OutcomeFailed
		}
		s.logger.Info("malformed selection file backed up", log.String("backup", s.BackupPath()))
		s.resetAndSave()
		return OutcomeRecovered
	}

	s.registry.Restore(snap)
	s.remember(data)
	st := s.registry.Stats()
	s.logger.Info("selection loaded",
		log.Bool("outlines_enabled", st.OutlinesEnabled),
		log.Int("items", st.Items),
		log.Int("entities", st.Entities),
		log.Int("blocks", st.Blocks),
	)
	return OutcomeLoaded
}

// Save writes the registry state atomically: a temp file in the same
// directory is renamed over the target.
func (s *Store) Save() error {
	data, err := encode(s.registry.Snapshot())
	if err != nil {
		return fmt.Errorf("encode selection: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create selection dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write selection: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close selection: %w", err)
	}
	// Remember before the rename so the watcher never sees an unknown write.
	s.remember(data)
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace selection: %w", err)
	}
	s.logger.Debug("selection saved", log.Int("bytes", len(data)))
	return nil
}

// Attach saves on every selection.changed event published on b.
func (s *Store) Attach(b bus.EventBus) (bus.Subscription, error) {
	return b.Subscribe(bus.SelectionChanged, func(bus.Event) error {
		if err := s.Save(); err != nil {
			s.logger.Error("failed to save selection", log.Error(err))
			return err
		}
		return nil
	})
}

func (s *Store) resetAndSave() {
	s.registry.Restore(selection.DefaultSnapshot())
	if err := s.Save(); err != nil {
		s.logger.Error("failed to write default selection file", log.Error(err))
	}
}

func (s *Store) remember(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHash = xxhash.Sum64(data)
	s.hasHash = true
}

// isOwn reports whether data is what this store last read or wrote.
func (s *Store) isOwn(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasHash && s.lastHash == xxhash.Sum64(data)
}
