package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/zeusync/glowline/internal/core/observability/log"
	"github.com/zeusync/glowline/internal/core/protocol"
)

const (
	ReasonAllowed = "Server allows More Outlines mod"
	ReasonBlocked = "Server blocks More Outlines mod"
)

// policyFile is the on-disk form of the server policy.
type policyFile struct {
	AllowMoreOutlinesMod bool   `json:"allowMoreOutlinesMod"`
	Reason               string `json:"reason"`
}

// Policy is the server-side answer to every permission request. It is safe
// for concurrent use.
type Policy struct {
	path   string
	logger log.Log

	mu      sync.RWMutex
	current policyFile
}

// NewPolicy returns an allowing policy backed by path. An empty path keeps the
// policy in memory only.
func NewPolicy(path string, logger log.Log) *Policy {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Policy{
		path:    path,
		logger:  logger.With(log.String("component", "policy")),
		current: policyFile{AllowMoreOutlinesMod: true, Reason: ReasonAllowed},
	}
}

// Load reads the policy file. A missing file is created with the defaults; a
// malformed file is reported and leaves the current policy in place.
func (p *Policy) Load() error {
	if p.path == "" {
		return nil
	}
	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		p.logger.Info("created default permission policy", log.String("path", p.path))
		return p.save()
	}
	if err != nil {
		return fmt.Errorf("read policy: %w", err)
	}

	var f policyFile
	if err := json.Unmarshal(data, &f); err != nil {
		p.logger.Error("failed to load permission policy", log.String("path", p.path), log.Error(err))
		return fmt.Errorf("%w: %w", ErrMalformedPolicy, err)
	}
	if f.Reason == "" {
		f.Reason = defaultReason(f.AllowMoreOutlinesMod)
	}

	p.mu.Lock()
	p.current = f
	p.mu.Unlock()

	p.logger.Info("loaded permission policy",
		log.Bool("allowed", f.AllowMoreOutlinesMod),
		log.String("reason", f.Reason))
	return nil
}

// Allowed returns the current verdict.
func (p *Policy) Allowed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.AllowMoreOutlinesMod
}

func (p *Policy) Reason() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.Reason
}

// Permission is the payload sent to clients.
func (p *Policy) Permission() protocol.Permission {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return protocol.Permission{Allowed: p.current.AllowMoreOutlinesMod, Reason: p.current.Reason}
}

// SetAllowed changes the verdict and persists it. An empty reason picks the
// stock wording for the verdict.
func (p *Policy) SetAllowed(allowed bool, reason string) error {
	if reason == "" {
		reason = defaultReason(allowed)
	}
	p.mu.Lock()
	p.current = policyFile{AllowMoreOutlinesMod: allowed, Reason: reason}
	p.mu.Unlock()
	return p.save()
}

func (p *Policy) save() error {
	if p.path == "" {
		return nil
	}
	p.mu.RLock()
	data, err := json.MarshalIndent(p.current, "", "  ")
	p.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode policy: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create policy dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(p.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write policy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close policy: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace policy: %w", err)
	}
	return nil
}

func defaultReason(allowed bool) string {
	if allowed {
		return ReasonAllowed
	}
	return ReasonBlocked
}
