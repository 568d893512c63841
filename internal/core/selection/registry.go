// Package selection holds which kinds are outlined and in what colour.
//
// A Registry is not safe for concurrent mutation. It is owned by the host's
// main thread; background workers may read it only while nothing writes.
package selection

import (
	"sort"

	"github.com/zeusync/glowline/internal/core/color"
	"github.com/zeusync/glowline/internal/core/kind"
)

// Entry is the outline configuration of one kind.
type Entry struct {
	Enabled bool
	Color   color.ARGB
}

// Reason describes what triggered a change notification.
type Reason string

const (
	ReasonToggle       Reason = "toggle"
	ReasonColor        Reason = "color"
	ReasonDefaultColor Reason = "default_color"
	ReasonOutlines     Reason = "outlines"
	ReasonBatch        Reason = "batch"
	ReasonFlush        Reason = "flush"
)

// Change is delivered to the observer after a mutation, or once per batch.
type Change struct {
	Reason Reason
	// Kind is the zero Kind for batch, flush and registry-wide changes.
	Kind kind.Kind
}

type Registry struct {
	entries         map[kind.Kind]Entry
	defaultColor    color.ARGB
	outlinesEnabled bool

	batchOpen bool
	onChange  func(Change)
}

type Option func(*Registry)

func WithDefaultColor(c color.ARGB) Option {
	return func(r *Registry) { r.defaultColor = c }
}

func WithOutlinesEnabled(enabled bool) Option {
	return func(r *Registry) { r.outlinesEnabled = enabled }
}

// New returns an empty registry: nothing configured, outlines off, white
// default colour.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries:      make(map[kind.Kind]Entry),
		defaultColor: color.Default,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnChange registers the observer notified after mutations. Only one observer
// is kept; passing nil removes it.
func (r *Registry) OnChange(fn func(Change)) {
	r.onChange = fn
}

// Toggle inserts k as enabled with colorIfNew when it has no entry, otherwise
// flips its enabled flag. Entries are never removed.
func (r *Registry) Toggle(k kind.Kind, colorIfNew color.ARGB) {
	e, ok := r.entries[k]
	if !ok {
		r.entries[k] = Entry{Enabled: true, Color: colorIfNew}
	} else {
		e.Enabled = !e.Enabled
		r.entries[k] = e
	}
	r.changed(Change{Reason: ReasonToggle, Kind: k})
}

// SetSelected toggles k only when its selection state differs from want.
func (r *Registry) SetSelected(k kind.Kind, want bool, colorIfNew color.ARGB) {
	if r.IsSelected(k) == want {
		return
	}
	r.Toggle(k, colorIfNew)
}

// SetColor overwrites the colour of a configured kind. Unconfigured kinds
// cannot be coloured and are left untouched.
func (r *Registry) SetColor(k kind.Kind, c color.ARGB) {
	e, ok := r.entries[k]
	if !ok {
		return
	}
	e.Color = c
	r.entries[k] = e
	r.changed(Change{Reason: ReasonColor, Kind: k})
}

// CycleColor moves a configured kind to the next palette colour and returns
// the new colour. Unconfigured kinds report the default colour unchanged.
func (r *Registry) CycleColor(k kind.Kind) color.ARGB {
	e, ok := r.entries[k]
	if !ok {
		return r.defaultColor
	}
	next := color.Next(e.Color)
	r.SetColor(k, next)
	return next
}

func (r *Registry) IsSelected(k kind.Kind) bool {
	e, ok := r.entries[k]
	return ok && e.Enabled
}

// ColorOf returns the configured colour, or the default colour for kinds
// without an entry.
func (r *Registry) ColorOf(k kind.Kind) color.ARGB {
	if e, ok := r.entries[k]; ok {
		return e.Color
	}
	return r.defaultColor
}

// HasConfig reports whether k has an entry, enabled or not.
func (r *Registry) HasConfig(k kind.Kind) bool {
	_, ok := r.entries[k]
	return ok
}

func (r *Registry) Entry(k kind.Kind) (Entry, bool) {
	e, ok := r.entries[k]
	return e, ok
}

func (r *Registry) DefaultColor() color.ARGB {
	return r.defaultColor
}

func (r *Registry) SetDefaultColor(c color.ARGB) {
	r.defaultColor = c
	r.changed(Change{Reason: ReasonDefaultColor})
}

func (r *Registry) OutlinesEnabled() bool {
	return r.outlinesEnabled
}

func (r *Registry) SetOutlinesEnabled(enabled bool) {
	r.outlinesEnabled = enabled
	r.changed(Change{Reason: ReasonOutlines})
}

// ToggleOutlines flips the global switch and returns the new state.
func (r *Registry) ToggleOutlines() bool {
	r.SetOutlinesEnabled(!r.outlinesEnabled)
	return r.outlinesEnabled
}

// BeginBatch suppresses notifications until EndBatch. Calling it while a
// batch is open does nothing.
func (r *Registry) BeginBatch() {
	r.batchOpen = true
}

// EndBatch closes the open batch and notifies exactly once. Without an open
// batch it does nothing.
func (r *Registry) EndBatch() {
	if !r.batchOpen {
		return
	}
	r.batchOpen = false
	r.notify(Change{Reason: ReasonBatch})
}

func (r *Registry) InBatch() bool {
	return r.batchOpen
}

// Flush notifies the observer regardless of batch state, e.g. before exit.
func (r *Registry) Flush() {
	r.notify(Change{Reason: ReasonFlush})
}

// Kinds returns the configured kinds of a category in name order.
func (r *Registry) Kinds(cat kind.Category) []kind.Kind {
	out := make([]kind.Kind, 0)
	for k := range r.entries {
		if k.Category == cat {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len counts configured kinds of a category, enabled or not.
func (r *Registry) Len(cat kind.Category) int {
	n := 0
	for k := range r.entries {
		if k.Category == cat {
			n++
		}
	}
	return n
}

func (r *Registry) changed(c Change) {
	if r.batchOpen {
		return
	}
	r.notify(c)
}

func (r *Registry) notify(c Change) {
	if r.onChange != nil {
		r.onChange(c)
	}
}
