package selection

import (
	"maps"

	"github.com/zeusync/glowline/internal/core/color"
	"github.com/zeusync/glowline/internal/core/kind"
)

// Snapshot is a detached copy of the registry state.
type Snapshot struct {
	OutlinesEnabled bool
	DefaultColor    color.ARGB
	Entries         map[kind.Kind]Entry
}

// DefaultSnapshot is the state of a registry that was never configured.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		DefaultColor: color.Default,
		Entries:      make(map[kind.Kind]Entry),
	}
}

func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		OutlinesEnabled: r.outlinesEnabled,
		DefaultColor:    r.defaultColor,
		Entries:         maps.Clone(r.entries),
	}
}

// Restore replaces the whole registry state. It does not notify: restoring
// is what persistence does, not a user edit.
func (r *Registry) Restore(s Snapshot) {
	r.outlinesEnabled = s.OutlinesEnabled
	r.defaultColor = s.DefaultColor
	r.entries = make(map[kind.Kind]Entry, len(s.Entries))
	for k, e := range s.Entries {
		r.entries[k] = e
	}
}

type Stats struct {
	OutlinesEnabled bool
	DefaultColor    color.ARGB
	Items           int
	Entities        int
	Blocks          int
}

func (s Stats) Total() int {
	return s.Items + s.Entities + s.Blocks
}

func (r *Registry) Stats() Stats {
	st := Stats{OutlinesEnabled: r.outlinesEnabled, DefaultColor: r.defaultColor}
	for k := range r.entries {
		switch k.Category {
		case kind.CategoryItem:
			st.Items++
		case kind.CategoryEntity:
			st.Entities++
		case kind.CategoryBlock:
			st.Blocks++
		}
	}
	return st
}

// Warnings lists suspicious but valid settings.
func (r *Registry) Warnings() []string {
	var out []string
	if r.defaultColor == 0 {
		out = append(out, "default color is 0 (transparent), new outlines may be invisible")
	}
	return out
}
