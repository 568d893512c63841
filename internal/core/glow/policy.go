// Package glow decides whether an entity's glow flag is overridden and with
// which outline colour.
//
// Rules, in order:
//   - outlines off (globally or by the server): configured kinds are forced
//     off, everything else is left to the game;
//   - a configured item stack decides for a dropped item entity;
//   - a configured entity type decides for itself;
//   - otherwise the game decides.
package glow

import (
	"github.com/zeusync/glowline/internal/core/color"
	"github.com/zeusync/glowline/internal/core/kind"
)

type Decision uint8

const (
	NoOverride Decision = iota
	ForceOn
	ForceOff
)

func (d Decision) String() string {
	switch d {
	case ForceOn:
		return "force_on"
	case ForceOff:
		return "force_off"
	default:
		return "no_override"
	}
}

// Target is an entity in the world. Item is set for dropped item stacks and
// zero otherwise.
type Target struct {
	Entity kind.Kind
	Item   kind.Kind
}

func (t Target) isItemStack() bool {
	return !t.Item.IsZero()
}

// Source is the read side of the selection registry.
type Source interface {
	IsSelected(k kind.Kind) bool
	HasConfig(k kind.Kind) bool
	ColorOf(k kind.Kind) color.ARGB
	OutlinesEnabled() bool
}

type Policy struct {
	src     Source
	allowed func() bool
}

type Option func(*Policy)

// WithGate adds a second switch, typically the server permission, that must
// also be on for outlines to show.
func WithGate(allowed func() bool) Option {
	return func(p *Policy) { p.allowed = allowed }
}

func NewPolicy(src Source, opts ...Option) *Policy {
	p := &Policy{src: src}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Active reports whether outlines are effectively on.
func (p *Policy) Active() bool {
	if !p.src.OutlinesEnabled() {
		return false
	}
	return p.allowed == nil || p.allowed()
}

func (p *Policy) Decide(t Target) Decision {
	if !p.Active() {
		if p.configured(t) {
			return ForceOff
		}
		return NoOverride
	}
	if t.isItemStack() && p.src.HasConfig(t.Item) {
		return decision(p.src.IsSelected(t.Item))
	}
	if p.src.HasConfig(t.Entity) {
		return decision(p.src.IsSelected(t.Entity))
	}
	return NoOverride
}

// OutlineColor returns the colour to draw t with, alpha promoted to opaque.
// It reports false when t should not be outlined by this mod.
func (p *Policy) OutlineColor(t Target) (color.ARGB, bool) {
	if !p.Active() {
		return 0, false
	}
	if t.isItemStack() && p.src.IsSelected(t.Item) {
		return p.src.ColorOf(t.Item).Opaque(), true
	}
	if p.src.IsSelected(t.Entity) {
		return p.src.ColorOf(t.Entity).Opaque(), true
	}
	return 0, false
}

func (p *Policy) configured(t Target) bool {
	if t.isItemStack() {
		return p.src.HasConfig(t.Item)
	}
	return p.src.HasConfig(t.Entity)
}

func decision(selected bool) Decision {
	if selected {
		return ForceOn
	}
	return ForceOff
}
