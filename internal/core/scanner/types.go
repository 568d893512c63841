package scanner

import (
	"errors"
	"fmt"

	"github.com/zeusync/glowline/internal/core/kind"
)

var ErrNilSelector = errors.New("scanner: nil selector")

// Position is a block coordinate.
type Position struct {
	X, Y, Z int
}

func (p Position) Add(dx, dy, dz int) Position {
	return Position{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

func lessPosition(a, b Position) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

// World answers block queries for the loaded world. BlockKindAt reports
// false for air. When Config.Workers > 1 both methods are called from
// several goroutines at once.
type World interface {
	BlockKindAt(pos Position) (kind.Kind, bool)
	IsWithinVerticalBounds(y int) bool
}

// Host exposes the host engine's current world and player. World returns nil
// and PlayerBlockPosition returns false until the player has joined a world.
type Host interface {
	World() World
	PlayerBlockPosition() (Position, bool)
}

// Selector decides which block kinds are tracked.
type Selector interface {
	IsSelected(k kind.Kind) bool
}

// State is the scan state machine position.
type State uint8

const (
	StateIdle State = iota
	StateScanning
)

func (s State) String() string {
	if s == StateScanning {
		return "scanning"
	}
	return "idle"
}

const (
	MinRadius       = 0
	MaxRadius       = 64
	DefaultRadius   = 32
	MinInterval     = 5
	MaxInterval     = 100
	DefaultInterval = 20
	MaxWorkers      = 16
	DefaultWorkers  = 1
)

type Config struct {
	// Radius is the half-extent of the scanned cube in blocks.
	Radius int
	// IntervalTicks is the number of ticks between scan passes.
	IntervalTicks int
	// Workers splits a pass into X slabs scanned in parallel.
	Workers int
}

func DefaultConfig() Config {
	return Config{
		Radius:        DefaultRadius,
		IntervalTicks: DefaultInterval,
		Workers:       DefaultWorkers,
	}
}

// Normalize clamps every field into its valid range.
func (c Config) Normalize() Config {
	c.Radius = clamp(c.Radius, MinRadius, MaxRadius)
	c.IntervalTicks = clamp(c.IntervalTicks, MinInterval, MaxInterval)
	c.Workers = clamp(c.Workers, 1, MaxWorkers)
	return c
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
