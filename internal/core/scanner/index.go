// Package scanner keeps a snapshot of the selected blocks around the player.
//
// An Index is driven by the host's tick thread. Readers on any goroutine may
// call Snapshot at any time and always observe a complete Result.
package scanner

import (
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/glowline/internal/core/kind"
	"github.com/zeusync/glowline/internal/core/observability/log"
	"github.com/zeusync/glowline/internal/core/observability/metrics"
)

var ErrNilHost = errors.New("scanner: nil host")

type Index struct {
	cfg      Config
	selector Selector
	host     Host

	logger  log.Log
	metrics *metrics.Scan
	now     func() time.Time

	current atomic.Pointer[Result]
	state   atomic.Uint32
	ticks   int
}

type Option func(*Index)

func WithLogger(l log.Log) Option {
	return func(i *Index) { i.logger = l }
}

func WithMetrics(m *metrics.Scan) Option {
	return func(i *Index) { i.metrics = m }
}

// WithClock replaces time.Now for scan timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(i *Index) { i.now = now }
}

// New returns an idle index holding the empty result. The first OnTick scans.
func New(cfg Config, selector Selector, host Host, opts ...Option) (*Index, error) {
	if selector == nil {
		return nil, ErrNilSelector
	}
	if host == nil {
		return nil, ErrNilHost
	}
	idx := &Index{
		cfg:      cfg.Normalize(),
		selector: selector,
		host:     host,
		logger:   log.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = idx.logger.With(log.String("component", "scanner"))
	idx.current.Store(emptyResult)
	idx.ticks = idx.cfg.IntervalTicks
	return idx, nil
}

func (i *Index) Config() Config {
	return i.cfg
}

// SetConfig applies a new configuration. The tick counter is kept so a
// shorter interval takes effect on the next tick.
func (i *Index) SetConfig(cfg Config) {
	i.cfg = cfg.Normalize()
}

func (i *Index) State() State {
	return State(i.state.Load())
}

// Snapshot returns the last published result. It is never nil.
func (i *Index) Snapshot() *Result {
	return i.current.Load()
}

// OnTick advances the tick counter and runs a pass when the interval has
// elapsed. It reports whether a pass was published. A deferred pass leaves the
// counter due so the next tick retries.
func (i *Index) OnTick() bool {
	if i.ticks < i.cfg.IntervalTicks {
		i.ticks++
	}
	if i.ticks < i.cfg.IntervalTicks {
		return false
	}
	if !i.Refresh() {
		return false
	}
	i.ticks = 0
	return true
}

// Refresh scans the cube around the player and publishes a fresh Result.
// Without a world or a player it does nothing and returns false.
func (i *Index) Refresh() bool {
	world := i.host.World()
	if world == nil {
		i.metrics.Deferred()
		return false
	}
	origin, ok := i.host.PlayerBlockPosition()
	if !ok {
		i.metrics.Deferred()
		return false
	}

	i.state.Store(uint32(StateScanning))
	defer i.state.Store(uint32(StateIdle))

	started := i.now()
	b, queries := i.scan(world, origin)
	res := b.seal(origin, i.cfg.Radius, started)
	i.current.Store(res)

	elapsed := i.now().Sub(started)
	i.metrics.ObservePass(elapsed, queries, res.Total())
	i.logger.Debug("scan pass complete",
		log.String("origin", origin.String()),
		log.Int("radius", i.cfg.Radius),
		log.Int("kinds", res.Len()),
		log.Int("positions", res.Total()),
		log.Int("queries", queries),
		log.Duration("elapsed", elapsed),
	)
	return true
}

// Clear publishes the empty result and makes the next tick due.
func (i *Index) Clear() {
	i.current.Store(emptyResult)
	i.ticks = i.cfg.IntervalTicks
	i.metrics.Cleared()
}

func (i *Index) scan(world World, origin Position) (*builder, int) {
	r := i.cfg.Radius
	workers := i.cfg.Workers
	if width := 2*r + 1; workers > width {
		workers = width
	}
	if workers <= 1 {
		b := newBuilder()
		return b, i.scanSlab(world, origin, -r, r, b)
	}

	slabs := make([]*builder, workers)
	counts := make([]int, workers)
	width := 2*r + 1
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		lo := -r + w*width/workers
		hi := -r + (w+1)*width/workers - 1
		slabs[w] = newBuilder()
		g.Go(func() error {
			counts[w] = i.scanSlab(world, origin, lo, hi, slabs[w])
			return nil
		})
	}
	_ = g.Wait()

	merged := slabs[0]
	queries := counts[0]
	for w := 1; w < workers; w++ {
		merged.merge(slabs[w])
		queries += counts[w]
	}
	return merged, queries
}

// scanSlab walks dx in [lo, hi] and the full dy, dz range.
func (i *Index) scanSlab(world World, origin Position, lo, hi int, b *builder) int {
	r := i.cfg.Radius
	queries := 0
	for dy := -r; dy <= r; dy++ {
		if !world.IsWithinVerticalBounds(origin.Y + dy) {
			continue
		}
		for dx := lo; dx <= hi; dx++ {
			for dz := -r; dz <= r; dz++ {
				pos := origin.Add(dx, dy, dz)
				queries++
				k, solid := world.BlockKindAt(pos)
				if !solid || k.Category != kind.CategoryBlock {
					continue
				}
				if !i.selector.IsSelected(k) {
					continue
				}
				b.add(k, pos)
			}
		}
	}
	return queries
}
