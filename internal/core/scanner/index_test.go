package scanner

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/glowline/internal/core/color"
	"github.com/zeusync/glowline/internal/core/kind"
	"github.com/zeusync/glowline/internal/core/observability/metrics"
	"github.com/zeusync/glowline/internal/core/selection"
)

var (
	diamond = kind.Block("diamond_ore")
	gold    = kind.Block("gold_ore")
	stone   = kind.Block("stone")
)

type fakeWorld struct {
	mu      sync.Mutex
	blocks  map[Position]kind.Kind
	minY    int
	maxY    int
	queried int
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{blocks: make(map[Position]kind.Kind), minY: -64, maxY: 319}
}

func (w *fakeWorld) set(k kind.Kind, ps ...Position) {
	for _, p := range ps {
		w.blocks[p] = k
	}
}

func (w *fakeWorld) BlockKindAt(p Position) (kind.Kind, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.queried++
	k, ok := w.blocks[p]
	return k, ok
}

func (w *fakeWorld) IsWithinVerticalBounds(y int) bool {
	return y >= w.minY && y <= w.maxY
}

type fakeHost struct {
	world  World
	player Position
	joined bool
}

func (h *fakeHost) World() World {
	return h.world
}

func (h *fakeHost) PlayerBlockPosition() (Position, bool) {
	return h.player, h.joined
}

func newIndex(t *testing.T, radius int, reg *selection.Registry, host Host, opts ...Option) *Index {
	t.Helper()
	idx, err := New(Config{Radius: radius, IntervalTicks: MinInterval, Workers: 1}, reg, host, opts...)
	require.NoError(t, err)
	return idx
}

func TestNewRejectsNilCollaborators(t *testing.T) {
	_, err := New(DefaultConfig(), nil, &fakeHost{})
	assert.ErrorIs(t, err, ErrNilSelector)

	_, err = New(DefaultConfig(), selection.New(), nil)
	assert.ErrorIs(t, err, ErrNilHost)
}

func TestConfigNormalize(t *testing.T) {
	cfg := Config{Radius: 500, IntervalTicks: 1, Workers: 0}.Normalize()
	assert.Equal(t, Config{Radius: MaxRadius, IntervalTicks: MinInterval, Workers: 1}, cfg)

	cfg = Config{Radius: -3, IntervalTicks: 1000, Workers: 99}.Normalize()
	assert.Equal(t, Config{Radius: MinRadius, IntervalTicks: MaxInterval, Workers: MaxWorkers}, cfg)
}

func TestRefreshRoundTrip(t *testing.T) {
	world := newFakeWorld()
	world.set(diamond, Position{0, 0, 0}, Position{1, 0, 0})
	world.set(stone, Position{0, -1, 0}, Position{1, -1, 0})

	reg := selection.New()
	reg.Toggle(diamond, color.White)
	idx := newIndex(t, 2, reg, &fakeHost{world: world, joined: true})

	require.True(t, idx.Refresh())
	assert.Equal(t, map[kind.Kind][]Position{
		diamond: {{0, 0, 0}, {1, 0, 0}},
	}, idx.Snapshot().Groups())

	reg.Toggle(diamond, color.White)
	require.True(t, idx.Refresh())
	assert.True(t, idx.Snapshot().Empty())
	assert.Empty(t, idx.Snapshot().Groups())
}

func TestRefreshDiscardsStalePositions(t *testing.T) {
	world := newFakeWorld()
	world.set(diamond, Position{5, 0, 0})

	reg := selection.New()
	reg.Toggle(diamond, color.White)
	host := &fakeHost{world: world, joined: true}
	idx := newIndex(t, 8, reg, host)

	require.True(t, idx.Refresh())
	assert.True(t, idx.Snapshot().Contains(diamond, Position{5, 0, 0}))

	host.player = Position{-20, 0, 0}
	require.True(t, idx.Refresh())
	assert.False(t, idx.Snapshot().Contains(diamond, Position{5, 0, 0}))
	assert.True(t, idx.Snapshot().Empty())
}

func TestRefreshNeverTracksAir(t *testing.T) {
	world := newFakeWorld()
	world.set(diamond, Position{1, 1, 1})

	reg := selection.New()
	reg.Toggle(diamond, color.White)
	idx := newIndex(t, 3, reg, &fakeHost{world: world, joined: true})

	require.True(t, idx.Refresh())
	res := idx.Snapshot()
	assert.Equal(t, 1, res.Total())
	for _, k := range res.Kinds() {
		for _, p := range res.Positions(k) {
			_, solid := world.blocks[p]
			assert.True(t, solid, "air at %s", p)
		}
	}
}

func TestRefreshRadiusZero(t *testing.T) {
	world := newFakeWorld()
	player := Position{10, 64, -3}
	world.set(gold, player, player.Add(1, 0, 0))

	reg := selection.New()
	reg.Toggle(gold, color.White)
	idx := newIndex(t, 0, reg, &fakeHost{world: world, player: player, joined: true})

	require.True(t, idx.Refresh())
	assert.Equal(t, map[kind.Kind][]Position{gold: {player}}, idx.Snapshot().Groups())
	assert.Equal(t, 1, world.queried)
}

func TestRefreshSkipsOutOfBoundsLayers(t *testing.T) {
	world := newFakeWorld()
	world.minY, world.maxY = 0, 1

	reg := selection.New()
	idx := newIndex(t, 2, reg, &fakeHost{world: world, joined: true})

	require.True(t, idx.Refresh())
	assert.Equal(t, 2*5*5, world.queried)
}

func TestRefreshIgnoresUnconfiguredAndDisabledKinds(t *testing.T) {
	world := newFakeWorld()
	world.set(diamond, Position{0, 0, 0})
	world.set(gold, Position{1, 0, 0})
	world.set(stone, Position{2, 0, 0})

	reg := selection.New()
	reg.Toggle(diamond, color.White)
	reg.Toggle(gold, color.White)
	reg.Toggle(gold, color.White)
	idx := newIndex(t, 2, reg, &fakeHost{world: world, joined: true})

	require.True(t, idx.Refresh())
	assert.Equal(t, []kind.Kind{diamond}, idx.Snapshot().Kinds())
}

func TestRefreshDeferredWithoutPlayer(t *testing.T) {
	reg := selection.New()
	m := metrics.NewScan(prometheus.NewRegistry())

	host := &fakeHost{}
	idx := newIndex(t, 2, reg, host, WithMetrics(m))
	assert.False(t, idx.Refresh())
	assert.False(t, idx.OnTick())

	host.world = newFakeWorld()
	assert.False(t, idx.OnTick(), "no player yet")

	host.joined = true
	assert.True(t, idx.OnTick(), "deferred pass runs on the next tick")
	assert.Equal(t, StateIdle, idx.State())
}

func TestOnTickInterval(t *testing.T) {
	world := newFakeWorld()
	idx := newIndex(t, 1, selection.New(), &fakeHost{world: world, joined: true})

	assert.True(t, idx.OnTick(), "first tick scans")
	for n := 1; n < MinInterval; n++ {
		assert.False(t, idx.OnTick(), "tick %d", n)
	}
	assert.True(t, idx.OnTick())

	idx.Clear()
	assert.True(t, idx.OnTick(), "clear makes the next tick due")
}

func TestClearPublishesEmptyResult(t *testing.T) {
	world := newFakeWorld()
	world.set(diamond, Position{0, 0, 0})
	reg := selection.New()
	reg.Toggle(diamond, color.White)
	idx := newIndex(t, 1, reg, &fakeHost{world: world, joined: true})

	require.True(t, idx.Refresh())
	before := idx.Snapshot()
	require.False(t, before.Empty())

	idx.Clear()
	assert.True(t, idx.Snapshot().Empty())
	assert.Equal(t, 1, before.Total(), "published results are not modified")
}

func TestWorkersProduceSameResult(t *testing.T) {
	world := newFakeWorld()
	for x := -6; x <= 6; x += 2 {
		world.set(diamond, Position{x, x / 2, -x})
		world.set(gold, Position{x + 1, 0, 3})
	}

	reg := selection.New()
	reg.Toggle(diamond, color.White)
	reg.Toggle(gold, color.White)
	host := &fakeHost{world: world, player: Position{0, 0, 0}, joined: true}

	single, err := New(Config{Radius: 6, IntervalTicks: 20, Workers: 1}, reg, host)
	require.NoError(t, err)
	require.True(t, single.Refresh())

	for _, workers := range []int{2, 3, 4, 13, 16} {
		parallel, err := New(Config{Radius: 6, IntervalTicks: 20, Workers: workers}, reg, host)
		require.NoError(t, err)
		require.True(t, parallel.Refresh())
		assert.Equal(t, single.Snapshot().Groups(), parallel.Snapshot().Groups(), "workers=%d", workers)
		assert.Equal(t, single.Snapshot().Digest(), parallel.Snapshot().Digest(), "workers=%d", workers)
	}
}

func TestResultMetadata(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	world := newFakeWorld()
	player := Position{3, 4, 5}
	idx := newIndex(t, 2, selection.New(), &fakeHost{world: world, player: player, joined: true},
		WithClock(func() time.Time { return at }))

	require.True(t, idx.Refresh())
	res := idx.Snapshot()
	assert.Equal(t, player, res.Origin())
	assert.Equal(t, 2, res.Radius())
	assert.Equal(t, at, res.ScannedAt())
}

func TestDigestIgnoresOrigin(t *testing.T) {
	world := newFakeWorld()
	world.set(diamond, Position{0, 0, 0})
	reg := selection.New()
	reg.Toggle(diamond, color.White)
	host := &fakeHost{world: world, joined: true}
	idx := newIndex(t, 4, reg, host)

	require.True(t, idx.Refresh())
	first := idx.Snapshot().Digest()

	host.player = Position{1, 0, 0}
	require.True(t, idx.Refresh())
	assert.Equal(t, first, idx.Snapshot().Digest())

	world.set(diamond, Position{0, 1, 0})
	require.True(t, idx.Refresh())
	assert.NotEqual(t, first, idx.Snapshot().Digest())
}
