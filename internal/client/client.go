// Package client is the composition root the host engine talks to. Every
// method except Start's background work runs on the host's main thread.
package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/glowline/internal/config"
	"github.com/zeusync/glowline/internal/core/catalog"
	"github.com/zeusync/glowline/internal/core/events/bus"
	"github.com/zeusync/glowline/internal/core/glow"
	"github.com/zeusync/glowline/internal/core/hud"
	"github.com/zeusync/glowline/internal/core/kind"
	"github.com/zeusync/glowline/internal/core/observability/log"
	"github.com/zeusync/glowline/internal/core/render"
	"github.com/zeusync/glowline/internal/core/scanner"
	"github.com/zeusync/glowline/internal/core/selection"
	"github.com/zeusync/glowline/internal/core/systems"
	"github.com/zeusync/glowline/internal/storage"
	sdk "github.com/zeusync/glowline/sdk/go/client"
)

var (
	ErrAlreadyStarted = errors.New("client already started")
	ErrNotStarted     = errors.New("client not started")
)

// System names registered on the tick manager.
const (
	SystemReload = "selection_reload"
	SystemScan   = "proximity_scan"
)

// Deps is everything New needs.
type Deps struct {
	Config     *config.Config
	Logger     log.Log
	Metrics    *prometheus.Registry
	Bus        bus.EventBus
	Registry   *selection.Registry
	Store      *storage.Store
	Catalog    *catalog.Catalog
	Index      *scanner.Index
	Glow       *glow.Policy
	Renderer   *render.Builder
	Toast      *hud.Toast
	Systems    *systems.Manager
	Permission *sdk.Client
	Host       scanner.Host
}

// Frame is what the renderer needs for one frame.
type Frame struct {
	Batches []render.Batch
	// Digest changes only when the scanned content changes.
	Digest    uint64
	Notice    hud.Notice
	HasNotice bool
}

type Client struct {
	Deps
	logger log.Log

	subs []bus.Subscription

	// 0 new, 1 running, 2 stopped
	started int32
	mu      sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
}

func New(d Deps) (*Client, error) {
	if d.Logger == nil {
		d.Logger = log.NewNop()
	}
	c := &Client{Deps: d, logger: d.Logger.With(log.String("component", "client"))}

	c.Registry.OnChange(func(ch selection.Change) {
		if err := c.Bus.Publish(bus.NewEvent(bus.SelectionChanged, "registry", ch)); err != nil {
			c.logger.Error("selection change handler failed", log.Error(err))
		}
	})
	sub, err := c.Store.Attach(c.Bus)
	if err != nil {
		return nil, err
	}
	c.subs = append(c.subs, sub)

	sub, err = c.Bus.Subscribe(bus.PermissionChanged, func(e bus.Event) error {
		allowed, _ := e.Data().(bool)
		c.logger.Info("permission changed", log.Bool("allowed", allowed))
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.subs = append(c.subs, sub)

	if err := c.Systems.Register(systems.Func{
		SystemName:     SystemReload,
		SystemPriority: systems.PriorityHighest,
		Fn:             c.applyReload,
	}); err != nil {
		return nil, err
	}
	if err := c.Systems.Register(systems.Func{
		SystemName:     SystemScan,
		SystemPriority: systems.PriorityNormal,
		Fn:             c.scan,
	}); err != nil {
		return nil, err
	}
	c.Systems.OnSystemError(func(name string, err error) {
		c.logger.Warn("system failed", log.String("system", name), log.Error(err))
	})
	return c, nil
}

// Start loads the persisted selection and starts the file watcher and the
// permission handshake in the background.
func (c *Client) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&c.started, 0, 1) {
		return ErrAlreadyStarted
	}

	outcome := c.Store.Load()
	sum := storage.Summarize(c.Config.Selection.File, c.Registry)
	c.logger.Info("selection loaded",
		log.String("outcome", outcome.String()),
		log.String("file", sum.File),
		log.Bool("outlines_enabled", sum.OutlinesEnabled),
		log.String("default_color", sum.DefaultColor),
		log.Int("items", sum.Items),
		log.Int("entities", sum.Entities),
		log.Int("blocks", sum.Blocks))
	for _, w := range sum.Warnings {
		c.logger.Warn(w)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g, gctx := errgroup.WithContext(runCtx)
	c.mu.Lock()
	c.cancel = cancel
	c.group = g
	c.mu.Unlock()

	if c.Config.Selection.Watch {
		g.Go(func() error { return c.Store.Watch(gctx) })
	}
	g.Go(func() error {
		return c.Permission.Join(gctx)
	})
	return nil
}

// OnJoin asks the server again, e.g. after the player changed servers.
func (c *Client) OnJoin(ctx context.Context) error {
	if atomic.LoadInt32(&c.started) != 1 {
		return ErrNotStarted
	}
	return c.Permission.Join(ctx)
}

// OnDisconnect forgets the server verdict and the scanned blocks.
func (c *Client) OnDisconnect() {
	c.Permission.Leave()
	c.Index.Clear()
}

// OnTick is called once per host tick.
func (c *Client) OnTick() error {
	return c.Systems.Tick()
}

func (c *Client) applyReload(uint64) error {
	select {
	case snap := <-c.Store.Reloads():
		c.Registry.Restore(snap)
		c.logger.Info("selection reloaded from disk")
		return c.Bus.Publish(bus.NewEvent(bus.SelectionReloaded, "storage", c.Registry.Stats()))
	default:
		return nil
	}
}

func (c *Client) scan(uint64) error {
	if !c.OutlinesActive() || c.Registry.Len(kind.CategoryBlock) == 0 {
		if !c.Index.Snapshot().Empty() {
			c.Index.Clear()
		}
		return nil
	}
	c.Index.OnTick()
	return nil
}

// OnRenderFrame returns the outlines to draw and the active notification.
func (c *Client) OnRenderFrame(cam render.Camera) Frame {
	var f Frame
	if c.OutlinesActive() {
		res := c.Index.Snapshot()
		f.Batches = c.Renderer.Build(res, c.world(), cam)
		f.Digest = res.Digest()
	}
	f.Notice, f.HasNotice = c.Toast.Frame()
	return f
}

func (c *Client) world() scanner.World {
	if c.Host == nil {
		return nil
	}
	return c.Host.World()
}

// ToggleAll flips the global outline switch and announces the new state.
func (c *Client) ToggleAll() bool {
	enabled := c.Registry.ToggleOutlines()
	c.Toast.Show(hud.OutlinesMessage(enabled))
	if err := c.Bus.Publish(bus.NewEvent(bus.OutlinesToggled, "client", enabled)); err != nil {
		c.logger.Error("outlines toggle handler failed", log.Error(err))
	}
	return enabled
}

// RegisterKinds adds kinds known to the host to the searchable catalogue.
func (c *Client) RegisterKinds(kinds ...kind.Kind) {
	c.Catalog.Add(kinds...)
}

// SelectMatching selects or deselects every catalogued kind of cat that
// matches query and saves once. It returns the number of matches.
func (c *Client) SelectMatching(cat kind.Category, query string, want bool) int {
	matches := c.Catalog.Search(cat, query)
	c.Registry.BeginBatch()
	for _, k := range matches {
		c.Registry.SetSelected(k, want, c.Registry.DefaultColor())
	}
	c.Registry.EndBatch()
	return len(matches)
}

// OutlinesActive is true when outlines are switched on and the server
// allows them.
func (c *Client) OutlinesActive() bool {
	return c.Glow.Active()
}

// Stop saves, leaves the server and waits for the background work. A stopped
// Client cannot be started again.
func (c *Client) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&c.started, 1, 2) {
		return ErrNotStarted
	}
	c.Registry.Flush()

	c.mu.Lock()
	cancel, g := c.cancel, c.group
	c.mu.Unlock()
	cancel()
	_ = c.Permission.Close()

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	for _, sub := range c.subs {
		_ = c.Bus.Unsubscribe(sub)
	}
	c.subs = nil
	st := c.Bus.Metrics()
	c.logger.Info("client stopped",
		log.Uint64("events_published", st.Published),
		log.Uint64("event_errors", st.Errors))
	return err
}
