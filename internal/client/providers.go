package client

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeusync/glowline/internal/config"
	"github.com/zeusync/glowline/internal/core/catalog"
	"github.com/zeusync/glowline/internal/core/events/bus"
	"github.com/zeusync/glowline/internal/core/glow"
	"github.com/zeusync/glowline/internal/core/hud"
	"github.com/zeusync/glowline/internal/core/observability/log"
	"github.com/zeusync/glowline/internal/core/observability/metrics"
	"github.com/zeusync/glowline/internal/core/render"
	"github.com/zeusync/glowline/internal/core/scanner"
	"github.com/zeusync/glowline/internal/core/selection"
	"github.com/zeusync/glowline/internal/core/systems"
	"github.com/zeusync/glowline/internal/storage"
	sdk "github.com/zeusync/glowline/sdk/go/client"
)

// BlockedMessage is shown once when the server refuses outlines.
const BlockedMessage = "[More Outlines] This server doesn't allow the More Outlines mod"

// ProviderSet builds every dependency of Client from a config and a host.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideMetricsRegistry,
	wire.Bind(new(prometheus.Registerer), new(*prometheus.Registry)),
	metrics.NewScan,
	metrics.NewPermission,
	metrics.NewBus,
	ProvideEventBus,
	ProvideRegistry,
	ProvideStore,
	ProvideIndex,
	ProvideToast,
	ProvidePermission,
	ProvideGlow,
	ProvideRenderer,
	ProvideSystems,
	catalog.New,
	wire.Struct(new(Deps), "*"),
	New,
)

func ProvideLogger(cfg *config.Config) log.Log {
	return log.New(cfg.LogLevel())
}

// ProvideMetricsRegistry gives every Client its own registry so several
// clients can live in one process.
func ProvideMetricsRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ProvideEventBus exports delivery counts through m.
func ProvideEventBus(m *metrics.Bus) bus.EventBus {
	b := bus.New()
	b.AddObserver(m)
	return b
}

func ProvideRegistry() *selection.Registry {
	return selection.New()
}

func ProvideStore(cfg *config.Config, reg *selection.Registry, logger log.Log) (*storage.Store, error) {
	return storage.New(cfg.Selection.File, reg, storage.WithLogger(logger))
}

func ProvideIndex(cfg *config.Config, reg *selection.Registry, host scanner.Host, logger log.Log, m *metrics.Scan) (*scanner.Index, error) {
	return scanner.New(cfg.ScanConfig(), reg, host, scanner.WithLogger(logger), scanner.WithMetrics(m))
}

func ProvideToast(cfg *config.Config) *hud.Toast {
	return hud.NewToast(hud.WithDuration(cfg.HUD.NotificationDuration))
}

// ProvidePermission shows BlockedMessage on the first refusal.
func ProvidePermission(cfg *config.Config, logger log.Log, b bus.EventBus, m *metrics.Permission, toast *hud.Toast) (*sdk.Client, error) {
	state := sdk.NewPermissionState()
	state.OnBlocked(func(string) { toast.Show(BlockedMessage) })
	return sdk.NewClient(sdk.ConfigFrom(cfg),
		sdk.WithLogger(logger),
		sdk.WithEventBus(b),
		sdk.WithMetrics(m),
		sdk.WithState(state))
}

func ProvideGlow(reg *selection.Registry, perm *sdk.Client) *glow.Policy {
	return glow.NewPolicy(reg, glow.WithGate(perm.Allowed))
}

func ProvideRenderer(reg *selection.Registry) *render.Builder {
	return render.NewBuilder(reg)
}

func ProvideSystems(logger log.Log) *systems.Manager {
	return systems.NewManager(logger)
}
