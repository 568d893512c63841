package server

import (
	"errors"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeusync/glowline/internal/config"
	"github.com/zeusync/glowline/internal/core/observability/log"
	"github.com/zeusync/glowline/internal/core/observability/metrics"
)

// App is a ready-to-start permission server with its collaborators.
type App struct {
	Server  *Server
	Metrics *prometheus.Registry
	Logger  log.Log
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideMetricsRegistry,
	wire.Bind(new(prometheus.Registerer), new(*prometheus.Registry)),
	metrics.NewPermission,
	ProvidePolicy,
	ConfigFrom,
	Provide,
	wire.Struct(new(App), "*"),
)

func ProvideLogger(cfg *config.Config) log.Log {
	return log.New(cfg.LogLevel())
}

func ProvideMetricsRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ProvidePolicy loads the policy file. A malformed file is logged and the
// server keeps allowing.
func ProvidePolicy(cfg *config.Config, logger log.Log) (*Policy, error) {
	p := NewPolicy(cfg.Server.PolicyFile, logger)
	if err := p.Load(); err != nil && !errors.Is(err, ErrMalformedPolicy) {
		return nil, err
	}
	return p, nil
}

func Provide(cfg Config, policy *Policy, logger log.Log, m *metrics.Permission) (*Server, error) {
	return NewServer(cfg, policy, WithLogger(logger), WithMetrics(m))
}
