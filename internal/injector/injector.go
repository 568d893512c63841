//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/glowline/internal/client"
	"github.com/zeusync/glowline/internal/config"
	"github.com/zeusync/glowline/internal/core/scanner"
	"github.com/zeusync/glowline/internal/server"
)

// InitializeClient builds a Client for host from cfg.
func InitializeClient(cfg *config.Config, host scanner.Host) (*client.Client, error) {
	wire.Build(client.ProviderSet)
	return nil, nil
}

// InitializeServer builds the permission server from cfg.
func InitializeServer(cfg *config.Config) (*server.App, error) {
	wire.Build(server.ProviderSet)
	return nil, nil
}
