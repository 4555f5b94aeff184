package main

import (
	"context"

	"github.com/bizbox/bizbox/internal/config"
	"github.com/bizbox/bizbox/internal/enablement"
	"github.com/bizbox/bizbox/internal/observability"
)

// HostDeps contains injectable dependencies for the host command.
// All fields with nil values will use their default implementations.
type HostDeps struct {
	// StoreFactory connects to the tenant enablement database.
	// Default: enablement.Connect + enablement.NewPostgresStore
	StoreFactory func(ctx context.Context, dsn string) (EnablementStore, func(), error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, health observability.HealthFunc) ObservabilityServer

	// ConfigLoader loads the host configuration.
	// Default: config.Load
	ConfigLoader func(path string) (config.Config, error)
}

// EnablementStore wraps the methods the host uses from enablement.Store.
type EnablementStore interface {
	EnabledPlugins(ctx context.Context, tenantSlug string) ([]string, error)
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

var _ EnablementStore = (*enablement.PostgresStore)(nil)
var _ ObservabilityServer = (*observability.Server)(nil)
