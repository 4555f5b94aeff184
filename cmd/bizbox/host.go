// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BizBox Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/bizbox/bizbox/internal/config"
	"github.com/bizbox/bizbox/internal/enablement"
	"github.com/bizbox/bizbox/internal/logging"
	"github.com/bizbox/bizbox/internal/observability"
	"github.com/bizbox/bizbox/internal/plugin"
	"github.com/bizbox/bizbox/internal/plugin/permission"
	"github.com/bizbox/bizbox/pkg/errutil"
	"github.com/bizbox/bizbox/plugins/booking"
	"github.com/bizbox/bizbox/plugins/ecommerce"
	"github.com/bizbox/bizbox/plugins/media"
	"github.com/bizbox/bizbox/plugins/payments"
)

// dbConnectWait bounds the initial database connection retry loop.
const dbConnectWait = 30 * time.Second

// HostEnv is the environment handed to plugins during initialization.
type HostEnv struct {
	Tenant      string
	Permissions *permission.Enforcer
}

// Allowed reports whether a plugin may perform action on resource.
// Without an enforcer every action is allowed, which keeps plugin
// tests free of permission setup.
func (e *HostEnv) Allowed(pluginID, resource, action string) bool {
	if e == nil || e.Permissions == nil {
		return true
	}
	return e.Permissions.Allowed(pluginID, resource, action)
}

// NewHostCmd creates the host subcommand.
func NewHostCmd() *cobra.Command {
	var tenant string

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Start the plugin host process",
		Long: `Start the host process which registers the built-in plugins,
initializes the set enabled for the tenant, and serves observability
endpoints until shutdown.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHostWithDeps(cmd.Context(), cmd, tenant, nil)
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant slug to resolve enabled plugins for (requires db.url)")
	cmd.Flags().String("log.format", "", "log format (json or text)")
	cmd.Flags().String("log.level", "", "log level (debug, info, warn, error)")
	cmd.Flags().String("metrics.addr", "", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("db.url", "", "tenant enablement database URL")

	return cmd
}

// runHostWithDeps starts the host process with injectable dependencies.
// If deps is nil, default implementations are used.
func runHostWithDeps(ctx context.Context, cmd *cobra.Command, tenant string, deps *HostDeps) error {
	if deps == nil {
		deps = &HostDeps{}
	}
	if deps.ConfigLoader == nil {
		deps.ConfigLoader = func(path string) (config.Config, error) {
			return config.Load(path, cmd.Flags())
		}
	}
	if deps.StoreFactory == nil {
		deps.StoreFactory = func(ctx context.Context, dsn string) (EnablementStore, func(), error) {
			pool, err := enablement.Connect(ctx, dsn, dbConnectWait)
			if err != nil {
				return nil, nil, err
			}
			return enablement.NewPostgresStore(pool), pool.Close, nil
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, health observability.HealthFunc) ObservabilityServer {
			return observability.NewServer(addr, ready, health)
		}
	}

	cfg, err := deps.ConfigLoader(configFile)
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	logging.SetDefault("bizbox", version, cfg.Log.Format, cfg.Log.Level)

	slog.Info("starting host process",
		"tenant", tenant,
		"metrics_addr", cfg.Metrics.Addr,
	)

	registry := newRegistry(cfg.Plugins)
	enforcer := permission.NewEnforcer()
	if err := registerBuiltins(registry, enforcer); err != nil {
		return err
	}

	ids, cleanup, err := resolveEnabled(ctx, cfg, tenant, registry, deps)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	env := &HostEnv{Tenant: tenant, Permissions: enforcer}
	initialized := 0
	for _, id := range ids {
		if initErr := registry.Initialize(ctx, id, env); initErr != nil {
			errutil.LogError(slog.Default(), "plugin initialization failed", initErr)
			continue
		}
		initialized++
	}
	if initialized == 0 {
		return oops.Code("HOST_START_FAILED").Errorf("no plugins could be initialized")
	}

	slog.Info("plugins initialized", "requested", len(ids), "active", initialized)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr,
			func() bool { return registry.Health().Initialized },
			registry.Health,
		)
		obsErrChan, obsErr := obsServer.Start()
		if obsErr != nil {
			return oops.Code("HOST_START_FAILED").With("addr", cfg.Metrics.Addr).Wrap(obsErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Host process started")
	slog.Info("host ready", "plugins", registry.List())

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	disableAll(shutdownCtx, registry)

	if obsServer != nil {
		if stopErr := obsServer.Stop(shutdownCtx); stopErr != nil {
			slog.Warn("error stopping observability server", "error", stopErr)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// newRegistry builds a registry honoring the plugins configuration.
func newRegistry(cfg config.PluginsConfig) *plugin.Registry {
	var checkerOpts []plugin.CheckerOption
	if cfg.ConstraintMatching {
		checkerOpts = append(checkerOpts, plugin.WithConstraintMatching())
	}

	opts := []plugin.Option{
		plugin.WithChecker(plugin.NewChecker(checkerOpts...)),
		plugin.WithLogger(slog.Default()),
	}
	if cfg.StrictCompatibility {
		opts = append(opts, plugin.WithStrictCompatibility())
	}
	if cfg.CollectHandlerErrors {
		opts = append(opts, plugin.WithCollectedHookErrors())
	}
	return plugin.NewRegistry(opts...)
}

// registerBuiltins registers the built-in feature plugins and grants
// each one the permissions its manifest declares.
func registerBuiltins(registry *plugin.Registry, enforcer *permission.Enforcer) error {
	builtins := []struct {
		manifest func() (*plugin.Manifest, error)
		instance plugin.Plugin
	}{
		{payments.Manifest, payments.New()},
		{ecommerce.Manifest, ecommerce.New()},
		{booking.Manifest, booking.New()},
		{media.Manifest, media.New()},
	}

	for _, b := range builtins {
		manifest, err := b.manifest()
		if err != nil {
			return oops.Code("HOST_START_FAILED").Wrap(err)
		}
		if err := registry.Register(b.instance, manifest); err != nil {
			return oops.Code("HOST_START_FAILED").With("plugin_id", manifest.ID).Wrap(err)
		}
		if err := enforcer.SetGrants(manifest.ID, manifest.Permissions); err != nil {
			return oops.Code("HOST_START_FAILED").With("plugin_id", manifest.ID).Wrap(err)
		}
	}
	return nil
}

// resolveEnabled determines which plugin ids to initialize. With a
// tenant and a database URL the enablement store decides; otherwise the
// static config list applies, defaulting to every registered plugin.
func resolveEnabled(ctx context.Context, cfg config.Config, tenant string, registry *plugin.Registry, deps *HostDeps) ([]string, func(), error) {
	if tenant != "" && cfg.DB.URL != "" {
		store, cleanup, err := deps.StoreFactory(ctx, cfg.DB.URL)
		if err != nil {
			return nil, nil, oops.Code("HOST_START_FAILED").With("operation", "connect enablement store").Wrap(err)
		}
		ids, err := store.EnabledPlugins(ctx, tenant)
		if err != nil {
			cleanup()
			return nil, nil, oops.Code("HOST_START_FAILED").With("tenant", tenant).Wrap(err)
		}
		return ids, cleanup, nil
	}

	if len(cfg.Plugins.Enabled) > 0 {
		return cfg.Plugins.Enabled, nil, nil
	}
	return registry.List(), nil, nil
}

// disableAll disables every active plugin, logging failures.
func disableAll(ctx context.Context, registry *plugin.Registry) {
	for _, id := range registry.List() {
		if !registry.IsActive(id) {
			continue
		}
		if err := registry.Disable(ctx, id); err != nil {
			errutil.LogError(slog.Default(), "plugin disable failed", err)
		}
	}
}

// monitorServerErrors monitors a server's error channel and cancels the
// context on error so failures trigger graceful shutdown.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
