// Package enablement stores which plugins are enabled for which
// tenant. The plugin registry itself is in-memory and rebuilt on
// process start; this store is the host-side configuration it is
// rebuilt from.
package enablement

import (
	"context"
	"errors"
	"time"
)

// ErrTenantExists is returned when creating a tenant whose slug is taken.
var ErrTenantExists = errors.New("tenant already exists")

// ErrTenantNotFound is returned when a tenant slug is unknown.
var ErrTenantNotFound = errors.New("tenant not found")

// Tenant is one BizBox customer account.
type Tenant struct {
	ID        int64
	Slug      string
	Name      string
	CreatedAt time.Time
}

// Enablement records one tenant/plugin pair.
type Enablement struct {
	TenantSlug string
	PluginID   string
	Enabled    bool
	UpdatedAt  time.Time
}

// Store persists tenant plugin enablement.
type Store interface {
	// CreateTenant registers a tenant. Returns ErrTenantExists when the
	// slug is taken.
	CreateTenant(ctx context.Context, slug, name string) (*Tenant, error)

	// SetEnabled records whether a plugin is enabled for a tenant,
	// creating or updating the pair. Returns ErrTenantNotFound for an
	// unknown tenant.
	SetEnabled(ctx context.Context, tenantSlug, pluginID string, enabled bool) error

	// EnabledPlugins returns the ids of plugins enabled for a tenant,
	// sorted. An unknown tenant yields ErrTenantNotFound.
	EnabledPlugins(ctx context.Context, tenantSlug string) ([]string, error)

	// IsEnabled reports whether a plugin is enabled for a tenant.
	// Unknown tenants and unrecorded pairs are both reported as
	// disabled.
	IsEnabled(ctx context.Context, tenantSlug, pluginID string) (bool, error)
}
