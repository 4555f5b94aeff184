// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BizBox Contributors

package plugin

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
)

// Plugin is the capability set the registry requires of a feature
// plugin. Concrete plugins (booking, ecommerce, payments, media, test
// doubles) implement this interface; the registry never depends on
// concrete types.
type Plugin interface {
	// Initialize starts the plugin. The host facade is valid for the
	// lifetime of the plugin and is the only way a plugin may register
	// hooks or subscribe to events.
	Initialize(ctx context.Context, host Host) error

	// Destroy stops the plugin and releases its resources.
	Destroy(ctx context.Context) error
}

// Host is the registry-bound facade handed to a plugin during
// initialization. All interactions are scoped to the owning plugin's
// id; plugins never receive direct access to registry internals.
type Host interface {
	// PluginID returns the id of the plugin this host is bound to.
	PluginID() string

	// RegisterHook adds a handler for a named hook. Handlers run in
	// registration order when the hook is executed.
	RegisterHook(name string, fn HookFunc) error

	// SubscribeToEvent subscribes to events whose name matches the
	// pattern. Patterns use '.' as segment separator: "booking.*"
	// matches "booking.created" but not "booking.slot.held".
	SubscribeToEvent(pattern string, fn EventFunc) error

	// EmitEvent broadcasts an event through the registry, tagged with
	// this plugin's id as the source.
	EmitEvent(ctx context.Context, name string, payload any) error

	// ExecuteHook invokes a named hook through the registry, reaching
	// handlers registered by any plugin. This is how a plugin calls
	// into a dependency it declared in its manifest.
	ExecuteHook(ctx context.Context, name string, args ...any) ([]any, error)

	// Env returns the opaque environment supplied by the host process
	// (tenant identity, current user, permissions). Its shape is owned
	// by the caller of Initialize, not by the registry.
	Env() any

	// Logger returns a logger pre-scoped to the plugin.
	Logger() *slog.Logger
}

// HookFunc handles one invocation of a named hook.
type HookFunc func(ctx context.Context, args ...any) (any, error)

// EventFunc handles one delivered event.
type EventFunc func(ctx context.Context, event Event) error

// Event is the envelope delivered to event subscribers.
type Event struct {
	ID        ulid.ULID
	Name      string
	Timestamp time.Time
	// Source is the plugin id that emitted the event, or empty when
	// the host emitted it.
	Source  string
	Payload any
}

// Status is a plugin's lifecycle state.
type Status string

// Lifecycle states. Error and Disabled are terminal: leaving them
// requires re-registering the plugin.
const (
	StatusRegistered   Status = "registered"
	StatusInitializing Status = "initializing"
	StatusActive       Status = "active"
	StatusError        Status = "error"
	StatusDisabled     Status = "disabled"
)

// Record is the registry-owned wrapper around a registered plugin.
// Status transitions happen only through registry operations.
type Record struct {
	Manifest     *Manifest
	Instance     Plugin
	Status       Status
	RegisteredAt time.Time
}

// Info is a read-only snapshot of a plugin's record.
type Info struct {
	ID           string
	Name         string
	Version      string
	Status       Status
	RegisteredAt time.Time
}

// Health summarizes the registry's state.
type Health struct {
	TotalPlugins int            `json:"total_plugins"`
	Initialized  bool           `json:"initialized"`
	ByStatus     map[Status]int `json:"by_status"`
}
