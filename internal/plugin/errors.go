// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BizBox Contributors

package plugin

import (
	"errors"

	"github.com/samber/oops"
)

// Sentinel errors for registry operations. Callers match with
// errors.Is; the wrapping oops error carries the code and context.
var (
	// ErrNotFound is returned when an operation references an unknown
	// plugin id.
	ErrNotFound = errors.New("plugin not found")

	// ErrDuplicate is returned when a manifest id is already registered.
	ErrDuplicate = errors.New("plugin already registered")

	// ErrNotActive is returned when Disable is called on a plugin that
	// is not currently active.
	ErrNotActive = errors.New("plugin not active")

	// ErrIncompatible is returned when strict compatibility gating
	// blocks initialization.
	ErrIncompatible = errors.New("plugin dependencies incompatible")
)

// Error codes attached to oops errors raised by the registry.
const (
	CodeValidationFailed = "PLUGIN_VALIDATION_FAILED"
	CodeDuplicate        = "PLUGIN_DUPLICATE"
	CodeNotFound         = "PLUGIN_NOT_FOUND"
	CodeNotActive        = "PLUGIN_NOT_ACTIVE"
	CodeInitFailed       = "PLUGIN_INIT_FAILED"
	CodeIncompatible     = "PLUGIN_INCOMPATIBLE"
	CodeHookFailed       = "PLUGIN_HOOK_FAILED"
	CodeEventFailed      = "PLUGIN_EVENT_FAILED"
)

// FailedPluginID extracts the id of the plugin whose initialization
// failed from an error returned by Initialize. When a dependency chain
// fails, this identifies the plugin whose Initialize call raised the
// underlying error, not the entry point of the chain.
func FailedPluginID(err error) (string, bool) {
	var id string
	var found bool
	// Walk the whole chain and keep the deepest plugin_id: dependents
	// wrap their dependencies' errors, so the innermost id is the
	// plugin that actually failed.
	for err != nil {
		if oopsErr, ok := oops.AsOops(err); ok {
			if v, ok := oopsErr.Context()["plugin_id"].(string); ok {
				id = v
				found = true
			}
		}
		err = errors.Unwrap(err)
	}
	return id, found
}
