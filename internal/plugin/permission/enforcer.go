// Package permission provides runtime permission enforcement for
// plugins based on the permissions declared in their manifests.
//
// A declared permission {resource, actions} grants "resource.action"
// for each action. Action patterns use gobwas/glob with '.' as the
// segment separator, so a manifest may declare actions like "*" to
// cover every action on a resource.
package permission

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gobwas/glob"

	"github.com/bizbox/bizbox/internal/plugin"
)

// compiledGrant holds a pattern and its compiled glob.
type compiledGrant struct {
	pattern string
	glob    glob.Glob
}

// Enforcer checks plugin permissions at runtime.
//
// Enforcer is safe for concurrent use. The zero value is ready to use
// without calling NewEnforcer.
type Enforcer struct {
	grants map[string][]compiledGrant // plugin id -> compiled grants
	mu     sync.RWMutex
}

// NewEnforcer creates a permission enforcer.
func NewEnforcer() *Enforcer {
	return &Enforcer{
		grants: make(map[string][]compiledGrant),
	}
}

// SetGrants configures grants for a plugin from its declared manifest
// permissions. Each {resource, actions} pair compiles to one grant per
// action, matched against "resource.action" keys.
//
// The manifest data is compiled before any state changes, so a
// validation failure leaves the enforcer untouched. Calling SetGrants
// again for the same plugin replaces all previous grants.
func (e *Enforcer) SetGrants(pluginID string, permissions []plugin.Permission) error {
	if pluginID == "" {
		return errors.New("plugin id cannot be empty")
	}

	var compiled []compiledGrant
	for i, perm := range permissions {
		if perm.Resource == "" {
			return fmt.Errorf("permission %d: empty resource", i)
		}
		for _, action := range perm.Actions {
			if action == "" {
				return fmt.Errorf("permission %d (%s): empty action", i, perm.Resource)
			}
			pattern := perm.Resource + "." + action
			g, err := glob.Compile(pattern, '.')
			if err != nil {
				return fmt.Errorf("permission %d (%q): %w", i, pattern, err)
			}
			compiled = append(compiled, compiledGrant{pattern: pattern, glob: g})
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.grants == nil {
		e.grants = make(map[string][]compiledGrant)
	}
	e.grants[pluginID] = compiled
	return nil
}

// Allowed reports whether the plugin may perform action on resource.
// Unknown plugins are never allowed.
func (e *Enforcer) Allowed(pluginID, resource, action string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	key := resource + "." + action
	for _, g := range e.grants[pluginID] {
		if g.glob.Match(key) {
			return true
		}
	}
	return false
}

// IsRegistered reports whether SetGrants has been called for a plugin.
// This distinguishes "plugin unknown" from "plugin lacks permission".
func (e *Enforcer) IsRegistered(pluginID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	_, ok := e.grants[pluginID]
	return ok
}

// RemoveGrants unregisters a plugin, removing all its grants. Safe to
// call for unknown plugins or on a zero-value Enforcer.
func (e *Enforcer) RemoveGrants(pluginID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.grants, pluginID)
}

// Grants returns a copy of the grant patterns for a plugin, or nil if
// the plugin is not registered.
func (e *Enforcer) Grants(pluginID string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	grants, ok := e.grants[pluginID]
	if !ok {
		return nil
	}
	patterns := make([]string, len(grants))
	for i, g := range grants {
		patterns[i] = g.pattern
	}
	return patterns
}
