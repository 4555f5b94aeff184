package plugin

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// hookEntry is one registered handler for a hook name.
type hookEntry struct {
	owner string
	fn    HookFunc
}

// hookTable maps hook names to handlers in registration order.
type hookTable map[string][]hookEntry

func (t hookTable) removeOwner(owner string) {
	for name, entries := range t {
		kept := entries[:0]
		for _, e := range entries {
			if e.owner != owner {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(t, name)
		} else {
			t[name] = kept
		}
	}
}

// RegisterHook adds a handler for a named hook on behalf of a plugin.
// The plugin must be registered; handlers are invoked in registration
// order by ExecuteHook and removed when the plugin is disabled.
func (r *Registry) RegisterHook(pluginID, name string, fn HookFunc) error {
	if fn == nil {
		return oops.Code(CodeHookFailed).
			With("plugin_id", pluginID).
			With("hook", name).
			Errorf("hook handler cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[pluginID]; !exists {
		return oops.Code(CodeNotFound).With("plugin_id", pluginID).Wrap(ErrNotFound)
	}

	r.hooks[name] = append(r.hooks[name], hookEntry{owner: pluginID, fn: fn})
	return nil
}

// ExecuteHook invokes every handler registered for the hook name in
// registration order and returns their results positionally.
//
// By default execution is fail-fast: the first handler error aborts
// the call, returning the results collected so far alongside an error
// identifying the owning plugin. With WithCollectedHookErrors every
// handler runs and the joined errors are returned.
func (r *Registry) ExecuteHook(ctx context.Context, name string, args ...any) ([]any, error) {
	r.mu.RLock()
	entries := make([]hookEntry, len(r.hooks[name]))
	copy(entries, r.hooks[name])
	collect := r.collectHookErr
	r.mu.RUnlock()

	results := make([]any, 0, len(entries))
	var errs []error
	for _, entry := range entries {
		result, err := entry.fn(ctx, args...)
		if err != nil {
			hookExecutionsTotal.WithLabelValues(name, "error").Inc()
			wrapped := oops.Code(CodeHookFailed).
				With("plugin_id", entry.owner).
				With("hook", name).
				Wrapf(err, "hook %s handler from plugin %s", name, entry.owner)
			if !collect {
				return results, wrapped
			}
			errs = append(errs, wrapped)
			continue
		}
		hookExecutionsTotal.WithLabelValues(name, "ok").Inc()
		results = append(results, result)
	}

	return results, errors.Join(errs...)
}
