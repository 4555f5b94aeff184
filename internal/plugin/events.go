package plugin

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// subscriptionEntry is one event subscription in registration order.
type subscriptionEntry struct {
	owner   string
	pattern string
	matcher glob.Glob
	fn      EventFunc
}

// subscriptionTable holds event subscriptions in registration order.
type subscriptionTable []subscriptionEntry

func (t *subscriptionTable) removeOwner(owner string) {
	kept := (*t)[:0]
	for _, e := range *t {
		if e.owner != owner {
			kept = append(kept, e)
		}
	}
	*t = kept
}

// SubscribeToEvent subscribes a plugin to events whose name matches
// the pattern. Patterns are compiled with '.' as the segment
// separator: '*' matches a single segment, '**' crosses segments, and
// a plain name matches exactly. Subscriptions are removed when the
// plugin is disabled.
func (r *Registry) SubscribeToEvent(pluginID, pattern string, fn EventFunc) error {
	if fn == nil {
		return oops.Code(CodeEventFailed).
			With("plugin_id", pluginID).
			With("pattern", pattern).
			Errorf("event handler cannot be nil")
	}

	matcher, err := glob.Compile(pattern, '.')
	if err != nil {
		return oops.Code(CodeEventFailed).
			With("plugin_id", pluginID).
			With("pattern", pattern).
			Wrapf(err, "invalid event pattern %q", pattern)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[pluginID]; !exists {
		return oops.Code(CodeNotFound).With("plugin_id", pluginID).Wrap(ErrNotFound)
	}

	r.subscriptions = append(r.subscriptions, subscriptionEntry{
		owner:   pluginID,
		pattern: pattern,
		matcher: matcher,
		fn:      fn,
	})
	return nil
}

// EmitEvent delivers an event to every matching subscriber, in
// subscription order, awaiting each handler before invoking the next
// so handler side effects stay reproducible. Handler errors follow the
// same policy as ExecuteHook: fail-fast by default, joined when the
// registry was built with WithCollectedHookErrors.
func (r *Registry) EmitEvent(ctx context.Context, name string, payload any) error {
	return r.emit(ctx, "", name, payload)
}

func (r *Registry) emit(ctx context.Context, source, name string, payload any) error {
	event := Event{
		ID:        ulid.Make(),
		Name:      name,
		Timestamp: r.clock(),
		Source:    source,
		Payload:   payload,
	}

	r.mu.RLock()
	matched := make([]subscriptionEntry, 0, len(r.subscriptions))
	for _, sub := range r.subscriptions {
		if sub.matcher.Match(name) {
			matched = append(matched, sub)
		}
	}
	collect := r.collectHookErr
	r.mu.RUnlock()

	eventsEmittedTotal.WithLabelValues(name).Inc()

	var errs []error
	for _, sub := range matched {
		if err := sub.fn(ctx, event); err != nil {
			wrapped := oops.Code(CodeEventFailed).
				With("plugin_id", sub.owner).
				With("event", name).
				With("event_id", event.ID.String()).
				Wrapf(err, "event %s handler from plugin %s", name, sub.owner)
			if !collect {
				return wrapped
			}
			errs = append(errs, wrapped)
		}
	}
	return errors.Join(errs...)
}

// hostFor builds the per-plugin facade handed to Initialize.
func (r *Registry) hostFor(id string, env any) Host {
	return &boundHost{registry: r, pluginID: id, env: env}
}

// boundHost scopes registry access to a single plugin.
type boundHost struct {
	registry *Registry
	pluginID string
	env      any
}

func (h *boundHost) PluginID() string {
	return h.pluginID
}

func (h *boundHost) RegisterHook(name string, fn HookFunc) error {
	return h.registry.RegisterHook(h.pluginID, name, fn)
}

func (h *boundHost) SubscribeToEvent(pattern string, fn EventFunc) error {
	return h.registry.SubscribeToEvent(h.pluginID, pattern, fn)
}

func (h *boundHost) EmitEvent(ctx context.Context, name string, payload any) error {
	return h.registry.emit(ctx, h.pluginID, name, payload)
}

func (h *boundHost) ExecuteHook(ctx context.Context, name string, args ...any) ([]any, error) {
	return h.registry.ExecuteHook(ctx, name, args...)
}

func (h *boundHost) Env() any {
	return h.env
}

func (h *boundHost) Logger() *slog.Logger {
	return h.registry.logger.With("plugin", h.pluginID)
}
