package plugin

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samber/oops"
)

// Registry owns the set of registered plugins, their lifecycle state,
// and their hook and event subscriptions. Construct one per host
// process (or per test) with NewRegistry; there is no package-level
// instance.
//
// Mutating operations are serialized by an internal mutex. The lock is
// never held across plugin callbacks (Initialize, Destroy, hook and
// event handlers), so plugins may call back into the registry from
// those callbacks.
type Registry struct {
	mu            sync.RWMutex
	records       map[string]*Record
	hooks         hookTable
	subscriptions subscriptionTable

	checker        *Checker
	strictCompat   bool
	collectHookErr bool
	logger         *slog.Logger
	clock          func() time.Time

	initialized bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithChecker sets the compatibility checker used by the registry.
func WithChecker(c *Checker) Option {
	return func(r *Registry) {
		r.checker = c
	}
}

// WithStrictCompatibility makes error-severity compatibility issues
// block initialization. By default the compatibility result is
// advisory: callers query CheckCompatibility and decide.
func WithStrictCompatibility() Option {
	return func(r *Registry) {
		r.strictCompat = true
	}
}

// WithCollectedHookErrors makes ExecuteHook run every handler and
// return the joined errors, instead of the default fail-fast behavior
// where the first failing handler aborts the call.
func WithCollectedHookErrors() Option {
	return func(r *Registry) {
		r.collectHookErr = true
	}
}

// WithLogger sets the registry's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty plugin registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		records: make(map[string]*Record),
		hooks:   make(hookTable),
		checker: NewChecker(),
		logger:  slog.Default(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.initialized = true
	return r
}

// Register validates the manifest and stores the plugin with status
// registered. The plugin is not started; call Initialize.
func (r *Registry) Register(instance Plugin, manifest *Manifest) error {
	if result := ValidateManifest(manifest); !result.Valid {
		return oops.Code(CodeValidationFailed).
			With("errors", result.Errors).
			Wrap(result.Err())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[manifest.ID]; exists {
		return oops.Code(CodeDuplicate).
			With("plugin_id", manifest.ID).
			Wrap(ErrDuplicate)
	}

	r.records[manifest.ID] = &Record{
		Manifest:     manifest,
		Instance:     instance,
		Status:       StatusRegistered,
		RegisteredAt: r.clock(),
	}
	registrationsTotal.Inc()
	r.updateStatusMetricsLocked()
	r.logger.Info("registered plugin",
		"plugin", manifest.ID,
		"version", manifest.Version)

	return nil
}

// Initialize brings a plugin to the active state, depth-first
// initializing its declared hard dependencies before it. A dependency
// failure fails the dependent. Initializing an already-active plugin
// is a no-op so dependency chains can be entered from multiple points.
//
// env is the opaque host environment (tenant, user, permissions)
// surfaced to the plugin through Host.Env.
func (r *Registry) Initialize(ctx context.Context, id string, env any) error {
	return r.initialize(ctx, id, env, nil)
}

func (r *Registry) initialize(ctx context.Context, id string, env any, chain []string) error {
	r.mu.Lock()
	record, exists := r.records[id]
	if !exists {
		r.mu.Unlock()
		return oops.Code(CodeNotFound).With("plugin_id", id).Wrap(ErrNotFound)
	}

	switch record.Status {
	case StatusActive:
		r.mu.Unlock()
		return nil
	case StatusInitializing:
		// Only reachable when Initialize re-enters through a dependency
		// cycle that compatibility checking did not gate.
		r.mu.Unlock()
		return oops.Code(CodeInitFailed).
			With("plugin_id", id).
			With("chain", chain).
			Errorf("plugin %s is already initializing (dependency cycle?)", id)
	case StatusError, StatusDisabled:
		// Terminal states: leaving them requires re-registering.
		status := record.Status
		r.mu.Unlock()
		return oops.Code(CodeInitFailed).
			With("plugin_id", id).
			With("status", string(status)).
			Errorf("plugin %s is %s and cannot be initialized", id, status)
	}

	if r.strictCompat {
		compat := r.checker.Check(record.Manifest, r.manifestsLocked())
		if !compat.Compatible {
			r.mu.Unlock()
			return oops.Code(CodeIncompatible).
				With("plugin_id", id).
				With("issues", compat.Errors()).
				Wrap(ErrIncompatible)
		}
	}

	record.Status = StatusInitializing
	manifest := record.Manifest
	instance := record.Instance
	r.mu.Unlock()

	fail := func(cause error) error {
		r.setStatus(id, StatusError)
		initializationsTotal.WithLabelValues("error").Inc()
		return oops.Code(CodeInitFailed).
			With("plugin_id", id).
			Wrapf(cause, "initialize plugin %s", id)
	}

	// Dependencies first, in stable order. The chain is carried for
	// diagnostics only; cycle detection belongs to the Checker.
	branch := append(append([]string{}, chain...), id)
	for _, depID := range sortedKeys(manifest.Dependencies) {
		if err := r.initialize(ctx, depID, env, branch); err != nil {
			return fail(err)
		}
	}

	if err := instance.Initialize(ctx, r.hostFor(id, env)); err != nil {
		return fail(err)
	}

	r.setStatus(id, StatusActive)
	initializationsTotal.WithLabelValues("ok").Inc()
	r.logger.Info("initialized plugin", "plugin", id)
	return nil
}

// Disable destroys an active plugin and removes its hook registrations
// and event subscriptions. Dependents that declared the plugin as a
// dependency are left active: disabling does not cascade, the caller
// decides what happens to dependents.
func (r *Registry) Disable(ctx context.Context, id string) error {
	r.mu.Lock()
	record, exists := r.records[id]
	if !exists {
		r.mu.Unlock()
		return oops.Code(CodeNotFound).With("plugin_id", id).Wrap(ErrNotFound)
	}
	if record.Status != StatusActive {
		status := record.Status
		r.mu.Unlock()
		return oops.Code(CodeNotActive).
			With("plugin_id", id).
			With("status", string(status)).
			Wrap(ErrNotActive)
	}
	instance := record.Instance
	r.mu.Unlock()

	err := instance.Destroy(ctx)

	r.mu.Lock()
	r.hooks.removeOwner(id)
	r.subscriptions.removeOwner(id)
	record.Status = StatusDisabled
	r.updateStatusMetricsLocked()
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("plugin destroy reported error", "plugin", id, "error", err)
	} else {
		r.logger.Info("disabled plugin", "plugin", id)
	}
	return nil
}

// CheckCompatibility evaluates the plugin's manifest against every
// registered manifest. Callers use this before Initialize when the
// registry is not configured for strict gating.
func (r *Registry) CheckCompatibility(id string) (CompatibilityResult, error) {
	r.mu.RLock()
	record, exists := r.records[id]
	if !exists {
		r.mu.RUnlock()
		return CompatibilityResult{}, oops.Code(CodeNotFound).With("plugin_id", id).Wrap(ErrNotFound)
	}
	manifest := record.Manifest
	available := r.manifestsLocked()
	r.mu.RUnlock()

	return r.checker.Check(manifest, available), nil
}

// Get returns the plugin instance for id.
func (r *Registry) Get(id string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[id]
	if !exists {
		return nil, oops.Code(CodeNotFound).With("plugin_id", id).Wrap(ErrNotFound)
	}
	return record.Instance, nil
}

// Info returns a read-only snapshot of a plugin's record.
func (r *Registry) Info(id string) (Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[id]
	if !exists {
		return Info{}, oops.Code(CodeNotFound).With("plugin_id", id).Wrap(ErrNotFound)
	}
	return Info{
		ID:           record.Manifest.ID,
		Name:         record.Manifest.Name,
		Version:      record.Manifest.Version,
		Status:       record.Status,
		RegisteredAt: record.RegisteredAt,
	}, nil
}

// IsActive reports whether the plugin exists and is active.
func (r *Registry) IsActive(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[id]
	return exists && record.Status == StatusActive
}

// List returns the ids of all registered plugins in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Health reports the registry's aggregate state.
func (r *Registry) Health() Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byStatus := make(map[Status]int)
	for _, record := range r.records {
		byStatus[record.Status]++
	}
	return Health{
		TotalPlugins: len(r.records),
		Initialized:  r.initialized,
		ByStatus:     byStatus,
	}
}

// manifestsLocked snapshots registered manifests. Callers hold r.mu.
func (r *Registry) manifestsLocked() map[string]*Manifest {
	available := make(map[string]*Manifest, len(r.records))
	for id, record := range r.records {
		available[id] = record.Manifest
	}
	return available
}

func (r *Registry) setStatus(id string, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record, exists := r.records[id]; exists {
		record.Status = status
		r.updateStatusMetricsLocked()
	}
}

func (r *Registry) updateStatusMetricsLocked() {
	counts := make(map[Status]int)
	for _, record := range r.records {
		counts[record.Status]++
	}
	for _, status := range []Status{StatusRegistered, StatusInitializing, StatusActive, StatusError, StatusDisabled} {
		pluginsByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
