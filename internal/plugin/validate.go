package plugin

import (
	"fmt"
	"strings"

	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationResult reports the outcome of manifest or config
// validation. Errors block registration; warnings are advisory only.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (r *ValidationResult) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Valid = false
}

func (r *ValidationResult) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Err returns an error summarizing the blocking problems, or nil when
// the result is valid.
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("manifest validation failed: %s", strings.Join(r.Errors, "; "))
}

// ValidateManifest checks a manifest's declared metadata for
// structural and semantic correctness. It is a pure function: no
// registry state is consulted and nothing is mutated.
func ValidateManifest(m *Manifest) ValidationResult {
	result := ValidationResult{Valid: true}
	if m == nil {
		result.addError("manifest is nil")
		return result
	}

	required := []struct {
		field string
		value string
	}{
		{"id", m.ID},
		{"name", m.Name},
		{"version", m.Version},
		{"description", m.Description},
		{"author", m.Author},
	}
	for _, f := range required {
		if f.value == "" {
			result.addError("missing required field: %s", f.field)
		}
	}

	if m.ID != "" && !idPattern.MatchString(m.ID) {
		result.addError("id %q must contain only lowercase letters, numbers, and hyphens", m.ID)
	}
	if m.Version != "" && !versionPattern.MatchString(m.Version) {
		result.addError("version %q must be in MAJOR.MINOR.PATCH format", m.Version)
	}

	validateDeps(&result, "dependency", m.Dependencies)
	validateDeps(&result, "peer dependency", m.PeerDependencies)

	for i, route := range m.Routes {
		switch {
		case route.Method == "":
			result.addError("route %d: missing method", i)
		case !routeMethods[route.Method]:
			result.addError("route %d: invalid method %q", i, route.Method)
		}
		if route.Path == "" {
			result.addError("route %d: missing path", i)
		} else if !strings.HasPrefix(route.Path, "/") {
			result.addWarning("route %d: path %q should start with /", i, route.Path)
		}
		if route.Handler == "" {
			result.addError("route %d: missing handler", i)
		}
	}

	for i, perm := range m.Permissions {
		if perm.Resource == "" {
			result.addError("permission %d: missing resource", i)
		}
		if perm.Actions == nil {
			result.addError("permission %d: missing actions", i)
		}
		if perm.Description == "" {
			result.addError("permission %d: missing description", i)
		}
	}

	if m.Homepage == "" {
		result.addWarning("homepage is recommended")
	}
	if m.Repository == "" {
		result.addWarning("repository is recommended")
	}
	if m.License == "" {
		result.addWarning("license is recommended")
	}

	return result
}

// ValidateConfig checks a plugin configuration object. The base rules
// only constrain the well-known keys; when schema is non-nil the
// config is additionally validated against it.
func ValidateConfig(config map[string]any, schema *jschema.Schema) ValidationResult {
	result := ValidationResult{Valid: true}
	if config == nil {
		result.addError("config must be an object")
		return result
	}

	if enabled, ok := config["enabled"]; ok {
		if _, isBool := enabled.(bool); !isBool {
			result.addError("config.enabled must be a boolean")
		}
	}
	if settings, ok := config["settings"]; ok {
		if _, isMap := settings.(map[string]any); !isMap {
			result.addError("config.settings must be an object")
		}
	}

	if schema != nil {
		if err := schema.Validate(config); err != nil {
			result.addError("config schema validation failed: %v", err)
		}
	}

	return result
}

func validateDeps(result *ValidationResult, kind string, deps map[string]string) {
	// Map iteration order is random; sort so error output is stable.
	for _, id := range sortedKeys(deps) {
		if !idPattern.MatchString(id) {
			result.addError("%s id %q is invalid", kind, id)
		}
		if version := deps[id]; !versionPattern.MatchString(version) {
			result.addError("%s %s: version %q must be in MAJOR.MINOR.PATCH format", kind, id, version)
		}
	}
}
