package plugin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Severity classifies a compatibility issue.
type Severity string

// Issue severities.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue describes a single compatibility problem found while checking
// a manifest against the set of available plugins.
type Issue struct {
	Severity        Severity
	Message         string
	Dependency      string
	ExpectedVersion string
	ActualVersion   string
}

// CompatibilityResult reports whether a manifest's dependencies are
// satisfiable. Compatible is true iff no issue has error severity.
type CompatibilityResult struct {
	Compatible bool
	Issues     []Issue
}

// Errors returns only the error-severity issues.
func (r *CompatibilityResult) Errors() []Issue {
	var errs []Issue
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			errs = append(errs, issue)
		}
	}
	return errs
}

// Checker evaluates dependency compatibility between manifests.
//
// Version matching defaults to literal string equality, mirroring how
// plugin versions were compared historically. WithConstraintMatching
// switches to semver constraint satisfaction.
type Checker struct {
	constraints bool
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithConstraintMatching makes the checker interpret required versions
// as semver constraints (e.g. "1.2.3" satisfied by an exact match,
// "^1.2.0" by any compatible 1.x release) instead of comparing version
// strings literally.
func WithConstraintMatching() CheckerOption {
	return func(c *Checker) {
		c.constraints = true
	}
}

// NewChecker creates a compatibility checker.
func NewChecker(opts ...CheckerOption) *Checker {
	c := &Checker{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check determines whether the manifest's declared dependencies and
// peer dependencies are satisfiable against the available set, and
// whether the hard dependency graph reachable from it is acyclic.
func (c *Checker) Check(m *Manifest, available map[string]*Manifest) CompatibilityResult {
	result := CompatibilityResult{Compatible: true}

	for _, id := range sortedKeys(m.Dependencies) {
		required := m.Dependencies[id]
		dep, ok := available[id]
		if !ok {
			result.Issues = append(result.Issues, Issue{
				Severity:        SeverityError,
				Message:         fmt.Sprintf("required dependency %s is not available", id),
				Dependency:      id,
				ExpectedVersion: required,
			})
			continue
		}
		if !c.versionSatisfies(dep.Version, required) {
			result.Issues = append(result.Issues, Issue{
				Severity:        SeverityWarning,
				Message:         fmt.Sprintf("dependency %s version mismatch: requires %s, found %s", id, required, dep.Version),
				Dependency:      id,
				ExpectedVersion: required,
				ActualVersion:   dep.Version,
			})
		}
	}

	for _, id := range sortedKeys(m.PeerDependencies) {
		required := m.PeerDependencies[id]
		peer, ok := available[id]
		if !ok {
			result.Issues = append(result.Issues, Issue{
				Severity:        SeverityWarning,
				Message:         fmt.Sprintf("peer dependency %s is not available", id),
				Dependency:      id,
				ExpectedVersion: required,
			})
			continue
		}
		if !c.versionSatisfies(peer.Version, required) {
			result.Issues = append(result.Issues, Issue{
				Severity:        SeverityWarning,
				Message:         fmt.Sprintf("peer dependency %s version mismatch: requires %s, found %s", id, required, peer.Version),
				Dependency:      id,
				ExpectedVersion: required,
				ActualVersion:   peer.Version,
			})
		}
	}

	if cycle := findCycle(m.ID, m, available, []string{}); cycle != nil {
		result.Issues = append(result.Issues, Issue{
			Severity: SeverityError,
			Message:  fmt.Sprintf("circular dependency detected: %s", strings.Join(cycle, " -> ")),
		})
	}

	for _, issue := range result.Issues {
		if issue.Severity == SeverityError {
			result.Compatible = false
			break
		}
	}

	return result
}

// versionSatisfies reports whether an actual version satisfies a
// requirement.
func (c *Checker) versionSatisfies(actual, required string) bool {
	if !c.constraints {
		return actual == required
	}

	constraint, err := semver.NewConstraint(required)
	if err != nil {
		return actual == required
	}
	version, err := semver.NewVersion(actual)
	if err != nil {
		return actual == required
	}
	return constraint.Check(version)
}

// findCycle walks hard dependency edges depth-first from id, carrying
// the path of visited ids. The path is copied per branch so a diamond
// (two plugins sharing a dependency) is not reported as a cycle.
// Returns the cycle as an ordered chain, or nil.
func findCycle(id string, m *Manifest, available map[string]*Manifest, path []string) []string {
	for i, visited := range path {
		if visited == id {
			return append(append([]string{}, path[i:]...), id)
		}
	}

	if m == nil {
		return nil
	}

	branch := append(append([]string{}, path...), id)
	for _, depID := range sortedKeys(m.Dependencies) {
		if cycle := findCycle(depID, available[depID], available, branch); cycle != nil {
			return cycle
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
