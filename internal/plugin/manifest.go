// Package plugin provides the BizBox plugin registry: manifest
// validation, dependency compatibility checking, and lifecycle
// management for in-process feature plugins.
package plugin

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Manifest is the static declaration of a plugin's identity and
// contract, typically loaded from a plugin.yaml file.
type Manifest struct {
	ID           string            `yaml:"id" json:"id"`
	Name         string            `yaml:"name" json:"name"`
	Version      string            `yaml:"version" json:"version"`
	Description  string            `yaml:"description" json:"description"`
	Author       string            `yaml:"author" json:"author"`
	Dependencies map[string]string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	// PeerDependencies are expected to be compatible when present but
	// their absence only produces warnings.
	PeerDependencies map[string]string `yaml:"peer-dependencies,omitempty" json:"peerDependencies,omitempty"`
	Routes           []Route           `yaml:"routes,omitempty" json:"routes,omitempty"`
	Permissions      []Permission      `yaml:"permissions,omitempty" json:"permissions,omitempty"`
	Homepage         string            `yaml:"homepage,omitempty" json:"homepage,omitempty"`
	Repository       string            `yaml:"repository,omitempty" json:"repository,omitempty"`
	License          string            `yaml:"license,omitempty" json:"license,omitempty"`
}

// Route declares an HTTP endpoint the host should mount for a plugin.
// The handler is a symbolic name resolved by the host's router.
type Route struct {
	Method  string `yaml:"method" json:"method"`
	Path    string `yaml:"path" json:"path"`
	Handler string `yaml:"handler" json:"handler"`
}

// Permission declares access a plugin requires on a host resource.
type Permission struct {
	Resource    string   `yaml:"resource" json:"resource"`
	Actions     []string `yaml:"actions" json:"actions"`
	Description string   `yaml:"description" json:"description"`
}

// idPattern validates plugin and dependency ids: lowercase letters,
// digits, and hyphens only.
var idPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// versionPattern validates versions as strict MAJOR.MINOR.PATCH.
// Pre-release and build metadata suffixes are rejected.
var versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// routeMethods are the HTTP methods a route may declare.
var routeMethods = map[string]bool{
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"DELETE": true,
	"PATCH":  true,
}

// ParseManifest parses and validates a plugin.yaml file.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	if result := ValidateManifest(&m); !result.Valid {
		return nil, result.Err()
	}

	return &m, nil
}
