// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BizBox Contributors

package main

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bizbox/bizbox/internal/config"
	"github.com/bizbox/bizbox/internal/plugin"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dir]",
		Short: "Validate plugin manifests without starting the host",
		Long: `Validates every plugin.yaml found under the given directory
(default: the plugins directory from config) against the manifest
schema and the semantic rules.
Exits with code 0 on success, non-zero on failure.

Useful in CI pipelines to catch manifest errors early:
  bizbox validate ./plugins`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return runValidate(cmd, args[0])
			}
			cfg, err := config.Load(configFile, nil)
			if err != nil {
				return err
			}
			return runValidate(cmd, cfg.Plugins.Dir)
		},
	}
}

func runValidate(cmd *cobra.Command, dir string) error {
	manifests, err := findManifests(dir)
	if err != nil {
		return err
	}
	if len(manifests) == 0 {
		return fmt.Errorf("no plugin.yaml files found under %s", dir)
	}

	var failures []string
	for _, path := range manifests {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			failures = append(failures, fmt.Sprintf("  %s: %v", path, readErr))
			continue
		}

		if schemaErr := plugin.ValidateSchema(data); schemaErr != nil {
			failures = append(failures, fmt.Sprintf("  %s: %v", path, schemaErr))
			continue
		}

		manifest, parseErr := plugin.ParseManifest(data)
		if parseErr != nil {
			failures = append(failures, fmt.Sprintf("  %s: %v", path, parseErr))
			continue
		}

		result := plugin.ValidateManifest(manifest)
		for _, warning := range result.Warnings {
			slog.Warn("manifest warning", "path", path, "detail", warning)
		}
		if !result.Valid {
			failures = append(failures, fmt.Sprintf("  %s: %v", path, result.Err()))
			continue
		}
		cmd.Printf("ok: %s (%s@%s)\n", path, manifest.ID, manifest.Version)
	}

	if len(failures) > 0 {
		for _, f := range failures {
			slog.Error("manifest validation failed", "detail", f)
		}
		return fmt.Errorf("validation failed: %d of %d manifests invalid", len(failures), len(manifests))
	}

	slog.Info("all manifests valid", "count", len(manifests))
	return nil
}

// findManifests walks dir collecting plugin.yaml files.
func findManifests(dir string) ([]string, error) {
	var manifests []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == "plugin.yaml" {
			manifests = append(manifests, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	return manifests, nil
}
