// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BizBox Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/bizbox/bizbox/internal/config"
	"github.com/bizbox/bizbox/internal/enablement"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run tenant enablement database migrations",
		Long:  `Run all pending tenant enablement migrations against the PostgreSQL database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, down)
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back all migrations (destructive)")

	return cmd
}

// databaseURL resolves the database URL from the DATABASE_URL
// environment variable, falling back to the config file.
func databaseURL() (string, error) {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url, nil
	}
	if configFile != "" {
		cfg, err := config.Load(configFile, nil)
		if err != nil {
			return "", oops.Code("CONFIG_INVALID").Wrap(err)
		}
		if cfg.DB.URL != "" {
			return cfg.DB.URL, nil
		}
	}
	return "", oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable or db.url config is required")
}

func runMigrate(cmd *cobra.Command, down bool) error {
	url, err := databaseURL()
	if err != nil {
		return err
	}

	migrator, err := enablement.NewMigrator(url)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			cmd.PrintErrln("warning: failed to close migrator:", closeErr)
		}
	}()

	if down {
		cmd.Println("Rolling back migrations...")
		if err := migrator.Down(); err != nil {
			return err
		}
		cmd.Println("Rollback completed successfully")
		return nil
	}

	cmd.Println("Running migrations...")
	if err := migrator.Up(); err != nil {
		return err
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	cmd.Printf("Migrations completed successfully (version %d, dirty %t)\n", version, dirty)
	return nil
}
