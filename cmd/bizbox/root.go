package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the BizBox CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bizbox",
		Short: "BizBox - a multi-tenant business platform",
		Long: `BizBox is a multi-tenant business platform whose features ship as
plugins: e-commerce, booking, payments, media, and tenant-authored
extensions, all managed by an in-process plugin registry.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewHostCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewValidateCmd())

	return cmd
}
