// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package main

import (
	"github.com/spf13/cobra"
)

// configFile is the global --config flag shared by every subcommand.
var configFile string

// NewRootCmd creates the root command for the Trailhead CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trailhead",
		Short: "Trailhead - accounts and sessions for the tour booking service",
		Long: `Trailhead serves signup, login, password recovery and session
checks for the tour booking service, backed by PostgreSQL.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
