// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Trailhead Contributors

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/trailhead/trailhead/internal/config"
	"github.com/trailhead/trailhead/internal/store"
)

// NewMigrateCmd creates the migrate command tree.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(newStoreMigrator)
}

func newMigrateCmd(factory func(string) (Migrator, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply, roll back or inspect the embedded schema migrations.
Running migrate with no subcommand applies all pending migrations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, factory, migrateUp)
		},
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, factory, migrateUp)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, factory, func(out io.Writer, m Migrator) error {
					if err := m.Down(); err != nil {
						return oops.Code("MIGRATION_FAILED").With("operation", "migrate down").Wrap(err)
					}
					_, _ = fmt.Fprintln(out, "All migrations rolled back")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "steps N",
			Short: "Apply N migrations (negative N rolls back; pass -- before a negative N)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := parseForceVersion(args[0])
				if err != nil {
					return err
				}
				return withMigrator(cmd, factory, func(out io.Writer, m Migrator) error {
					if err := m.Steps(n); err != nil {
						return oops.Code("MIGRATION_FAILED").With("operation", "migrate steps").With("steps", n).Wrap(err)
					}
					return printVersion(out, m)
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, factory, printVersion)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, factory, printMigrationStatus)
			},
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Set the schema version without running migrations",
			Long: `Mark the schema as being at VERSION and clear the dirty flag.
Use after repairing a failed migration by hand.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := parseForceVersion(args[0])
				if err != nil {
					return err
				}
				return withMigrator(cmd, factory, func(out io.Writer, m Migrator) error {
					if err := m.Force(v); err != nil {
						return oops.Code("MIGRATION_FAILED").With("operation", "force version").With("version", v).Wrap(err)
					}
					_, _ = fmt.Fprintf(out, "Forced version %d\n", v)
					return nil
				})
			},
		},
	)
	return cmd
}

// withMigrator resolves the database URL, opens a migrator and runs fn.
func withMigrator(cmd *cobra.Command, factory func(string) (Migrator, error), fn func(io.Writer, Migrator) error) error {
	cfg, err := config.Load(config.LoadOptions{Path: configFile, Flags: cmd.Flags(), Partial: true})
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required (set --database-url or TRAILHEAD_DATABASE__URL)")
	}

	m, err := factory(cfg.Database.URL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "open migrator").Wrap(err)
	}
	defer func() { _ = m.Close() }()

	return fn(cmd.OutOrStdout(), m)
}

func migrateUp(out io.Writer, m Migrator) error {
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "migrate up").Wrap(err)
	}
	_, _ = fmt.Fprintln(out, "Migrations completed successfully")
	return printVersion(out, m)
}

func printVersion(out io.Writer, m Migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "read version").Wrap(err)
	}
	if dirty {
		_, _ = fmt.Fprintf(out, "Schema version: %d (dirty)\n", v)
		return nil
	}
	_, _ = fmt.Fprintf(out, "Schema version: %d\n", v)
	return nil
}

func printMigrationStatus(out io.Writer, m Migrator) error {
	st, err := m.Status()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "migration status").Wrap(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current version: %d", st.Current)
	if st.Dirty {
		b.WriteString(" (dirty)")
	}
	b.WriteString("\n")
	for _, v := range st.Applied {
		fmt.Fprintf(&b, "  [applied] %s\n", migrationLabel(v))
	}
	for _, v := range st.Pending {
		fmt.Fprintf(&b, "  [pending] %s\n", migrationLabel(v))
	}
	_, err = io.WriteString(out, b.String())
	return err
}

func migrationLabel(v uint) string {
	name, err := store.MigrationName(v)
	if err != nil || name == "" {
		return fmt.Sprintf("%06d", v)
	}
	return name
}

// parseForceVersion parses a signed integer argument, tolerating
// surrounding whitespace and trailing junk the way fmt.Sscanf does.
func parseForceVersion(arg string) (int, error) {
	var v int
	if _, err := fmt.Sscanf(strings.TrimSpace(arg), "%d", &v); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("arg", arg).Errorf("invalid version %q: must be an integer", arg)
	}
	return v, nil
}
