package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"github.com/vksagar82/society-management-app-sub001/cmd/cmdutil"
	"github.com/vksagar82/society-management-app-sub001/internal/db/bunx"
	"github.com/vksagar82/society-management-app-sub001/internal/migrations"
	"github.com/vksagar82/society-management-app-sub001/internal/repository"
	scopesvc "github.com/vksagar82/society-management-app-sub001/internal/services/scopes"
)

var dbMigrateInit bool

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the society database schema",
	Long: `Create, upgrade and inspect the schema holding users, societies,
memberships, scope overrides, issues and the audit trail.`,
}

type migratorMode struct {
	init   bool // create the bookkeeping tables first
	locked bool // run under the migration lock
}

// withMigrator opens the database and hands fn a migrator over the registered migrations.
func withMigrator(cmd *cobra.Command, mode migratorMode, fn func(ctx context.Context, db *bun.DB, m *migrate.Migrator) error) error {
	ctx := cmd.Context()
	db, err := cmdutil.OpenDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer bunx.Close(db)

	m := migrate.NewMigrator(db, migrations.Migrations)
	if mode.init {
		if err := m.Init(ctx); err != nil {
			return fmt.Errorf("init migrations: %w", err)
		}
	}
	if mode.locked {
		if err := m.Lock(ctx); err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		defer func() {
			if err := m.Unlock(ctx); err != nil {
				logger.Warn("release migration lock", zap.Error(err))
			}
		}()
	}
	return fn(ctx, db, m)
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the migration bookkeeping tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd, migratorMode{init: true}, func(context.Context, *bun.DB, *migrate.Migrator) error {
			logger.Info("migration tables ready")
			return nil
		})
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Applies pending migrations under the migration lock, then checks that
every stored scope override names a known scope and role. serve refuses to
start while such records exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := migratorMode{init: dbMigrateInit, locked: true}
		return withMigrator(cmd, mode, func(ctx context.Context, db *bun.DB, m *migrate.Migrator) error {
			group, err := m.Migrate(ctx)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if group.IsZero() {
				logger.Info("schema is up to date")
			} else {
				logger.Info("schema migrated", zap.Int64("group", group.ID), zap.Int("migrations", len(group.Migrations)))
			}

			if err := scopesvc.ValidateStored(ctx, repository.NewBunScopeRecordRepository(db)); err != nil {
				return fmt.Errorf("schema migrated but scope overrides need attention: %w", err)
			}
			return nil
		})
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd, migratorMode{}, func(ctx context.Context, _ *bun.DB, m *migrate.Migrator) error {
			ms, err := m.MigrationsWithStatus(ctx)
			if err != nil {
				return fmt.Errorf("migration status: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MIGRATION\tGROUP\tAPPLIED AT")
			for _, mig := range ms {
				if mig.GroupID == 0 {
					fmt.Fprintf(w, "%s\t-\tpending\n", mig.Name)
					continue
				}
				fmt.Fprintf(w, "%s\t%d\t%s\n", mig.Name, mig.GroupID, mig.MigratedAt.Format("2006-01-02 15:04:05"))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d applied, %d pending\n", len(ms.Applied()), len(ms.Unapplied()))
			return nil
		})
	},
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back the last applied migration group",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd, migratorMode{locked: true}, func(ctx context.Context, _ *bun.DB, m *migrate.Migrator) error {
			group, err := m.Rollback(ctx)
			if err != nil {
				return fmt.Errorf("rollback: %w", err)
			}
			if group.IsZero() {
				logger.Info("nothing to roll back")
				return nil
			}
			logger.Info("rolled back", zap.Int64("group", group.ID), zap.Int("migrations", len(group.Migrations)))
			return nil
		})
	},
}

var dbUnlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Release a migration lock left by a crashed migrate or rollback",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd, migratorMode{}, func(ctx context.Context, _ *bun.DB, m *migrate.Migrator) error {
			if err := m.Unlock(ctx); err != nil {
				return fmt.Errorf("release migration lock: %w", err)
			}
			logger.Info("migration lock released")
			return nil
		})
	},
}

func init() {
	dbMigrateCmd.Flags().BoolVar(&dbMigrateInit, "init", false, "Create the bookkeeping tables first (fresh databases)")

	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbInitCmd, dbMigrateCmd, dbStatusCmd, dbRollbackCmd, dbUnlockCmd)
}
