// Command migrate manages the schema of the tables the API owns.
//
// Usage:
//
//	migrate up
//	migrate down
//	migrate steps 1
//	migrate steps -- -1
//	migrate version
//	migrate force 2
//	migrate create add_dashboard_tags --path ./migrations
//	migrate list
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/erp/gestao/internal/infrastructure/config"
	"github.com/erp/gestao/internal/infrastructure/logger"
	"github.com/erp/gestao/internal/infrastructure/migration"
	"github.com/erp/gestao/internal/infrastructure/persistence"
	"github.com/erp/gestao/migrations"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	migrationsPath string
	logLevel       string

	log *zap.Logger
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:           "migrate",
		Short:         "Apply schema migrations for apps.dashboards and drive.arquivos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			level := cfg.Log.Level
			if logLevel != "" {
				level = logLevel
			}
			log = logger.Must(logger.Config{
				Level:   level,
				Format:  cfg.Log.Format,
				Output:  "stderr",
				Service: cfg.App.Name + "-migrate",
				Env:     cfg.App.Env,
			})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log != nil {
				_ = log.Sync()
			}
		},
	}

	upCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), (*migration.Migrator).Up)
		},
	}

	downCmd = &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), (*migration.Migrator).Down)
		},
	}

	stepsCmd = &cobra.Command{
		Use:   "steps N",
		Short: "Apply N migrations, or roll back when N is negative (use -- before negative values)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			return withMigrator(cmd.Context(), func(m *migration.Migrator) error { return m.Steps(n) })
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the applied migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *migration.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
				return nil
			})
		},
	}

	forceCmd = &cobra.Command{
		Use:   "force V",
		Short: "Mark version V as applied and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < -1 {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return withMigrator(cmd.Context(), func(m *migration.Migrator) error { return m.Force(v) })
		},
	}

	createCmd = &cobra.Command{
		Use:   "create NAME",
		Short: "Create an empty up/down migration pair in --path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if migrationsPath == "" {
				return fmt.Errorf("--path is required to create migrations")
			}
			f, err := migration.Create(migrationsPath, args[0])
			if err != nil {
				return err
			}
			log.Info("migration created",
				zap.Uint("version", f.Version),
				zap.String("up", f.UpPath),
				zap.String("down", f.DownPath),
			)
			return nil
		},
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List known migrations without touching the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var src fs.FS = migrations.FS
			if migrationsPath != "" {
				src = os.DirFS(migrationsPath)
			}
			files, err := migration.List(src)
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintf(cmd.OutOrStdout(), "%06d %s\n", f.Version, f.Name)
			}
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&migrationsPath, "path", "", "migrations directory (defaults to the embedded set)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")
	rootCmd.AddCommand(upCmd, downCmd, stepsCmd, versionCmd, forceCmd, createCmd, listCmd)
}

// withMigrator connects with bounded linear retry, runs fn and closes everything
func withMigrator(ctx context.Context, fn func(*migration.Migrator) error) error {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	err = persistence.Retry(ctx, cfg.Database.ConnectAttempts, cfg.Database.ConnectDelay, func(attempt int) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			log.Warn("database not reachable yet",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", cfg.Database.ConnectAttempts),
				zap.Error(err),
			)
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	m, err := migration.New(db, migration.Source{Dir: migrationsPath, FS: migrations.FS}, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			log.Warn("failed to close migrator", zap.Error(cerr))
		}
	}()

	return fn(m)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if log != nil {
			log.Error("migrate failed", zap.Error(err))
			_ = log.Sync()
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
