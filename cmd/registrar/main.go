package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/crossfellowship/registrar/internal/accounts"
	"github.com/crossfellowship/registrar/internal/db"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "registrar",
		Short:         "Telegram registration intake and review API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newMigrateCommand(), newSeedAdminCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot and the admin HTTP API",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(log *slog.Logger, conn *sql.DB) error {
				return db.MigrateUp(log, conn)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (default 1 step)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("steps must be a positive integer")
				}
				steps = n
			}
			return withDatabase(cmd.Context(), func(log *slog.Logger, conn *sql.DB) error {
				return db.MigrateDown(log, conn, steps)
			})
		},
	})
	return cmd
}

func newSeedAdminCommand() *cobra.Command {
	var username, password, address string
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the super admin or reset its password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := provideConfig()
			if err != nil {
				return err
			}
			if username == "" {
				username = cfg.Admin.Username
			}
			if password == "" {
				password = cfg.Admin.Password
			}
			if address == "" {
				address = cfg.Admin.Email
			}
			return withDatabase(cmd.Context(), func(log *slog.Logger, conn *sql.DB) error {
				if err := db.MigrateUp(log, conn); err != nil {
					return err
				}
				svc := accounts.NewService(log, accounts.NewStore(conn), nil)
				u, err := svc.SeedAdmin(cmd.Context(), username, password, address)
				if err != nil {
					return err
				}
				log.Info("super admin ready", slog.Int64("user_id", u.ID), slog.String("username", u.Username))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "admin username (defaults to admin.username)")
	cmd.Flags().StringVar(&password, "password", "", "admin password (defaults to admin.password)")
	cmd.Flags().StringVar(&address, "email", "", "admin email (defaults to admin.email)")
	return cmd
}

func withDatabase(ctx context.Context, fn func(log *slog.Logger, conn *sql.DB) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := provideConfig()
	if err != nil {
		return err
	}
	log := provideLogger(cfg)
	conn, err := db.Open(ctx, cfg.Postgres.DSN())
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(log, conn)
}
