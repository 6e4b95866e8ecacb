package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vasiliy-maslov/bookstore/internal/auth"
	"github.com/vasiliy-maslov/bookstore/internal/config"
	"github.com/vasiliy-maslov/bookstore/internal/db"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(db.Up), string(db.Down)},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := db.Up
			if len(args) == 1 {
				direction = db.Direction(args[0])
			}

			cfg, err := config.NewConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			conn, err := db.Connect(cfg.Postgres)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := db.Migrate(conn, cfg.Postgres, direction); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations %s: done\n", direction)
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Bulk-load catalog books from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := db.LoadSeedFile(file)
			if err != nil {
				return err
			}

			cfg, err := config.NewConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			conn, err := db.Connect(cfg.Postgres)
			if err != nil {
				return err
			}
			defer conn.Close()

			n, err := db.SeedBooks(conn, books)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d books from %s\n", n, file)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "seeds/books.yaml", "seed file")
	return cmd
}

func newGrantAdminCmd() *cobra.Command {
	var revoke bool

	cmd := &cobra.Command{
		Use:   "grant-admin <email>",
		Short: "Give (or with --revoke, take away) admin rights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			dbConn, err := db.New(ctx, cfg.Postgres)
			if err != nil {
				return err
			}
			defer dbConn.Close()

			if err := auth.NewRepository(dbConn.Pool).SetAdmin(ctx, args[0], !revoke); err != nil {
				return err
			}

			verb := "granted to"
			if revoke {
				verb = "revoked from"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s %s\n", verb, args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "remove admin rights instead")
	return cmd
}
