package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"yearend/internal/app/server"
	"yearend/internal/domain/yearend"
	"yearend/internal/platform/config"
	"yearend/internal/platform/db"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "yearend",
		Short:         "Year-end tax reconciliation",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "TOML config file layered over the environment")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newRunCmd(opts),
		newResultsCmd(opts),
		newTokenCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// connect opens the pool without migrating; the migrate and serve commands
// own schema changes.
func (o *rootOptions) connect(ctx context.Context) (config.Config, *pgxpool.Pool, error) {
	cfg, err := o.load()
	if err != nil {
		return config.Config{}, nil, err
	}
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("db connect: %w", err)
	}
	return cfg, pool, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reconciliation scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return server.Run(cfg)
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, pool, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := db.Migrate(ctx, pool, cfg.MigrationsDir)
			if err != nil {
				return err
			}
			for _, version := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", version)
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			}
			if seed {
				tenantID, err := db.Seed(ctx, pool, cfg.SeedTenantName)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded tenant %s\n", tenantID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "also ensure the default tenant, roles and permissions")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func resultFilter(fiscalYear int, status, userID string) (yearend.ResultFilter, error) {
	switch status {
	case "", yearend.ResultStatusCalculated, yearend.ResultStatusConfirmed, yearend.ResultStatusPaid:
	default:
		return yearend.ResultFilter{}, fmt.Errorf("unknown status %q", status)
	}
	if fiscalYear != 0 && (fiscalYear < 1900 || fiscalYear > 9999) {
		return yearend.ResultFilter{}, fmt.Errorf("invalid fiscal year %d", fiscalYear)
	}
	return yearend.ResultFilter{FiscalYear: fiscalYear, UserID: userID, Status: status}, nil
}
