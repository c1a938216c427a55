package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"yearend/internal/domain/audit"
	"yearend/internal/domain/yearend"
	"yearend/internal/platform/crypto"
	"yearend/internal/platform/jobs"
	"yearend/internal/platform/metrics"
)

// cliActor attributes command line batches in the audit log.
const cliActor = "cli"

type runOptions struct {
	tenantID   string
	fiscalYear int
	userIDs    []string
	workers    int
}

func (o runOptions) validate() error {
	if o.tenantID == "" {
		return errors.New("--tenant is required")
	}
	if o.fiscalYear < 1900 || o.fiscalYear > 9999 {
		return errors.New("--year must be a four digit fiscal year")
	}
	for _, id := range o.userIDs {
		if strings.TrimSpace(id) == "" {
			return errors.New("--user must not be blank")
		}
	}
	if o.workers < 0 {
		return errors.New("--workers must not be negative")
	}
	return nil
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile one fiscal year for a tenant and print the summary",
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			return opts.validate()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, pool, err := root.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			workers := cfg.ReconcileWorkers
			if opts.workers > 0 {
				workers = opts.workers
			}
			cryptoSvc, err := crypto.New(cfg.DataEncryptionKey)
			if err != nil {
				return err
			}
			service := yearend.NewService(
				yearend.NewStore(pool),
				workers,
				metrics.New(),
				yearend.WithAuditor(audit.New(pool)),
				yearend.WithCrypto(cryptoSvc),
				yearend.WithSlipDir(cfg.SlipStorageDir),
			)

			// Recorded in job_runs like scheduled batches.
			var summary yearend.BatchSummary
			runner := jobs.New(pool, 0, service.RunReconciliation, nil)
			_, err = runner.RunNow(ctx, yearend.JobReconciliation, opts.tenantID, func(ctx context.Context) (any, error) {
				var runErr error
				summary, runErr = service.RunReconciliation(ctx, opts.tenantID, opts.fiscalYear, opts.userIDs, yearend.Actor{RequestID: cliActor})
				return summary.Summary, runErr
			})
			if err != nil {
				return fmt.Errorf("reconciliation failed: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVar(&opts.tenantID, "tenant", "", "tenant id")
	cmd.Flags().IntVar(&opts.fiscalYear, "year", 0, "fiscal year to reconcile")
	cmd.Flags().StringArrayVar(&opts.userIDs, "user", nil, "employee id; repeat to limit the run, omit for all active employees")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "concurrent employees; defaults to RECONCILE_WORKERS")
	return cmd
}

type resultsOptions struct {
	tenantID   string
	fiscalYear int
	status     string
	userID     string
	limit      int
	offset     int
}

func newResultsCmd(root *rootOptions) *cobra.Command {
	opts := resultsOptions{}
	cmd := &cobra.Command{
		Use:   "results",
		Short: "List stored year-end results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.tenantID == "" {
				return errors.New("--tenant is required")
			}
			filter, err := resultFilter(opts.fiscalYear, opts.status, opts.userID)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			_, pool, err := root.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			results, total, err := yearend.NewStore(pool).ListResults(ctx, opts.tenantID, filter, opts.limit, opts.offset)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{"items": results, "total": total})
		},
	}
	cmd.Flags().StringVar(&opts.tenantID, "tenant", "", "tenant id")
	cmd.Flags().IntVar(&opts.fiscalYear, "year", 0, "fiscal year filter")
	cmd.Flags().StringVar(&opts.status, "status", "", "calculated, confirmed or paid")
	cmd.Flags().StringVar(&opts.userID, "user", "", "employee id filter")
	cmd.Flags().IntVar(&opts.limit, "limit", 100, "page size")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "page offset")
	return cmd
}
