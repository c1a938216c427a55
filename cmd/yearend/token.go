package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"yearend/internal/domain/auth"
	"yearend/internal/platform/config"
)

type tokenOptions struct {
	tenantID string
	userID   string
	role     string
	roleID   string
	ttl      time.Duration
}

func (o tokenOptions) validate() error {
	if o.tenantID == "" || o.userID == "" {
		return errors.New("--tenant and --user are required")
	}
	if _, ok := auth.RolePermissions[o.role]; !ok {
		return fmt.Errorf("unknown role %q", o.role)
	}
	if o.ttl <= 0 {
		return errors.New("--ttl must be positive")
	}
	return nil
}

// newTokenCmd mints a bearer token for operators and local testing. Without
// --role-id the seeded role of that name is looked up in the database.
func newTokenCmd(root *rootOptions) *cobra.Command {
	opts := tokenOptions{}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token",
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			return opts.validate()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			roleID := opts.roleID
			var secret string
			if roleID == "" {
				ctx := cmd.Context()
				cfg, pool, err := root.connect(ctx)
				if err != nil {
					return err
				}
				defer pool.Close()
				if roleID, err = auth.NewStore(pool).RoleID(ctx, opts.tenantID, opts.role); err != nil {
					return err
				}
				secret = cfg.JWTSecret
			} else {
				cfg, err := config.LoadFile(root.configPath)
				if err != nil {
					return err
				}
				secret = cfg.JWTSecret
			}
			if secret == "" {
				return errors.New("JWT_SECRET is not configured")
			}

			token, err := auth.GenerateToken(secret, auth.Claims{
				UserID:   opts.userID,
				TenantID: opts.tenantID,
				RoleID:   roleID,
				RoleName: opts.role,
			}, opts.ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.tenantID, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&opts.userID, "user", "", "user id")
	cmd.Flags().StringVar(&opts.role, "role", auth.RoleHR, "role name")
	cmd.Flags().StringVar(&opts.roleID, "role-id", "", "role id; skips the database lookup")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}
