package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"yearend/internal/domain/auth"
	"yearend/internal/platform/querier"
)

// Seed makes sure the named tenant exists with the default roles and their
// year-end grants. It returns the tenant id.
func Seed(ctx context.Context, db querier.Querier, tenantName string) (string, error) {
	tenantID, err := ensureTenant(ctx, db, tenantName)
	if err != nil {
		return "", err
	}
	if err := ensurePermissions(ctx, db); err != nil {
		return "", err
	}
	roleIDs, err := ensureRoles(ctx, db, tenantID)
	if err != nil {
		return "", err
	}
	if err := ensureRolePermissions(ctx, db, roleIDs); err != nil {
		return "", err
	}
	return tenantID, nil
}

func ensureTenant(ctx context.Context, db querier.Querier, name string) (string, error) {
	var id string
	err := db.QueryRow(ctx, "SELECT id::text FROM tenants WHERE name = $1", name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}
	err = db.QueryRow(ctx, "INSERT INTO tenants (name) VALUES ($1) RETURNING id::text", name).Scan(&id)
	return id, err
}

func ensurePermissions(ctx context.Context, db querier.Querier) error {
	for _, perm := range auth.DefaultPermissions {
		if _, err := db.Exec(ctx, "INSERT INTO permissions (key) VALUES ($1) ON CONFLICT (key) DO NOTHING", perm); err != nil {
			return err
		}
	}
	return nil
}

func ensureRoles(ctx context.Context, db querier.Querier, tenantID string) (map[string]string, error) {
	roleIDs := map[string]string{}
	for roleName := range auth.RolePermissions {
		var id string
		err := db.QueryRow(ctx, `
      INSERT INTO roles (tenant_id, name) VALUES ($1, $2)
      ON CONFLICT (tenant_id, name) DO UPDATE SET name = EXCLUDED.name
      RETURNING id::text
    `, tenantID, roleName).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("ensure role %s: %w", roleName, err)
		}
		roleIDs[roleName] = id
	}
	return roleIDs, nil
}

func ensureRolePermissions(ctx context.Context, db querier.Querier, roleIDs map[string]string) error {
	permMap := map[string]string{}
	rows, err := db.Query(ctx, "SELECT id::text, key FROM permissions")
	if err != nil {
		return err
	}
	for rows.Next() {
		var id, key string
		if err := rows.Scan(&id, &key); err != nil {
			rows.Close()
			return err
		}
		permMap[key] = id
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for roleName, perms := range auth.RolePermissions {
		roleID := roleIDs[roleName]
		for _, permKey := range perms {
			permID, ok := permMap[permKey]
			if !ok {
				return errors.New("permission not found: " + permKey)
			}
			if _, err := db.Exec(ctx, "INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", roleID, permID); err != nil {
				return err
			}
		}
	}
	return nil
}
