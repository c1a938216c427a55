package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"yearend/internal/platform/querier"
)

var ErrRoleNotFound = errors.New("role not found")

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) HasPermission(ctx context.Context, roleID, permission string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1
      FROM role_permissions rp
      JOIN permissions p ON rp.permission_id = p.id
      WHERE rp.role_id = $1 AND p.key = $2
    )
  `, roleID, permission).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// RoleID resolves a seeded role name to the id carried in tokens.
func (s *Store) RoleID(ctx context.Context, tenantID, name string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    SELECT id::text FROM roles WHERE tenant_id = $1 AND name = $2
  `, tenantID, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrRoleNotFound, name)
	}
	return id, err
}

// StaticPermissions answers permission checks from RolePermissions, treating
// the role id as a role name.
type StaticPermissions struct{}

func (StaticPermissions) HasPermission(_ context.Context, role, permission string) (bool, error) {
	for _, granted := range RolePermissions[role] {
		if granted == permission {
			return true, nil
		}
	}
	return false, nil
}
