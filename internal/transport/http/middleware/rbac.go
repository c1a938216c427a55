package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"yearend/internal/transport/http/api"
)

type PermissionStore interface {
	HasPermission(ctx context.Context, roleID, permission string) (bool, error)
}

// RequirePermission admits callers whose role grants permission. Denials are
// logged so that attempts to run or settle year-end batches leave a trace
// even though they never reach the audit trail.
func RequirePermission(permission string, store PermissionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())
			user, ok := GetUser(r.Context())
			if !ok || user.TenantID == "" {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
				return
			}

			allowed, err := store.HasPermission(r.Context(), user.RoleID, permission)
			if err != nil {
				slog.Warn("permission check failed", "permission", permission, "roleId", user.RoleID, "requestId", requestID, "err", err)
				api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", requestID)
				return
			}
			if !allowed {
				slog.Info("permission denied",
					"permission", permission,
					"tenantId", user.TenantID,
					"userId", user.UserID,
					"role", user.RoleName,
					"requestId", requestID,
				)
				api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
