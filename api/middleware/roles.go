package middleware

import (
	"net/http"
	"slices"

	"github.com/angelmondragon/tiendas-backend/api/responses"
	"github.com/angelmondragon/tiendas-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
	"github.com/angelmondragon/tiendas-backend/pkg/logger"
)

// RequireRole admits callers whose token carries one of roles. Tenant
// membership is checked separately by TenantAccess.
func RequireRole(logg *logger.Logger, roles ...enums.RoleName) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := enums.RoleName(RoleFromContext(r.Context()))
			if !role.IsValid() || !slices.Contains(roles, role) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role not allowed for this operation"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
