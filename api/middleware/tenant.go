package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/angelmondragon/tiendas-backend/api/responses"
	"github.com/angelmondragon/tiendas-backend/internal/authz"
	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
	"github.com/angelmondragon/tiendas-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TenantLoader reads the tenant a route is scoped to.
type TenantLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

// TenantAccess resolves the {tenantId} route parameter, runs the
// authorization policy for the requested access and stores the tenant in the
// request context.
func TenantAccess(loader TenantLoader, access authz.Access, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if loader == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tenant loader unavailable"))
				return
			}

			actor, err := ActorFromContext(ctx)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			tenantID, err := uuid.Parse(chi.URLParam(r, "tenantId"))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid store id"))
				return
			}

			tenant, err := loader.FindByID(ctx, tenantID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "store not found"))
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store"))
				return
			}

			if err := authz.Authorize(actor, tenant.ID, tenant.Status, access); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			ctx = WithTenantScope(ctx, tenant.ID)
			if logg != nil {
				ctx = logg.WithTenantID(ctx, tenant.ID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
