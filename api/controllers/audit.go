package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/tiendas-backend/api/responses"
	"github.com/angelmondragon/tiendas-backend/api/validators"
	"github.com/angelmondragon/tiendas-backend/internal/audit"
	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
	"github.com/angelmondragon/tiendas-backend/pkg/logger"
	"github.com/angelmondragon/tiendas-backend/pkg/pagination"
)

// AuditLogList returns the tenant's audit trail, newest first.
func AuditLogList(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit service unavailable"))
			return
		}

		tenantID, err := tenantScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		result, err := svc.List(r.Context(), audit.ListParams{
			TenantID: &tenantID,
			Action:   strings.TrimSpace(query.Get("action")),
			Limit:    limit,
			Cursor:   strings.TrimSpace(query.Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
