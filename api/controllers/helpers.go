package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/tiendas-backend/api/middleware"
	"github.com/angelmondragon/tiendas-backend/internal/authz"
	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
)

func tenantScope(r *http.Request) (uuid.UUID, error) {
	tenantID, ok := middleware.TenantScopeFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "store context missing")
	}
	return tenantID, nil
}

func requestActor(r *http.Request) (authz.Actor, error) {
	return middleware.ActorFromContext(r.Context())
}

func uuidParam(r *http.Request, name, label string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, label+" required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+label)
	}
	return id, nil
}
